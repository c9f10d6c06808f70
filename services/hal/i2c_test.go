package hal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"mowercode-go/errcode"
)

func newTestI2C(t *testing.T, devices map[string]uint16) (*I2CManager, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	m := NewI2CManager(testLogger(t), fastRetry)
	if err := m.Initialize(backend, 1, devices); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return m, backend
}

func TestI2CReadRegister(t *testing.T) {
	m, backend := newTestI2C(t, map[string]uint16{"imu": 0x68})
	backend.bus.tx = func(addr uint16, w, r []byte) error {
		if addr != 0x68 {
			t.Errorf("tx addr = %#x", addr)
		}
		if len(w) != 1 || w[0] != 0x75 {
			t.Errorf("tx write = %v", w)
		}
		if len(r) == 1 {
			r[0] = 0x68
		}
		return nil
	}

	got, err := m.ReadRegister(context.Background(), "imu", 0x75, 1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0] != 0x68 {
		t.Fatalf("read = %v", got)
	}
}

func TestI2CUnknownDevice(t *testing.T) {
	m, _ := newTestI2C(t, map[string]uint16{"imu": 0x68})
	_, err := m.ReadRegister(context.Background(), "nope", 0x00, 1)
	if !errors.Is(err, errcode.DeviceNotFound) {
		t.Fatalf("err = %v, want device_not_found", err)
	}
}

func TestI2CRetryExhaustionHitsHealth(t *testing.T) {
	m, backend := newTestI2C(t, map[string]uint16{"imu": 0x68})
	boom := errors.New("nak")
	backend.bus.tx = func(addr uint16, w, r []byte) error { return boom }

	_, err := m.ReadRegister(context.Background(), "imu", 0x75, 1)
	if err == nil {
		t.Fatal("read succeeded against failing bus")
	}
	// Initial attempt plus MaxRetries.
	if got := backend.bus.calls(); got != 4 {
		t.Fatalf("bus calls = %d, want 4", got)
	}
	snap := m.HealthSnapshot()["imu"]
	if snap.TotalReads != 4 || snap.TotalFailures != 4 {
		t.Fatalf("health = %d/%d, want 4/4", snap.TotalFailures, snap.TotalReads)
	}
}

func TestI2CDeviceAccessSerializesPerAddress(t *testing.T) {
	m, _ := newTestI2C(t, map[string]uint16{"a": 0x40, "b": 0x41})

	var inSection int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := m.DeviceAccess(0x40)
			defer release()
			if n := atomic.AddInt32(&inSection, 1); n != 1 {
				t.Errorf("%d goroutines inside the same-address section", n)
			}
			atomic.AddInt32(&inSection, -1)
		}()
	}
	wg.Wait()
}

func TestI2CDeviceAccessDistinctAddressesOverlap(t *testing.T) {
	m, _ := newTestI2C(t, map[string]uint16{"a": 0x40, "b": 0x41})

	releaseA := m.DeviceAccess(0x40)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB := m.DeviceAccess(0x41)
		releaseB()
		close(done)
	}()
	<-done // must not deadlock while 0x40 is held
}

func TestI2CReadSurvivesConcurrentShutdown(t *testing.T) {
	m, backend := newTestI2C(t, map[string]uint16{"imu": 0x68})

	firstFailed := make(chan struct{})
	shutdownDone := make(chan struct{})
	var calls int32
	backend.bus.tx = func(addr uint16, w, r []byte) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(firstFailed)
			<-shutdownDone
			return errors.New("nak")
		}
		return nil
	}

	readDone := make(chan error, 1)
	go func() {
		_, err := m.ReadRegister(context.Background(), "imu", 0x75, 1)
		readDone <- err
	}()

	// Tear down mid-retry: the retry attempts must keep the handle they
	// resolved instead of rereading manager state.
	<-firstFailed
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	close(shutdownDone)

	if err := <-readDone; err != nil {
		t.Fatalf("read during shutdown: %v", err)
	}
}

func TestI2CScanDevices(t *testing.T) {
	m, backend := newTestI2C(t, nil)
	present := map[uint16]bool{0x29: true, 0x40: true, 0x68: true}
	backend.bus.tx = func(addr uint16, w, r []byte) error {
		if present[addr] {
			return nil
		}
		return errors.New("no ack")
	}

	got := m.ScanDevices()
	want := []uint16{0x29, 0x40, 0x68}
	if len(got) != len(want) {
		t.Fatalf("scan = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scan = %#v, want %#v", got, want)
		}
	}
}

func TestI2CWriteRegister(t *testing.T) {
	m, backend := newTestI2C(t, map[string]uint16{"pmon": 0x40})
	var wrote []byte
	backend.bus.tx = func(addr uint16, w, r []byte) error {
		wrote = append([]byte(nil), w...)
		return nil
	}
	if err := m.WriteRegister(context.Background(), "pmon", 0x00, 0x71, 0x27); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(wrote) != 3 || wrote[0] != 0x00 || wrote[1] != 0x71 || wrote[2] != 0x27 {
		t.Fatalf("wrote = %#v", wrote)
	}
}
