package aht20

import (
	"errors"
	"testing"
	"time"
)

// chip emulates the part's command protocol: trigger starts a conversion
// that stays busy for a scripted number of polls.
type chip struct {
	status    byte
	rawHum    uint32
	rawTemp   uint32
	busyPolls int
	resets    int
	inits     int
	triggers  int
}

func newChip() *chip {
	return &chip{status: statusCalibrated}
}

func (c *chip) Tx(addr uint16, w, r []byte) error {
	if addr != Address {
		return errors.New("no ack")
	}
	if len(w) > 0 {
		switch w[0] {
		case cmdStatus:
			r[0] = c.status
		case cmdTrigger:
			c.triggers++
			c.status |= statusBusy
		case cmdInitialize:
			c.inits++
			c.status |= statusCalibrated
		case cmdSoftReset:
			c.resets++
			c.status = statusCalibrated
		}
		return nil
	}
	// Burst read: status followed by the measurement payload.
	if c.busyPolls > 0 {
		c.busyPolls--
	} else {
		c.status &^= statusBusy
	}
	r[0] = c.status
	r[1] = byte(c.rawHum >> 12)
	r[2] = byte(c.rawHum >> 4)
	r[3] = byte(c.rawHum&0x0F)<<4 | byte(c.rawTemp>>16)
	r[4] = byte(c.rawTemp >> 8)
	r[5] = byte(c.rawTemp)
	return nil
}

func TestConfigureSkipsInitWhenCalibrated(t *testing.T) {
	c := newChip()
	d := New(c)
	if err := d.Configure(); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if c.inits != 0 {
		t.Fatalf("init command sent %d times to a calibrated part", c.inits)
	}
	if !d.Connected() {
		t.Fatal("connected = false with live chip")
	}
}

func TestConfigureInitialisesUncalibratedPart(t *testing.T) {
	c := newChip()
	c.status = 0
	d := New(c)
	if err := d.Configure(); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if c.inits != 1 {
		t.Fatalf("init command sent %d times, want 1", c.inits)
	}
}

func TestReadCycle(t *testing.T) {
	c := newChip()
	c.rawHum = 0x80000  // 50.0 %RH
	c.rawTemp = 0x60000 // 25.0 C
	c.busyPolls = 2

	d := New(c)
	if err := d.Configure(Config{PollInterval: time.Millisecond, CollectTimeout: time.Second}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	s, err := d.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if c.triggers != 1 {
		t.Fatalf("triggers = %d", c.triggers)
	}
	if got := s.DeciRelHumidity(); got != 500 {
		t.Fatalf("humidity = %d deci-%%RH, want 500", got)
	}
	if got := s.DeciCelsius(); got != 250 {
		t.Fatalf("temperature = %d deci-C, want 250", got)
	}
}

func TestResetClearsBusy(t *testing.T) {
	c := newChip()
	d := New(c)
	if err := d.Configure(); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := d.Trigger(); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if err := d.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if c.resets != 1 {
		t.Fatalf("resets = %d", c.resets)
	}
	if c.status&statusBusy != 0 {
		t.Fatal("busy bit survived soft reset")
	}
}

func TestCollectWhileBusy(t *testing.T) {
	c := newChip()
	c.busyPolls = 1000
	d := New(c)
	if err := d.Configure(); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := d.Trigger(); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	var s Sample
	if err := d.Collect(&s); err != ErrNotReady {
		t.Fatalf("collect while busy = %v, want ErrNotReady", err)
	}
}

func TestReadTimesOut(t *testing.T) {
	c := newChip()
	c.busyPolls = 1 << 30
	d := New(c)
	cfg := Config{PollInterval: time.Millisecond, CollectTimeout: 10 * time.Millisecond}
	if err := d.Configure(cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if _, err := d.Read(); err != ErrTimeout {
		t.Fatalf("read = %v, want ErrTimeout", err)
	}
}
