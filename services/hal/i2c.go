package hal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"tinygo.org/x/drivers"

	"mowercode-go/errcode"
	"mowercode-go/types"
)

// Address range probed by ScanDevices: [0x08, 0x78).
const (
	scanFirstAddr = 0x08
	scanLastAddr  = 0x78
)

// I2CManager is the process-wide owner of one I2C bus. Access is serialized
// per address: callers targeting the same address are strictly ordered,
// different addresses proceed concurrently.
type I2CManager struct {
	log    *slog.Logger
	policy RetryPolicy

	mu          sync.Mutex // guards the maps below
	bus         drivers.I2C
	busNumber   int
	devices     map[string]uint16
	addrLocks   map[uint16]*sync.Mutex
	health      map[string]*DeviceHealth
	initialized bool

	busMu sync.Mutex // coarse whole-bus guard, held across scans
}

func NewI2CManager(log *slog.Logger, policy RetryPolicy) *I2CManager {
	return &I2CManager{
		log:       log.With("component", "i2c"),
		policy:    policy,
		devices:   map[string]uint16{},
		addrLocks: map[uint16]*sync.Mutex{},
		health:    map[string]*DeviceHealth{},
	}
}

// Initialize opens the bus via the backend and registers the static
// name -> address map, creating one per-address lock and one DeviceHealth
// per device.
func (m *I2CManager) Initialize(backend Backend, busNumber int, devices map[string]uint16) error {
	bus, err := backend.I2C(busNumber)
	if err != nil {
		return errcode.Wrap(errcode.UnknownBus, "i2c.initialize", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bus = bus
	m.busNumber = busNumber
	for name, addr := range devices {
		m.devices[name] = addr
		if _, ok := m.addrLocks[addr]; !ok {
			m.addrLocks[addr] = &sync.Mutex{}
		}
		m.health[name] = NewDeviceHealth()
	}
	m.initialized = true
	m.log.Info("i2c bus initialized", "bus", busNumber, "devices", len(devices))
	return nil
}

// Bus exposes the shared bus handle for subsystems that drive raw devices
// (the ToF manager, chip drivers inside plugins). Callers must still respect
// DeviceAccess for addresses the manager arbitrates.
func (m *I2CManager) Bus() drivers.I2C {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bus
}

// AddressOf resolves a logical device name.
func (m *I2CManager) AddressOf(name string) (uint16, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr, ok := m.devices[name]
	return addr, ok
}

// DeviceAccess acquires the per-address critical section and returns its
// release. While held, no other caller may perform I/O to the same address.
func (m *I2CManager) DeviceAccess(addr uint16) func() {
	m.mu.Lock()
	l, ok := m.addrLocks[addr]
	if !ok {
		l = &sync.Mutex{}
		m.addrLocks[addr] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// ReadRegister reads n bytes from a register of a named device, under the
// per-address guard and the retry policy.
func (m *I2CManager) ReadRegister(ctx context.Context, name string, reg uint8, n int) ([]byte, error) {
	bus, addr, health, err := m.resolve(name)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	release := m.DeviceAccess(addr)
	defer release()
	err = withRetry(ctx, m.policy, health, func() error {
		return bus.Tx(addr, []byte{reg}, buf)
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteRegister writes data to a register of a named device, under the
// per-address guard and the retry policy.
func (m *I2CManager) WriteRegister(ctx context.Context, name string, reg uint8, data ...byte) error {
	bus, addr, health, err := m.resolve(name)
	if err != nil {
		return err
	}
	w := append([]byte{reg}, data...)
	release := m.DeviceAccess(addr)
	defer release()
	return withRetry(ctx, m.policy, health, func() error {
		return bus.Tx(addr, w, nil)
	})
}

// resolve captures the bus handle along with the device entry so in-flight
// transactions keep a stable handle across a concurrent Shutdown.
func (m *I2CManager) resolve(name string) (drivers.I2C, uint16, *DeviceHealth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, 0, nil, errcode.Msgf(errcode.UnknownBus, "i2c", "not initialized")
	}
	addr, ok := m.devices[name]
	if !ok {
		return nil, 0, nil, errcode.Msgf(errcode.DeviceNotFound, "i2c", fmt.Sprintf("no device %q", name))
	}
	return m.bus, addr, m.health[name], nil
}

// ScanDevices probes every address in [0x08, 0x78) with a minimal read and
// returns responders, sorted. The whole scan runs under the coarse bus
// guard; it is diagnostic, not latency-sensitive.
func (m *I2CManager) ScanDevices() []uint16 {
	m.mu.Lock()
	bus := m.bus
	m.mu.Unlock()
	if bus == nil {
		return nil
	}
	m.busMu.Lock()
	defer m.busMu.Unlock()

	var probe [1]byte
	var found []uint16
	for addr := uint16(scanFirstAddr); addr < scanLastAddr; addr++ {
		if err := bus.Tx(addr, nil, probe[:]); err == nil {
			found = append(found, addr)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })
	return found
}

// HealthSnapshot returns the per-device health view keyed by logical name.
func (m *I2CManager) HealthSnapshot() map[string]types.DeviceHealthSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]types.DeviceHealthSnapshot, len(m.health))
	for name, h := range m.health {
		out[name] = h.Snapshot()
	}
	return out
}

// Health returns the DeviceHealth for a named device, if registered.
func (m *I2CManager) Health(name string) (*DeviceHealth, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.health[name]
	return h, ok
}

// Shutdown drops the bus handle. The backend owns closing the file
// descriptor; other subsystems may still share the handle during teardown.
func (m *I2CManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
	m.bus = nil
	return nil
}
