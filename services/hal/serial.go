package hal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mowercode-go/errcode"
	"mowercode-go/types"
)

// WriteObserver is notified after every WriteCommand attempt, success or
// failure. Observer panics are recovered and logged, never propagated to the
// writer.
type WriteObserver func(device, command string, ok bool)

// SerialManager owns one connection per logical device name. Each device has
// its own lock: unrelated devices never block each other, while a device's
// command/response pair stays atomic with respect to other writers.
type SerialManager struct {
	log    *slog.Logger
	policy RetryPolicy

	mu        sync.Mutex
	backend   Backend
	devices   map[string]*serialDevice
	observers []WriteObserver
}

type serialDevice struct {
	mu     sync.Mutex
	name   string
	params types.SerialParams
	port   SerialPort
	health *DeviceHealth
	rbuf   bytes.Buffer // residue between ReadLine calls
}

func NewSerialManager(log *slog.Logger, policy RetryPolicy) *SerialManager {
	return &SerialManager{
		log:     log.With("component", "serial"),
		policy:  policy,
		devices: map[string]*serialDevice{},
	}
}

// Initialize registers every configured device and tries to open its port.
// A device whose port cannot be opened yet stays registered; the open is
// retried lazily on first use.
func (m *SerialManager) Initialize(backend Backend, devices map[string]types.SerialParams) error {
	m.mu.Lock()
	m.backend = backend
	for name, params := range devices {
		m.devices[name] = &serialDevice{name: name, params: params, health: NewDeviceHealth()}
	}
	m.mu.Unlock()

	for name := range devices {
		d, _ := m.lookup(name)
		d.mu.Lock()
		if err := m.ensurePortLocked(d); err != nil {
			m.log.Warn("serial port not available yet", "device", name, "err", err)
		}
		d.mu.Unlock()
	}
	return nil
}

// AddWriteObserver registers a post-write observer.
func (m *SerialManager) AddWriteObserver(obs WriteObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

func (m *SerialManager) lookup(name string) (*serialDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[name]
	if !ok {
		return nil, errcode.Msgf(errcode.DeviceNotFound, "serial", fmt.Sprintf("no device %q", name))
	}
	return d, nil
}

func (m *SerialManager) ensurePortLocked(d *serialDevice) error {
	if d.port != nil {
		return nil
	}
	m.mu.Lock()
	backend := m.backend
	m.mu.Unlock()
	if backend == nil {
		return errcode.Msgf(errcode.Communication, "serial", "manager not initialized")
	}
	port, err := backend.Ports().Open(d.params)
	if err != nil {
		return err
	}
	d.port = port
	return nil
}

// WriteCommand writes one command line and flushes; regardless of outcome,
// every registered observer is invoked with (device, command, ok).
func (m *SerialManager) WriteCommand(ctx context.Context, device, command string) error {
	d, err := m.lookup(device)
	if err != nil {
		return err
	}

	d.mu.Lock()
	werr := m.writeLocked(ctx, d, command)
	d.mu.Unlock()

	m.notifyObservers(device, command, werr == nil)
	return werr
}

func (m *SerialManager) writeLocked(ctx context.Context, d *serialDevice, command string) error {
	if err := m.ensurePortLocked(d); err != nil {
		d.health.RecordFailure()
		return errcode.Wrap(errcode.Communication, "serial.write", err)
	}
	line := []byte(command + "\n")
	return withRetry(ctx, m.policy, d.health, func() error {
		if _, err := d.port.Write(line); err != nil {
			return err
		}
		return d.port.Flush()
	})
}

func (m *SerialManager) notifyObservers(device, command string, ok bool) {
	m.mu.Lock()
	obs := append([]WriteObserver(nil), m.observers...)
	m.mu.Unlock()
	for _, o := range obs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Warn("write observer panicked", "device", device, "panic", r)
				}
			}()
			o(device, command, ok)
		}()
	}
}

// ReadLine reads one newline-terminated line from a device. On timeout it
// returns ok=false with a nil error, distinguishing "no data yet" from a
// hard communication failure.
func (m *SerialManager) ReadLine(ctx context.Context, device string, timeout time.Duration) (string, bool, error) {
	d, err := m.lookup(device)
	if err != nil {
		return "", false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := m.ensurePortLocked(d); err != nil {
		d.health.RecordFailure()
		return "", false, errcode.Wrap(errcode.Communication, "serial.read", err)
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 256)
	for {
		if line, ok := takeLine(&d.rbuf); ok {
			d.health.RecordSuccess()
			return line, true, nil
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, nil
		default:
		}
		n, err := d.port.Read(buf)
		if err != nil {
			d.health.RecordFailure()
			return "", false, errcode.Wrap(errcode.Communication, "serial.read", err)
		}
		if n > 0 {
			d.rbuf.Write(buf[:n])
			continue
		}
		// A zero-count read is the port's own read timeout; pause briefly so
		// ports with no intrinsic timeout do not spin.
		time.Sleep(2 * time.Millisecond)
	}
}

// takeLine splits one line off the residue buffer, trimming the newline and
// any trailing CR.
func takeLine(b *bytes.Buffer) (string, bool) {
	data := b.Bytes()
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return "", false
	}
	line := string(bytes.TrimRight(data[:i], "\r"))
	b.Next(i + 1)
	return line, true
}

// Health returns the DeviceHealth for a named device.
func (m *SerialManager) Health(device string) (*DeviceHealth, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[device]
	if !ok {
		return nil, false
	}
	return d.health, true
}

// Devices lists registered logical names.
func (m *SerialManager) Devices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.devices))
	for name := range m.devices {
		out = append(out, name)
	}
	return out
}

// Shutdown closes every open port.
func (m *SerialManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	devices := make([]*serialDevice, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	m.mu.Unlock()

	for _, d := range devices {
		d.mu.Lock()
		if d.port != nil {
			if err := d.port.Close(); err != nil {
				m.log.Warn("serial close failed", "device", d.name, "err", err)
			}
			d.port = nil
		}
		d.mu.Unlock()
	}
	return nil
}
