// Package simio is the simulation backend: a software I2C bus with
// per-address device models, recording GPIO pins, scripted serial ports and
// a synthetic camera. It exists so the full HAL stack can run and be tested
// on a developer machine with no hardware attached.
package simio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"mowercode-go/services/hal"
	"mowercode-go/types"
)

// Backend implements hal.Backend entirely in memory.
type Backend struct {
	bus   *I2CBus
	pins  *Pins
	ports *Ports
}

func NewBackend() *Backend {
	return &Backend{
		bus:   NewI2CBus(),
		pins:  NewPins(),
		ports: NewPorts(),
	}
}

func (b *Backend) Name() string { return "sim" }

func (b *Backend) I2C(busNumber int) (drivers.I2C, error) { return b.bus, nil }

func (b *Backend) Pins() hal.PinFactory { return b.pins }

func (b *Backend) Ports() hal.PortFactory { return b.ports }

func (b *Backend) Camera(cfg types.CameraConfig) (hal.FrameSource, error) {
	return newFrameLoop(cfg), nil
}

// Bus returns the simulated I2C bus for attaching device models.
func (b *Backend) Bus() *I2CBus { return b.bus }

// PinBank returns the recording pin bank.
func (b *Backend) PinBank() *Pins { return b.pins }

// PortBank returns the scripted serial port bank.
func (b *Backend) PortBank() *Ports { return b.ports }

// ---- I2C ----

// DeviceModel answers one transaction addressed to a single device.
type DeviceModel interface {
	Tx(w, r []byte) error
}

// I2CBus is a drivers.I2C backed by attachable device models.
type I2CBus struct {
	mu      sync.Mutex
	devices map[uint16]DeviceModel
}

func NewI2CBus() *I2CBus {
	return &I2CBus{devices: map[uint16]DeviceModel{}}
}

func (b *I2CBus) Attach(addr uint16, d DeviceModel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[addr] = d
}

func (b *I2CBus) Detach(addr uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.devices, addr)
}

// Move reassigns a device model to a new address, as a device changing its
// own address on a real bus would.
func (b *I2CBus) Move(from, to uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.devices[from]; ok {
		delete(b.devices, from)
		b.devices[to] = d
	}
}

// Present reports whether any model answers at an address.
func (b *I2CBus) Present(addr uint16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.devices[addr]
	return ok
}

func (b *I2CBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	d, ok := b.devices[addr]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("simio: no device at 0x%02x", addr)
	}
	return d.Tx(w, r)
}

// ---- GPIO ----

// PinWatcher observes output level changes, letting a test or scenario
// couple pin state to bus topology (a sensor held in reset drops off).
type PinWatcher func(pin int, level bool)

// Pins hands out recording pins for any requested number.
type Pins struct {
	mu       sync.Mutex
	pins     map[int]*Pin
	watchers []PinWatcher
}

func NewPins() *Pins {
	return &Pins{pins: map[int]*Pin{}}
}

func (p *Pins) Watch(w PinWatcher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watchers = append(p.watchers, w)
}

func (p *Pins) ByNumber(n int) (hal.GPIOPin, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pin, ok := p.pins[n]
	if !ok {
		pin = &Pin{n: n, bank: p}
		p.pins[n] = pin
	}
	return pin, true
}

// Pin returns the recording pin if one was ever handed out.
func (p *Pins) Pin(n int) (*Pin, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pin, ok := p.pins[n]
	return pin, ok
}

// TotalOps counts operations across every pin ever handed out.
func (p *Pins) TotalOps() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, pin := range p.pins {
		total += len(pin.Ops())
	}
	return total
}

func (p *Pins) notify(pin int, level bool) {
	p.mu.Lock()
	ws := append([]PinWatcher(nil), p.watchers...)
	p.mu.Unlock()
	for _, w := range ws {
		w(pin, level)
	}
}

// Pin records every operation applied to it.
type Pin struct {
	n    int
	bank *Pins

	mu    sync.Mutex
	ops   []string
	level bool
	input bool
}

func (p *Pin) Number() int { return p.n }

func (p *Pin) ConfigureInput(pull hal.Pull) error {
	p.mu.Lock()
	p.input = true
	p.ops = append(p.ops, fmt.Sprintf("input(pull=%d)", pull))
	p.mu.Unlock()
	return nil
}

func (p *Pin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.input = false
	p.level = initial
	p.ops = append(p.ops, fmt.Sprintf("output(%v)", initial))
	p.mu.Unlock()
	p.bank.notify(p.n, initial)
	return nil
}

func (p *Pin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.ops = append(p.ops, fmt.Sprintf("set(%v)", level))
	p.mu.Unlock()
	p.bank.notify(p.n, level)
}

func (p *Pin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// SetInputLevel drives the level seen by a pin configured as input.
func (p *Pin) SetInputLevel(level bool) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

// Ops returns the recorded operation log.
func (p *Pin) Ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ops...)
}

// ---- Serial ----

// Ports opens scripted in-memory serial ports.
type Ports struct {
	mu    sync.Mutex
	ports map[string]*Port
}

func NewPorts() *Ports {
	return &Ports{ports: map[string]*Port{}}
}

func (ps *Ports) Open(p types.SerialParams) (hal.SerialPort, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	port, ok := ps.ports[p.Port]
	if !ok {
		port = &Port{name: p.Port}
		ps.ports[p.Port] = port
	}
	port.mu.Lock()
	port.closed = false
	port.mu.Unlock()
	return port, nil
}

// Port returns a scripted port by device path, creating it if needed so a
// test can feed data before the HAL opens it.
func (ps *Ports) Port(name string) *Port {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	port, ok := ps.ports[name]
	if !ok {
		port = &Port{name: name}
		ps.ports[name] = port
	}
	return port
}

// Port is a scripted serial endpoint: writes are recorded, reads drain
// whatever a test has fed in. An empty read buffer behaves like a timed-out
// read and returns (0, nil).
type Port struct {
	name string

	mu     sync.Mutex
	inbuf  []byte
	writes [][]byte
	closed bool
}

func (p *Port) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.inbuf) == 0 {
		return 0, nil
	}
	n := copy(buf, p.inbuf)
	p.inbuf = p.inbuf[n:]
	return n, nil
}

func (p *Port) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, fmt.Errorf("simio: port %s closed", p.name)
	}
	p.writes = append(p.writes, append([]byte(nil), buf...))
	return len(buf), nil
}

func (p *Port) Flush() error { return nil }

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Feed appends bytes to the read side.
func (p *Port) Feed(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbuf = append(p.inbuf, data...)
}

// FeedLine appends one newline-terminated line to the read side.
func (p *Port) FeedLine(line string) { p.Feed([]byte(line + "\n")) }

// Writes returns everything written so far.
func (p *Port) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	copy(out, p.writes)
	return out
}

// ---- Camera ----

// frameLoop produces a counter-stamped frame at a fixed cadence.
type frameLoop struct {
	cfg types.CameraConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	frame  []byte
	at     time.Time
	seq    uint64
}

func newFrameLoop(cfg types.CameraConfig) *frameLoop {
	return &frameLoop{cfg: cfg}
}

func (f *frameLoop) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return nil
	}
	lctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go f.run(lctx)
	return nil
}

func (f *frameLoop) run(ctx context.Context) {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			f.mu.Lock()
			f.seq++
			f.frame = []byte(fmt.Sprintf("frame %d %dx%d", f.seq, f.cfg.Width, f.cfg.Height))
			f.at = now
			f.mu.Unlock()
		}
	}
}

func (f *frameLoop) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	return nil
}

func (f *frameLoop) Latest() ([]byte, time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frame == nil {
		return nil, time.Time{}, false
	}
	return append([]byte(nil), f.frame...), f.at, true
}
