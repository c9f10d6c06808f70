package hal

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tinygo.org/x/drivers"

	"mowercode-go/types"
)

// Shared in-package test doubles. Integration-level tests against the sim
// backend live in the external hal_test package; these fakes exist so unit
// tests can script exact failure sequences.

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastRetry keeps retry-driven tests quick without changing attempt counts.
var fastRetry = RetryPolicy{
	MaxRetries:    3,
	BaseDelay:     time.Microsecond,
	MaxDelay:      10 * time.Microsecond,
	BackoffFactor: 2.0,
}

// ---- I2C ----

// funcBus routes every transaction through a scriptable function.
type funcBus struct {
	mu sync.Mutex
	tx func(addr uint16, w, r []byte) error
	n  int
}

func (b *funcBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	b.n++
	fn := b.tx
	b.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(addr, w, r)
}

func (b *funcBus) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// ---- GPIO ----

type fakePin struct {
	mu    sync.Mutex
	num   int
	level bool
	ops   []string
}

func (p *fakePin) Number() int { return p.num }

func (p *fakePin) ConfigureInput(pull Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, "input")
	return nil
}

func (p *fakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = initial
	p.ops = append(p.ops, "output")
	return nil
}

func (p *fakePin) Set(level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
	if level {
		p.ops = append(p.ops, "set-high")
	} else {
		p.ops = append(p.ops, "set-low")
	}
}

func (p *fakePin) opLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ops...)
}

func (p *fakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

type fakePinFactory struct {
	mu   sync.Mutex
	pins map[int]*fakePin
	deny map[int]bool // pins reported as nonexistent
}

func newFakePinFactory() *fakePinFactory {
	return &fakePinFactory{pins: map[int]*fakePin{}, deny: map[int]bool{}}
}

func (f *fakePinFactory) ByNumber(n int) (GPIOPin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deny[n] {
		return nil, false
	}
	p, ok := f.pins[n]
	if !ok {
		p = &fakePin{num: n}
		f.pins[n] = p
	}
	return p, true
}

func (f *fakePinFactory) pin(n int) *fakePin {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pins[n]
}

// ---- Serial ----

// fakePort emulates a port with a read timeout: Read drains queued input and
// otherwise returns (0, nil).
type fakePort struct {
	mu     sync.Mutex
	in     bytes.Buffer
	out    bytes.Buffer
	rdErr  error
	wrErr  error
	closed bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rdErr != nil {
		return 0, p.rdErr
	}
	if p.in.Len() == 0 {
		return 0, nil
	}
	return p.in.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.wrErr != nil {
		return 0, p.wrErr
	}
	return p.out.Write(b)
}

func (p *fakePort) Flush() error { return nil }

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) feed(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.WriteString(s)
}

func (p *fakePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

type fakePortFactory struct {
	mu    sync.Mutex
	ports map[string]*fakePort
	fail  map[string]error // open failures keyed by device path
}

func newFakePortFactory() *fakePortFactory {
	return &fakePortFactory{ports: map[string]*fakePort{}, fail: map[string]error{}}
}

func (f *fakePortFactory) Open(p types.SerialParams) (SerialPort, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[p.Port]; err != nil {
		return nil, err
	}
	port, ok := f.ports[p.Port]
	if !ok {
		port = &fakePort{}
		f.ports[p.Port] = port
	}
	return port, nil
}

func (f *fakePortFactory) port(device string) *fakePort {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ports[device]
}

// ---- Backend ----

type fakeBackend struct {
	bus   *funcBus
	pins  *fakePinFactory
	ports *fakePortFactory
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		bus:   &funcBus{},
		pins:  newFakePinFactory(),
		ports: newFakePortFactory(),
	}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) I2C(busNumber int) (drivers.I2C, error) { return b.bus, nil }

func (b *fakeBackend) Pins() PinFactory { return b.pins }

func (b *fakeBackend) Ports() PortFactory { return b.ports }

func (b *fakeBackend) Camera(cfg types.CameraConfig) (FrameSource, error) {
	return nil, errNoCamera
}

var errNoCamera = errString("no camera in fake backend")

type errString string

func (e errString) Error() string { return string(e) }
