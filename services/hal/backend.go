package hal

import (
	"context"
	"io"
	"time"

	"tinygo.org/x/drivers"

	"mowercode-go/types"
)

// ---- GPIO abstractions ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOPin interface {
	Number() int
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
}

// PinFactory supplies GPIO pins by the configured number scheme.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}

// ---- Serial abstractions ----

// SerialPort is one opened UART/serial connection. Read honours the timeout
// the port was opened with: a timed-out Read returns (0, nil).
type SerialPort interface {
	io.ReadWriteCloser
	Flush() error
}

// PortFactory opens serial ports from configured parameters.
type PortFactory interface {
	Open(p types.SerialParams) (SerialPort, error)
}

// ---- Camera abstraction ----

// FrameSource is the whole camera contract the HAL carries: start, stop,
// latest frame. The pixel pipeline behind it is not this layer's business.
type FrameSource interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Latest() (frame []byte, ts time.Time, ok bool)
}

// ---- Backend ----

// Backend binds the HAL to a concrete platform. Exactly one implementation
// is selected at construction time (real Linux hardware or simulation);
// simulation is a first-class implementation, never an import-failure side
// effect.
type Backend interface {
	Name() string
	// I2C returns the shared bus handle for a bus number. There is one
	// physical handle per bus per process; callers receive a shared
	// reference.
	I2C(busNumber int) (drivers.I2C, error)
	Pins() PinFactory
	Ports() PortFactory
	Camera(cfg types.CameraConfig) (FrameSource, error)
}
