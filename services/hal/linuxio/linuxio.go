// Package linuxio is the hardware backend for Linux single-board computers:
// /dev/i2c-N character devices, sysfs GPIO, and tty serial ports.
package linuxio

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/tarm/serial"
	"golang.org/x/sys/unix"
	"tinygo.org/x/drivers"

	"mowercode-go/services/hal"
	"mowercode-go/types"
)

// Backend implements hal.Backend against real device nodes.
type Backend struct {
	mu    sync.Mutex
	buses map[int]*i2cBus
	pins  *pinBank
	ports portFactory
}

func NewBackend() *Backend {
	return &Backend{
		buses: map[int]*i2cBus{},
		pins:  newPinBank(),
	}
}

func (b *Backend) Name() string { return "linux" }

// I2C opens (once) and returns the shared handle for a bus number.
func (b *Backend) I2C(busNumber int) (drivers.I2C, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bus, ok := b.buses[busNumber]; ok {
		return bus, nil
	}
	bus, err := openI2CBus(busNumber)
	if err != nil {
		return nil, err
	}
	b.buses[busNumber] = bus
	return bus, nil
}

func (b *Backend) Pins() hal.PinFactory { return b.pins }

func (b *Backend) Ports() hal.PortFactory { return b.ports }

func (b *Backend) Camera(cfg types.CameraConfig) (hal.FrameSource, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("linuxio: camera enabled but no device configured")
	}
	return newFileFrameSource(cfg.Device), nil
}

// Close releases every opened bus handle.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var first error
	for n, bus := range b.buses {
		if err := bus.close(); err != nil && first == nil {
			first = err
		}
		delete(b.buses, n)
	}
	return first
}

// ---- I2C ----

// ioctl interface to the i2c-dev driver (linux/i2c-dev.h, linux/i2c.h).
const (
	ioctlI2CRdwr = 0x0707
	i2cFlagRead  = 0x0001
	maxRdwrMsgs  = 2
)

type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	_     uint16 // padding to the kernel struct layout
	buf   uintptr
}

type i2cRdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

// i2cBus wraps one /dev/i2c-N file descriptor. The mutex makes each
// transaction atomic from the caller's point of view; I2C_RDWR keeps a
// write followed by a read under a repeated start on the wire.
type i2cBus struct {
	mu  sync.Mutex
	fd  int
	dev string
}

func openI2CBus(busNumber int) (*i2cBus, error) {
	dev := fmt.Sprintf("/dev/i2c-%d", busNumber)
	fd, err := unix.Open(dev, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("linuxio: open %s: %w", dev, err)
	}
	return &i2cBus{fd: fd, dev: dev}, nil
}

func (b *i2cBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var msgs [maxRdwrMsgs]i2cMsg
	n := 0
	if len(w) > 0 {
		msgs[n] = i2cMsg{addr: addr, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))}
		n++
	}
	if len(r) > 0 {
		msgs[n] = i2cMsg{addr: addr, flags: i2cFlagRead, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))}
		n++
	}
	if n == 0 {
		// Pure probe: a zero-length write, the same thing i2cdetect sends.
		msgs[0] = i2cMsg{addr: addr}
		n = 1
	}
	data := i2cRdwrData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(n)}
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(b.fd), ioctlI2CRdwr, uintptr(unsafe.Pointer(&data)))
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR {
			continue
		}
		return fmt.Errorf("linuxio: i2c tx 0x%02x on %s: %w", addr, b.dev, errno)
	}
}

func (b *i2cBus) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fd < 0 {
		return nil
	}
	err := unix.Close(b.fd)
	b.fd = -1
	return err
}

// ---- Serial ----

type portFactory struct{}

func (portFactory) Open(p types.SerialParams) (hal.SerialPort, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        p.Port,
		Baud:        p.Baud,
		ReadTimeout: p.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("linuxio: open serial %s: %w", p.Port, err)
	}
	return port, nil
}
