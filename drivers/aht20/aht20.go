// Package aht20 drives the AHT20 temperature and humidity sensor. It keeps
// the two-phase measurement shape the part wants:
//
//	err := d.Trigger()       // start a conversion (fast write)
//	err = d.Collect(&s)      // fetch when ready; ErrNotReady while busy
//
// Read() bundles trigger plus bounded polling for callers that just want a
// sample. Conversions are fixed-point: deci-degC and deci-%RH.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided, without releasing the bus.
package aht20

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// Address is the part's only 7-bit I2C address.
const Address = 0x38

// Commands and status bits per datasheet.
const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdSoftReset  = 0xBA
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08
)

// Errors returned by the driver.
var (
	ErrNotReady = errors.New("aht20: not ready")
	ErrTimeout  = errors.New("aht20: timeout")
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to Address if zero.
	Address uint16
	// PollInterval between Collect attempts inside Read. Default 15 ms.
	PollInterval time.Duration
	// CollectTimeout bounds the total wait in Read. Default 250 ms.
	CollectTimeout time.Duration
}

// Device wraps an I2C connection to an AHT20. The bus must already be
// configured.
type Device struct {
	bus     drivers.I2C
	Address uint16

	cfg Config
	buf [7]byte
}

// New creates a device object bound to the bus. It does not touch the
// hardware.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address}
}

// Configure applies optional config and initialises the part's calibration
// if it has not self-calibrated at power-on.
func (d *Device) Configure(cfgs ...Config) error {
	c := Config{}
	if len(cfgs) > 0 {
		c = cfgs[0]
	}
	if c.Address != 0 {
		d.Address = c.Address
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Millisecond
	}
	if c.CollectTimeout <= 0 {
		c.CollectTimeout = 250 * time.Millisecond
	}
	d.cfg = c

	st, err := d.Status()
	if err != nil {
		return err
	}
	if st&statusCalibrated != 0 {
		return nil
	}
	if err := d.bus.Tx(d.Address, []byte{cmdInitialize, 0x08, 0x00}, nil); err != nil {
		return err
	}
	// Calibration needs a moment before the first trigger.
	time.Sleep(10 * time.Millisecond)
	return nil
}

// Reset issues a soft reset. Allow ~20 ms before the next transaction.
func (d *Device) Reset() error {
	return d.bus.Tx(d.Address, []byte{cmdSoftReset}, nil)
}

// Status reads the status byte.
func (d *Device) Status() (byte, error) {
	if err := d.bus.Tx(d.Address, []byte{cmdStatus}, d.buf[:1]); err != nil {
		return 0, err
	}
	return d.buf[0], nil
}

// Connected reports whether the part answers its status command.
func (d *Device) Connected() bool {
	_, err := d.Status()
	return err == nil
}

// Trigger starts one measurement. Non-blocking; the conversion takes about
// 80 ms.
func (d *Device) Trigger() error {
	return d.bus.Tx(d.Address, []byte{cmdTrigger, 0x33, 0x00}, nil)
}

// Collect fetches a finished measurement. ErrNotReady means the conversion
// is still running.
func (d *Device) Collect(out *Sample) error {
	data := d.buf[:]
	if err := d.bus.Tx(d.Address, nil, data); err != nil {
		return err
	}
	if data[0]&statusCalibrated == 0 || data[0]&statusBusy != 0 {
		return ErrNotReady
	}
	out.RawHumidity = uint32(data[1])<<12 | uint32(data[2])<<4 | uint32(data[3])>>4
	out.RawTemp = uint32(data[3]&0x0F)<<16 | uint32(data[4])<<8 | uint32(data[5])
	return nil
}

// Read performs a full cycle: Trigger, then bounded polling until Collect
// succeeds or CollectTimeout elapses.
func (d *Device) Read() (Sample, error) {
	var s Sample
	if d.cfg.PollInterval == 0 {
		if err := d.Configure(); err != nil {
			return s, err
		}
	}
	if err := d.Trigger(); err != nil {
		return s, err
	}
	deadline := time.Now().Add(d.cfg.CollectTimeout)
	for {
		err := d.Collect(&s)
		if err == nil {
			return s, nil
		}
		if err != ErrNotReady {
			return s, err
		}
		if time.Now().After(deadline) {
			return s, ErrTimeout
		}
		time.Sleep(d.cfg.PollInterval)
	}
}

// Sample holds one raw measurement.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

// DeciRelHumidity returns tenths of %RH.
func (s Sample) DeciRelHumidity() int32 {
	return int32(s.RawHumidity) * 1000 / 0x100000
}

// DeciCelsius returns tenths of a degree Celsius.
func (s Sample) DeciCelsius() int32 {
	return int32(s.RawTemp)*2000/0x100000 - 500
}
