// Package vl53l0x provides a compact driver for the VL53L0X time-of-flight
// distance sensor, covering the subset this codebase needs: identity check,
// continuous ranging, timing budget, and runtime I2C address reassignment.
//
//	d := vl53l0x.New(bus)
//	err := d.Configure()          // verify identity, apply defaults
//	d.StartContinuous(0)          // back-to-back ranging
//	mm, err := d.ReadRangeMM()    // ErrNotReady while no sample pending
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided, without releasing the bus.
package vl53l0x

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// DefaultAddress is the factory-programmed 7-bit address every VL53L0X boots
// at. Multi-sensor setups must reassign all but one unit.
const DefaultAddress = 0x29

// MaxValidRangeMM is the plausibility ceiling for a ranging sample. Readings
// at or above it (and zero readings) are treated as invalid everywhere; this
// constant is the single source of truth for the bound.
const MaxValidRangeMM = 2000

// Registers (per datasheet / ST API).
const (
	regSysrangeStart         = 0x00
	regSystemIntervalHi      = 0x04
	regSystemInterruptClear  = 0x0B
	regResultInterruptStatus = 0x13
	regResultRangeStatus     = 0x14
	regSlaveDeviceAddress    = 0x8A
	regIdentificationModelID = 0xC0

	modelID = 0xEE

	startSingle     = 0x01
	startContinuous = 0x02
	startStop       = 0x00
)

// Errors returned by the driver.
var (
	ErrNotReady    = errors.New("vl53l0x: not ready")
	ErrBadIdentity = errors.New("vl53l0x: model id mismatch")
	ErrTimeout     = errors.New("vl53l0x: timeout")
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to DefaultAddress if zero.
	Address uint16
	// PollInterval is used by Read() between ReadRangeMM attempts.
	// Default 10 ms.
	PollInterval time.Duration
	// ReadTimeout bounds the total wait in Read(). Default 200 ms.
	ReadTimeout time.Duration
}

// Device wraps an I2C connection to a VL53L0X. The bus must already be
// configured.
type Device struct {
	bus     drivers.I2C
	Address uint16

	cfg      Config
	budgetUS uint32
	buf      [2]byte
}

// New creates a new device object bound to the bus at the factory address.
// It does not touch the hardware.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: DefaultAddress}
}

// NewAt creates a device object bound to an already-reassigned address.
func NewAt(bus drivers.I2C, addr uint16) Device {
	return Device{bus: bus, Address: addr}
}

// Configure verifies the device identity and applies optional config.
func (d *Device) Configure(cfgs ...Config) error {
	if len(cfgs) > 0 {
		c := cfgs[0]
		if c.Address != 0 {
			d.Address = c.Address
		}
		if c.PollInterval <= 0 {
			c.PollInterval = 10 * time.Millisecond
		}
		if c.ReadTimeout <= 0 {
			c.ReadTimeout = 200 * time.Millisecond
		}
		d.cfg = c
	} else {
		d.cfg = Config{
			Address:      d.Address,
			PollInterval: 10 * time.Millisecond,
			ReadTimeout:  200 * time.Millisecond,
		}
	}
	id, err := d.readReg(regIdentificationModelID)
	if err != nil {
		return err
	}
	if id != modelID {
		return ErrBadIdentity
	}
	return nil
}

// Connected reports whether a device answers at the current address with the
// expected model id.
func (d *Device) Connected() bool {
	id, err := d.readReg(regIdentificationModelID)
	return err == nil && id == modelID
}

// SetMeasurementTimingBudget sets the per-measurement budget in microseconds.
// Larger budgets improve accuracy at the cost of rate. The value is clamped
// to the device minimum of 20000.
func (d *Device) SetMeasurementTimingBudget(us uint32) error {
	if us < 20000 {
		us = 20000
	}
	d.budgetUS = us
	// The full ST sequence tunes several sub-timeouts; writing the inter-
	// measurement period register is sufficient for continuous mode here.
	periodMS := us / 1000
	return d.writeReg16(regSystemIntervalHi, uint16(periodMS))
}

// TimingBudget returns the last applied budget (0 if never set).
func (d *Device) TimingBudget() uint32 { return d.budgetUS }

// StartContinuous begins back-to-back ranging. periodMS of 0 selects the
// fastest back-to-back mode.
func (d *Device) StartContinuous(periodMS uint32) error {
	if periodMS > 0 {
		if err := d.writeReg16(regSystemIntervalHi, uint16(periodMS)); err != nil {
			return err
		}
	}
	return d.writeReg(regSysrangeStart, startContinuous)
}

// StopContinuous halts continuous ranging.
func (d *Device) StopContinuous() error {
	return d.writeReg(regSysrangeStart, startStop)
}

// ReadRangeMM fetches the most recent continuous-mode sample. It returns
// ErrNotReady if no new sample is pending.
func (d *Device) ReadRangeMM() (int32, error) {
	st, err := d.readReg(regResultInterruptStatus)
	if err != nil {
		return 0, err
	}
	if st&0x07 == 0 {
		return 0, ErrNotReady
	}
	// Range result lives at RESULT_RANGE_STATUS + 10, big-endian mm.
	if err := d.bus.Tx(d.Address, []byte{regResultRangeStatus + 10}, d.buf[:2]); err != nil {
		return 0, err
	}
	mm := int32(d.buf[0])<<8 | int32(d.buf[1])
	if err := d.writeReg(regSystemInterruptClear, 0x01); err != nil {
		return 0, err
	}
	return mm, nil
}

// Read performs a bounded blocking read: it polls ReadRangeMM every
// PollInterval until a sample arrives or ReadTimeout elapses.
func (d *Device) Read() (int32, error) {
	if d.cfg.PollInterval == 0 {
		d.cfg.PollInterval = 10 * time.Millisecond
		d.cfg.ReadTimeout = 200 * time.Millisecond
	}
	deadline := time.Now().Add(d.cfg.ReadTimeout)
	for {
		mm, err := d.ReadRangeMM()
		if err == nil {
			return mm, nil
		}
		if err != ErrNotReady {
			return 0, err
		}
		if time.Now().After(deadline) {
			return 0, ErrTimeout
		}
		time.Sleep(d.cfg.PollInterval)
	}
}

// SetAddress reprograms the device's 7-bit I2C address and rebinds the
// driver to it. The new address takes effect immediately; callers should
// re-scan the bus to verify.
func (d *Device) SetAddress(newAddr uint8) error {
	if err := d.writeReg(regSlaveDeviceAddress, newAddr&0x7F); err != nil {
		return err
	}
	d.Address = uint16(newAddr)
	return nil
}

// RangeValid applies the plausibility bound shared by the lifecycle
// classifier and per-reading quality: strictly positive and below
// MaxValidRangeMM.
func RangeValid(mm int32) bool { return mm > 0 && mm < MaxValidRangeMM }

// ---- register helpers ----

func (d *Device) readReg(reg uint8) (uint8, error) {
	if err := d.bus.Tx(d.Address, []byte{reg}, d.buf[:1]); err != nil {
		return 0, err
	}
	return d.buf[0], nil
}

func (d *Device) writeReg(reg, val uint8) error {
	return d.bus.Tx(d.Address, []byte{reg, val}, nil)
}

func (d *Device) writeReg16(reg uint8, val uint16) error {
	return d.bus.Tx(d.Address, []byte{reg, byte(val >> 8), byte(val)}, nil)
}
