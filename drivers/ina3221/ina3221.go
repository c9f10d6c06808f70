// Package ina3221 drives the TI INA3221 triple-channel bus voltage and shunt
// current monitor. Only the measurement path is implemented: configuration,
// identity check, and per-channel bus/shunt reads.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided, without releasing the bus.
package ina3221

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Address is the default 7-bit address (A0 to GND).
const Address = 0x40

// Channels supported by the part.
const NumChannels = 3

// Registers.
const (
	regConfig         = 0x00
	regShuntV1        = 0x01
	regBusV1          = 0x02
	regManufacturerID = 0xFE
	regDieID          = 0xFF

	manufacturerTI = 0x5449 // "TI"

	// Continuous shunt+bus on all three channels, default averaging.
	configDefault = 0x7127
)

// Scale factors per datasheet.
const (
	shuntLSBMicroV = 40 // 40 uV per bit
	busLSBMilliV   = 8  // 8 mV per bit
)

var (
	ErrBadIdentity    = errors.New("ina3221: manufacturer id mismatch")
	ErrInvalidChannel = errors.New("ina3221: invalid channel")
)

// Config controls construction-time options.
type Config struct {
	// Address defaults to 0x40 if zero.
	Address uint16
	// ShuntMilliOhm is the per-channel shunt resistor value used to convert
	// shunt voltage to current. Defaults to 100 mOhm.
	ShuntMilliOhm [NumChannels]uint32
}

// Device wraps an I2C connection to an INA3221.
type Device struct {
	bus     drivers.I2C
	Address uint16

	shunt [NumChannels]uint32
	buf   [2]byte
}

// New creates a device object. It does not touch the hardware.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address}
}

// Configure verifies identity and programs continuous measurement.
func (d *Device) Configure(cfgs ...Config) error {
	d.shunt = [NumChannels]uint32{100, 100, 100}
	if len(cfgs) > 0 {
		c := cfgs[0]
		if c.Address != 0 {
			d.Address = c.Address
		}
		for i, m := range c.ShuntMilliOhm {
			if m > 0 {
				d.shunt[i] = m
			}
		}
	}
	id, err := d.readReg16(regManufacturerID)
	if err != nil {
		return err
	}
	if id != manufacturerTI {
		return ErrBadIdentity
	}
	return d.writeReg16(regConfig, configDefault)
}

// Connected reports whether a part answers with the TI manufacturer id.
func (d *Device) Connected() bool {
	id, err := d.readReg16(regManufacturerID)
	return err == nil && id == manufacturerTI
}

// BusMilliVolts returns the bus voltage on channel 1..3.
func (d *Device) BusMilliVolts(channel int) (int32, error) {
	if channel < 1 || channel > NumChannels {
		return 0, ErrInvalidChannel
	}
	raw, err := d.readReg16(regBusV1 + uint8(2*(channel-1)))
	if err != nil {
		return 0, err
	}
	// Bus voltage is a 13-bit value left-aligned with 3 dead LSBs.
	return int32(int16(raw)) / 8 * busLSBMilliV, nil
}

// ShuntMicroVolts returns the shunt voltage drop on channel 1..3.
func (d *Device) ShuntMicroVolts(channel int) (int32, error) {
	if channel < 1 || channel > NumChannels {
		return 0, ErrInvalidChannel
	}
	raw, err := d.readReg16(regShuntV1 + uint8(2*(channel-1)))
	if err != nil {
		return 0, err
	}
	return int32(int16(raw)) / 8 * shuntLSBMicroV, nil
}

// CurrentMilliAmps derives the channel current from the shunt drop and the
// configured shunt resistance.
func (d *Device) CurrentMilliAmps(channel int) (int32, error) {
	uv, err := d.ShuntMicroVolts(channel)
	if err != nil {
		return 0, err
	}
	r := d.shunt[channel-1]
	if r == 0 {
		r = 100
	}
	return uv * 1000 / int32(r) / 1000, nil
}

// ---- register helpers ----

func (d *Device) readReg16(reg uint8) (uint16, error) {
	if err := d.bus.Tx(d.Address, []byte{reg}, d.buf[:2]); err != nil {
		return 0, err
	}
	return uint16(d.buf[0])<<8 | uint16(d.buf[1]), nil
}

func (d *Device) writeReg16(reg uint8, val uint16) error {
	return d.bus.Tx(d.Address, []byte{reg, byte(val >> 8), byte(val)}, nil)
}
