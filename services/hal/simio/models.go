package simio

import (
	"fmt"
	"sync"
)

// Register-level models of the two chips the HAL cares about. They answer
// the same transactions the real drivers issue, which keeps the drivers
// themselves untouched under simulation.

// VL53L0X register map subset.
const (
	vlRegSysrangeStart     = 0x00
	vlRegIntervalHi        = 0x04
	vlRegInterruptClear    = 0x0B
	vlRegInterruptStatus   = 0x13
	vlRegResultRangeMM     = 0x1E // RESULT_RANGE_STATUS + 10
	vlRegSlaveAddress      = 0x8A
	vlRegIdentificationID  = 0xC0
	vlModelID              = 0xEE
	vlStartContinuousValue = 0x02
)

// VL53L0X models one distance sensor. While ranging it always has a sample
// pending; SetRange scripts the reported distance.
type VL53L0X struct {
	bus  *I2CBus
	addr uint16

	mu      sync.Mutex
	ranging bool
	pending bool
	rangeMM uint16
}

// NewVL53L0X attaches a sensor model to the bus at an address, reporting a
// fixed initial distance.
func NewVL53L0X(bus *I2CBus, addr uint16, rangeMM uint16) *VL53L0X {
	m := &VL53L0X{bus: bus, addr: addr, rangeMM: rangeMM}
	bus.Attach(addr, m)
	return m
}

// SetRange scripts the next reported distances.
func (m *VL53L0X) SetRange(mm uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rangeMM = mm
}

// Addr reports the model's current bus address.
func (m *VL53L0X) Addr() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Remove detaches the model from the bus, as cutting power would.
func (m *VL53L0X) Remove() {
	m.mu.Lock()
	addr := m.addr
	m.mu.Unlock()
	m.bus.Detach(addr)
}

func (m *VL53L0X) Tx(w, r []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(w) == 0 {
		// Address probe.
		return nil
	}
	reg := w[0]
	if len(w) > 1 {
		return m.write(reg, w[1:])
	}
	return m.read(reg, r)
}

func (m *VL53L0X) write(reg uint8, data []byte) error {
	switch reg {
	case vlRegSysrangeStart:
		m.ranging = len(data) > 0 && data[0] == vlStartContinuousValue
		m.pending = m.ranging
	case vlRegInterruptClear:
		m.pending = m.ranging // next sample is immediately available
	case vlRegIntervalHi:
		// Inter-measurement period; not modelled.
	case vlRegSlaveAddress:
		if len(data) > 0 {
			old := m.addr
			m.addr = uint16(data[0] & 0x7F)
			m.bus.Move(old, m.addr)
		}
	default:
		// Unmodelled writes are accepted silently, as the real part does.
	}
	return nil
}

func (m *VL53L0X) read(reg uint8, r []byte) error {
	switch {
	case reg == vlRegIdentificationID && len(r) >= 1:
		r[0] = vlModelID
	case reg == vlRegInterruptStatus && len(r) >= 1:
		if m.pending {
			r[0] = 0x07
		} else {
			r[0] = 0x00
		}
	case reg == vlRegResultRangeMM && len(r) >= 2:
		r[0] = byte(m.rangeMM >> 8)
		r[1] = byte(m.rangeMM)
	default:
		for i := range r {
			r[i] = 0
		}
	}
	return nil
}

// INA3221 register map subset.
const (
	inaRegConfig   = 0x00
	inaRegShuntV1  = 0x01
	inaRegBusV1    = 0x02
	inaRegManufID  = 0xFE
	inaManufTIWord = 0x5449
)

// INA3221 models the triple power monitor with scripted channel voltages.
type INA3221 struct {
	mu sync.Mutex
	// Raw register values, already in the left-aligned datasheet encoding.
	shuntRaw [3]int16
	busRaw   [3]int16
	config   uint16
}

// NewINA3221 attaches a power monitor model at the given address.
func NewINA3221(bus *I2CBus, addr uint16) *INA3221 {
	m := &INA3221{}
	bus.Attach(addr, m)
	return m
}

// SetChannel scripts one channel, taking engineering units.
func (m *INA3221) SetChannel(channel int, busMilliVolts, shuntMicroVolts int32) error {
	if channel < 1 || channel > 3 {
		return fmt.Errorf("simio: invalid ina3221 channel %d", channel)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busRaw[channel-1] = int16(busMilliVolts / 8 * 8) // 8 mV LSB, 3 dead bits
	m.shuntRaw[channel-1] = int16(shuntMicroVolts / 40 * 8)
	return nil
}

func (m *INA3221) Tx(w, r []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(w) == 0 {
		return nil
	}
	reg := w[0]
	if len(w) >= 3 {
		if reg == inaRegConfig {
			m.config = uint16(w[1])<<8 | uint16(w[2])
		}
		return nil
	}
	if len(r) < 2 {
		return nil
	}
	var val uint16
	switch {
	case reg == inaRegManufID:
		val = inaManufTIWord
	case reg == inaRegConfig:
		val = m.config
	case reg >= inaRegShuntV1 && reg <= inaRegBusV1+4 && (reg-inaRegShuntV1)%2 == 0:
		val = uint16(m.shuntRaw[(reg-inaRegShuntV1)/2])
	case reg >= inaRegBusV1 && reg <= inaRegBusV1+4 && (reg-inaRegBusV1)%2 == 0:
		val = uint16(m.busRaw[(reg-inaRegBusV1)/2])
	}
	r[0] = byte(val >> 8)
	r[1] = byte(val)
	return nil
}
