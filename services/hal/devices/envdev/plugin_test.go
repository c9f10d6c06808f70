package envdev

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"mowercode-go/drivers/aht20"
	"mowercode-go/services/hal"
	"mowercode-go/services/hal/simio"
	"mowercode-go/types"
)

// ahtModel speaks the AHT20 wire protocol: status query, calibration init,
// trigger, burst readout. Conversions complete instantly.
type ahtModel struct {
	calibrated bool
	inits      int
	humidity   uint32
	temp       uint32
}

func (m *ahtModel) status() byte {
	var st byte
	if m.calibrated {
		st |= 0x08
	}
	return st
}

func (m *ahtModel) Tx(w, r []byte) error {
	if len(w) > 0 {
		switch w[0] {
		case 0x71:
			if len(r) > 0 {
				r[0] = m.status()
			}
		case 0xBE:
			m.inits++
			m.calibrated = true
		case 0xAC:
			// Conversion is modelled as instantaneous.
		}
		return nil
	}
	if len(r) >= 6 {
		r[0] = m.status()
		r[1] = byte(m.humidity >> 12)
		r[2] = byte(m.humidity >> 4)
		r[3] = byte(m.humidity&0x0F)<<4 | byte(m.temp>>16)
		r[4] = byte(m.temp >> 8)
		r[5] = byte(m.temp)
	}
	return nil
}

func newTestPlugin(t *testing.T, model *ahtModel) (*plugin, *simio.Backend) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := simio.NewBackend()
	backend.Bus().Attach(aht20.Address, model)

	i2c := hal.NewI2CManager(log, hal.RetryPolicy{
		MaxRetries:    1,
		BaseDelay:     time.Microsecond,
		MaxDelay:      10 * time.Microsecond,
		BackoffFactor: 2.0,
	})
	if err := i2c.Initialize(backend, 1, map[string]uint16{"env": aht20.Address}); err != nil {
		t.Fatalf("i2c init: %v", err)
	}

	p, err := build(hal.BuildInput{
		Name:     "env",
		Config:   types.PluginConfig{Name: "env", Kind: types.KindEnvironmental, Enabled: true},
		Managers: hal.Managers{I2C: i2c},
		Log:      log,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return p.(*plugin), backend
}

func TestInitCalibratesUncalibratedPart(t *testing.T) {
	model := &ahtModel{calibrated: false}
	p, _ := newTestPlugin(t, model)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if model.inits != 1 {
		t.Fatalf("init commands = %d, want 1", model.inits)
	}
}

func TestInitSkipsCalibratedPart(t *testing.T) {
	model := &ahtModel{calibrated: true}
	p, _ := newTestPlugin(t, model)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if model.inits != 0 {
		t.Fatalf("init commands = %d, want 0", model.inits)
	}
}

func TestReadReportsTemperatureAndHumidity(t *testing.T) {
	// 0x80000 raw humidity is 50.0 %RH; 0x60000 raw temp is 25.0 C.
	model := &ahtModel{calibrated: true, humidity: 0x80000, temp: 0x60000}
	p, _ := newTestPlugin(t, model)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	r, err := p.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if r.Value != 25.0 || r.Unit != "C" {
		t.Fatalf("reading = %v %s", r.Value, r.Unit)
	}
	detail := r.Metadata["detail"].(types.EnvironmentalDetail)
	if detail.TempMilliC != 25000 {
		t.Fatalf("temp = %d milli-C", detail.TempMilliC)
	}
	if detail.HumidityDeciP != 500 {
		t.Fatalf("humidity = %d deci-%%", detail.HumidityDeciP)
	}
}

func TestHealthCheckFailsWhenPartVanishes(t *testing.T) {
	model := &ahtModel{calibrated: true}
	p, backend := newTestPlugin(t, model)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !p.HealthCheck(context.Background()) {
		t.Fatal("present part reported unhealthy")
	}
	backend.Bus().Detach(aht20.Address)
	if p.HealthCheck(context.Background()) {
		t.Fatal("vanished part reported healthy")
	}
}
