// Package envdev reports ambient temperature and humidity from an AHT20,
// used for dew detection and motor thermal derating.
package envdev

import (
	"context"
	"log/slog"
	"time"

	"mowercode-go/drivers/aht20"
	"mowercode-go/errcode"
	"mowercode-go/services/hal"
	"mowercode-go/types"
	"mowercode-go/x/params"
)

func init() { hal.RegisterFactory(types.KindEnvironmental, build) }

// Parameters: "address" (default 0x38).
func build(in hal.BuildInput) (hal.Plugin, error) {
	return &plugin{
		name: in.Name,
		i2c:  in.Managers.I2C,
		log:  in.Log,
		addr: params.Uint16(in.Config.Parameters, "address", aht20.Address),
	}, nil
}

type plugin struct {
	name string
	i2c  *hal.I2CManager
	log  *slog.Logger
	addr uint16

	dev aht20.Device
}

func (p *plugin) Kind() types.PluginKind   { return types.KindEnvironmental }
func (p *plugin) Required() hal.ManagerSet { return hal.NeedI2C }

func (p *plugin) Init(ctx context.Context) error {
	p.dev = aht20.New(p.i2c.Bus())
	release := p.i2c.DeviceAccess(p.addr)
	defer release()
	if err := p.dev.Configure(aht20.Config{Address: p.addr}); err != nil {
		return errcode.Wrap(errcode.Hardware, "envdev.init", err)
	}
	return nil
}

func (p *plugin) Read(ctx context.Context) (*types.SensorReading, error) {
	release := p.i2c.DeviceAccess(p.addr)
	s, err := p.dev.Read()
	release()
	if err != nil {
		return nil, errcode.Wrap(errcode.Communication, "envdev.read", err)
	}
	deciC := s.DeciCelsius()
	deciRH := s.DeciRelHumidity()
	return &types.SensorReading{
		Timestamp: time.Now(),
		SensorID:  p.name,
		Value:     float64(deciC) / 10,
		Unit:      "C",
		Quality:   1,
		Metadata: map[string]any{
			"detail": types.EnvironmentalDetail{
				TempMilliC:    deciC * 100,
				HumidityDeciP: deciRH,
			},
		},
	}, nil
}

func (p *plugin) HealthCheck(ctx context.Context) bool {
	release := p.i2c.DeviceAccess(p.addr)
	defer release()
	return p.dev.Connected()
}

func (p *plugin) Shutdown(ctx context.Context) error { return nil }
