// Package powerdev reads battery bus voltage and current from an INA3221
// triple monitor and reports them as one power reading.
package powerdev

import (
	"context"
	"log/slog"
	"time"

	"mowercode-go/drivers/ina3221"
	"mowercode-go/errcode"
	"mowercode-go/services/hal"
	"mowercode-go/types"
	"mowercode-go/x/params"
)

func init() { hal.RegisterFactory(types.KindPowerMonitor, build) }

// Parameters: "address" (default 0x40), "channel" (default 1, the battery),
// "shunt_mohm" (default 100), "low_voltage_mv" quality floor (default 10500
// for a 3S pack).
func build(in hal.BuildInput) (hal.Plugin, error) {
	p := &plugin{
		name:    in.Name,
		i2c:     in.Managers.I2C,
		log:     in.Log,
		addr:    params.Uint16(in.Config.Parameters, "address", ina3221.Address),
		channel: params.Int(in.Config.Parameters, "channel", 1),
		shunt:   params.Int(in.Config.Parameters, "shunt_mohm", 100),
		lowMV:   params.Int(in.Config.Parameters, "low_voltage_mv", 10500),
	}
	if p.channel < 1 || p.channel > ina3221.NumChannels {
		return nil, errcode.Msgf(errcode.DeviceConfig, "powerdev.build", "channel out of range")
	}
	return p, nil
}

type plugin struct {
	name    string
	i2c     *hal.I2CManager
	log     *slog.Logger
	addr    uint16
	channel int
	shunt   int
	lowMV   int

	dev ina3221.Device
}

func (p *plugin) Kind() types.PluginKind   { return types.KindPowerMonitor }
func (p *plugin) Required() hal.ManagerSet { return hal.NeedI2C }

func (p *plugin) Init(ctx context.Context) error {
	p.dev = ina3221.New(p.i2c.Bus())
	release := p.i2c.DeviceAccess(p.addr)
	defer release()
	cfg := ina3221.Config{Address: p.addr}
	for i := range cfg.ShuntMilliOhm {
		cfg.ShuntMilliOhm[i] = uint32(p.shunt)
	}
	if err := p.dev.Configure(cfg); err != nil {
		return errcode.Wrap(errcode.Hardware, "powerdev.init", err)
	}
	return nil
}

func (p *plugin) Read(ctx context.Context) (*types.SensorReading, error) {
	release := p.i2c.DeviceAccess(p.addr)
	defer release()

	mv, err := p.dev.BusMilliVolts(p.channel)
	if err != nil {
		return nil, errcode.Wrap(errcode.Communication, "powerdev.read", err)
	}
	ma, err := p.dev.CurrentMilliAmps(p.channel)
	if err != nil {
		return nil, errcode.Wrap(errcode.Communication, "powerdev.read", err)
	}

	watts := float64(mv) / 1000 * float64(ma) / 1000
	quality := 1.0
	if int(mv) < p.lowMV {
		quality = 0.5
	}
	return &types.SensorReading{
		Timestamp: time.Now(),
		SensorID:  p.name,
		Value:     float64(mv) / 1000,
		Unit:      "V",
		Quality:   quality,
		Metadata: map[string]any{
			"detail": types.PowerDetail{
				Channel:   p.channel,
				BusMilliV: mv,
				MilliA:    ma,
				Watts:     watts,
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
