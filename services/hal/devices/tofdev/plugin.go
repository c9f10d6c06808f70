// Package tofdev exposes the distance sensor pair as a loadable plugin, so
// navigation consumes obstacle clearance through the same reading shape as
// every other sensor.
package tofdev

import (
	"context"
	"log/slog"
	"time"

	"mowercode-go/drivers/vl53l0x"
	"mowercode-go/services/hal"
	"mowercode-go/types"
)

func init() { hal.RegisterFactory(types.KindToF, build) }

func build(in hal.BuildInput) (hal.Plugin, error) {
	return &plugin{name: in.Name, tof: in.Managers.ToF, log: in.Log}, nil
}

// plugin delegates to the ToF manager. Its own Read reports the nearest
// obstacle across all sensors, which is the value safety logic wants.
type plugin struct {
	name string
	tof  *hal.ToFSensorManager
	log  *slog.Logger
}

func (p *plugin) Kind() types.PluginKind   { return types.KindToF }
func (p *plugin) Required() hal.ManagerSet { return hal.NeedToF }

func (p *plugin) Init(ctx context.Context) error {
	// The manager is initialized by the orchestrator; nothing to claim here.
	return nil
}

func (p *plugin) Read(ctx context.Context) (*types.SensorReading, error) {
	readings := p.tof.ReadAll(ctx)
	if len(readings) == 0 {
		return nil, nil
	}
	var nearest *types.SensorReading
	for _, r := range readings {
		if r == nil {
			continue
		}
		if nearest == nil || r.Value < nearest.Value {
			nearest = r
		}
	}
	if nearest == nil {
		return nil, nil
	}
	return &types.SensorReading{
		Timestamp: time.Now(),
		SensorID:  p.name,
		Value:     nearest.Value,
		Unit:      "mm",
		Quality:   nearest.Quality,
		Metadata: map[string]any{
			"nearest":    nearest.SensorID,
			"range_max":  vl53l0x.MaxValidRangeMM,
			"per_sensor": readings,
		},
	}, nil
}

// HealthCheck uses the plugin-facing view: sensors still warming up their
// read streak are serving data and must not trip a reload.
func (p *plugin) HealthCheck(ctx context.Context) bool { return p.tof.Usable() }

func (p *plugin) Shutdown(ctx context.Context) error {
	// The manager owns the hardware and is shut down by the orchestrator.
	return nil
}
