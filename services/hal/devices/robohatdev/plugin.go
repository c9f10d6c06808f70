// Package robohatdev talks to the RoboHAT MM1 motor controller over serial.
// Outbound lines carry steering/throttle pulse widths; inbound lines echo
// the RC receiver state, which Read surfaces as a reading.
package robohatdev

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"mowercode-go/errcode"
	"mowercode-go/services/hal"
	"mowercode-go/types"
	"mowercode-go/x/mathx"
	"mowercode-go/x/params"
)

func init() { hal.RegisterFactory(types.KindRoboHAT, build) }

const (
	pulseMinUS     = 1000
	pulseNeutralUS = 1500
	pulseMaxUS     = 2000
	readTimeout    = 250 * time.Millisecond
)

// Parameters: "device" names the serial device (default "robohat").
func build(in hal.BuildInput) (hal.Plugin, error) {
	return &plugin{
		name:   in.Name,
		serial: in.Managers.Serial,
		log:    in.Log,
		device: params.String(in.Config.Parameters, "device", "robohat"),
	}, nil
}

type plugin struct {
	name   string
	serial *hal.SerialManager
	log    *slog.Logger
	device string
}

func (p *plugin) Kind() types.PluginKind   { return types.KindRoboHAT }
func (p *plugin) Required() hal.ManagerSet { return hal.NeedSerial }

func (p *plugin) Init(ctx context.Context) error {
	// Neutral pulses on both channels so the drive train starts stopped.
	if err := p.SetPWM(ctx, pulseNeutralUS, pulseNeutralUS); err != nil {
		return err
	}
	return nil
}

// SetPWM commands steering and throttle pulse widths in microseconds,
// clamped to the servo-safe band.
func (p *plugin) SetPWM(ctx context.Context, steeringUS, throttleUS int) error {
	steeringUS = mathx.Clamp(steeringUS, pulseMinUS, pulseMaxUS)
	throttleUS = mathx.Clamp(throttleUS, pulseMinUS, pulseMaxUS)
	line := fmt.Sprintf("%d, %d", steeringUS, throttleUS)
	if err := p.serial.WriteCommand(ctx, p.device, line); err != nil {
		return errcode.Wrap(errcode.Communication, "robohat.set_pwm", err)
	}
	return nil
}

// Stop drives both channels to neutral.
func (p *plugin) Stop(ctx context.Context) error {
	return p.SetPWM(ctx, pulseNeutralUS, pulseNeutralUS)
}

// Read drains one RC telemetry line ("<steering_us>, <throttle_us>") and
// reports the throttle pulse as the reading value.
func (p *plugin) Read(ctx context.Context) (*types.SensorReading, error) {
	line, ok, err := p.serial.ReadLine(ctx, p.device, readTimeout)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	steering, throttle, err := parseRCLine(line)
	if err != nil {
		p.log.Debug("unparseable rc line", "line", line, "err", err)
		return nil, nil
	}
	return &types.SensorReading{
		Timestamp: time.Now(),
		SensorID:  p.name,
		Value:     float64(throttle),
		Unit:      "us",
		Quality:   1,
		Metadata: map[string]any{
			"steering_us": steering,
			"throttle_us": throttle,
		},
	}, nil
}

func parseRCLine(line string) (steering, throttle int, err error) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("robohat: want 2 fields, got %d", len(parts))
	}
	steering, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	throttle, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return steering, throttle, nil
}

func (p *plugin) HealthCheck(ctx context.Context) bool {
	h, ok := p.serial.Health(p.device)
	if !ok {
		return false
	}
	return h.Healthy()
}

// Shutdown leaves the controller commanded to neutral.
func (p *plugin) Shutdown(ctx context.Context) error {
	return p.Stop(ctx)
}
