// Package gpsdev parses NMEA GGA sentences from a serial GPS receiver.
package gpsdev

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"mowercode-go/services/hal"
	"mowercode-go/types"
	"mowercode-go/x/params"
)

func init() { hal.RegisterFactory(types.KindGPS, build) }

const readTimeout = 500 * time.Millisecond

// Parameters: "device" names the serial device (default "gps").
func build(in hal.BuildInput) (hal.Plugin, error) {
	return &plugin{
		name:   in.Name,
		serial: in.Managers.Serial,
		log:    in.Log,
		device: params.String(in.Config.Parameters, "device", "gps"),
	}, nil
}

type plugin struct {
	name   string
	serial *hal.SerialManager
	log    *slog.Logger
	device string

	lastFix time.Time
}

func (p *plugin) Kind() types.PluginKind   { return types.KindGPS }
func (p *plugin) Required() hal.ManagerSet { return hal.NeedSerial }

func (p *plugin) Init(ctx context.Context) error { return nil }

// Read drains sentences until it finds a GGA fix or the port runs dry.
func (p *plugin) Read(ctx context.Context) (*types.SensorReading, error) {
	for {
		line, ok, err := p.serial.ReadLine(ctx, p.device, readTimeout)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		detail, ok := parseGGA(line)
		if !ok {
			continue
		}
		if detail.FixOK {
			p.lastFix = time.Now()
		}
		quality := 0.0
		if detail.FixOK {
			quality = 1.0
			if detail.Sats < 6 {
				quality = 0.6
			}
		}
		return &types.SensorReading{
			Timestamp: time.Now(),
			SensorID:  p.name,
			Value:     float64(detail.Sats),
			Unit:      "sats",
			Quality:   quality,
			Metadata:  map[string]any{"detail": detail},
		}, nil
	}
}

// parseGGA handles $xxGGA: time, lat, N/S, lon, E/W, fix, sats, hdop, alt.
func parseGGA(line string) (types.GPSDetail, bool) {
	var d types.GPSDetail
	if i := strings.IndexByte(line, '*'); i >= 0 {
		line = line[:i]
	}
	if !strings.HasPrefix(line, "$") {
		return d, false
	}
	fields := strings.Split(line[1:], ",")
	if len(fields) < 10 || !strings.HasSuffix(fields[0], "GGA") {
		return d, false
	}
	fix, _ := strconv.Atoi(fields[6])
	d.FixOK = fix > 0
	d.Sats, _ = strconv.Atoi(fields[7])
	if lat, err := parseCoord(fields[2], fields[3]); err == nil {
		d.Latitude = lat
	}
	if lon, err := parseCoord(fields[4], fields[5]); err == nil {
		d.Longitude = lon
	}
	d.AltitudeM, _ = strconv.ParseFloat(fields[9], 64)
	return d, true
}

// parseCoord converts NMEA ddmm.mmmm plus hemisphere to decimal degrees.
func parseCoord(val, hemi string) (float64, error) {
	if val == "" {
		return 0, fmt.Errorf("gps: empty coordinate")
	}
	raw, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, err
	}
	deg := float64(int(raw / 100))
	min := raw - deg*100
	out := deg + min/60
	if hemi == "S" || hemi == "W" {
		out = -out
	}
	return out, nil
}

// HealthCheck passes while fixes are recent; a receiver that has lost the
// sky for a minute is reported unhealthy, it does not get reloaded back to
// health.
func (p *plugin) HealthCheck(ctx context.Context) bool {
	h, ok := p.serial.Health(p.device)
	if !ok || !h.Healthy() {
		return false
	}
	return p.lastFix.IsZero() || time.Since(p.lastFix) < time.Minute
}

func (p *plugin) Shutdown(ctx context.Context) error { return nil }
