// Package imudev reads an MPU-6050 inertial unit through the managed I2C
// path and derives roll and pitch from the accelerometer, enough for tilt
// and slope safety checks.
package imudev

import (
	"context"
	"log/slog"
	"math"
	"time"

	"mowercode-go/errcode"
	"mowercode-go/services/hal"
	"mowercode-go/types"
	"mowercode-go/x/params"
)

func init() { hal.RegisterFactory(types.KindIMU, build) }

const (
	regPwrMgmt1  = 0x6B
	regAccelXout = 0x3B
	regWhoAmI    = 0x75
	whoAmIValue  = 0x68

	accelLSBPerG = 16384.0 // +/-2g full scale
)

// Parameters: "i2c_name" is the device-map entry to talk to (default "imu").
func build(in hal.BuildInput) (hal.Plugin, error) {
	return &plugin{
		name:    in.Name,
		i2c:     in.Managers.I2C,
		log:     in.Log,
		i2cName: params.String(in.Config.Parameters, "i2c_name", "imu"),
	}, nil
}

type plugin struct {
	name    string
	i2c     *hal.I2CManager
	log     *slog.Logger
	i2cName string
}

func (p *plugin) Kind() types.PluginKind   { return types.KindIMU }
func (p *plugin) Required() hal.ManagerSet { return hal.NeedI2C }

func (p *plugin) Init(ctx context.Context) error {
	op := "imu.init"
	id, err := p.i2c.ReadRegister(ctx, p.i2cName, regWhoAmI, 1)
	if err != nil {
		return err
	}
	if len(id) != 1 || id[0] != whoAmIValue {
		return errcode.Msgf(errcode.Hardware, op, "who_am_i mismatch")
	}
	// Clear sleep mode; the part boots asleep.
	return p.i2c.WriteRegister(ctx, p.i2cName, regPwrMgmt1, 0x00)
}

func (p *plugin) Read(ctx context.Context) (*types.SensorReading, error) {
	raw, err := p.i2c.ReadRegister(ctx, p.i2cName, regAccelXout, 6)
	if err != nil {
		return nil, err
	}
	ax := float64(int16(uint16(raw[0])<<8|uint16(raw[1]))) / accelLSBPerG
	ay := float64(int16(uint16(raw[2])<<8|uint16(raw[3]))) / accelLSBPerG
	az := float64(int16(uint16(raw[4])<<8|uint16(raw[5]))) / accelLSBPerG

	roll := math.Atan2(ay, az) * 180 / math.Pi
	pitch := math.Atan2(-ax, math.Hypot(ay, az)) * 180 / math.Pi

	// Tilt magnitude is the headline value; a mower on its side reads ~90.
	tilt := math.Max(math.Abs(roll), math.Abs(pitch))
	return &types.SensorReading{
		Timestamp: time.Now(),
		SensorID:  p.name,
		Value:     tilt,
		Unit:      "deg",
		Quality:   1,
		Metadata: map[string]any{
			"detail": types.IMUDetail{RollDeg: roll, PitchDeg: pitch},
		},
	}, nil
}

func (p *plugin) HealthCheck(ctx context.Context) bool {
	id, err := p.i2c.ReadRegister(ctx, p.i2cName, regWhoAmI, 1)
	return err == nil && len(id) == 1 && id[0] == whoAmIValue
}

func (p *plugin) Shutdown(ctx context.Context) error { return nil }
