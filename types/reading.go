package types

import "time"

// SensorReading is the single stable shape every plugin and the ToF manager
// expose to downstream consumers (navigation, power, safety, telemetry).
// Immutable once produced.
type SensorReading struct {
	Timestamp time.Time      `json:"timestamp"`
	SensorID  string         `json:"sensor_id"`
	Value     float64        `json:"value"`
	Unit      string         `json:"unit"`
	Quality   float64        `json:"quality"` // [0,1]
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Typed detail payloads carried in Metadata["detail"] by the richer plugins.

type ToFDetail struct {
	DistanceMM  int32  `json:"distance_mm"`
	RangeValid  bool   `json:"range_valid"`
	TargetAddr  uint8  `json:"target_addr"`
	SensorState string `json:"sensor_state"` // SensorStatus value
}

type GPSDetail struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	AltitudeM float64 `json:"alt_m"`
	FixOK     bool    `json:"fix_ok"`
	Sats      int     `json:"sats"`
}

type IMUDetail struct {
	RollDeg  float64 `json:"roll_deg"`
	PitchDeg float64 `json:"pitch_deg"`
	YawDeg   float64 `json:"yaw_deg"`
}

type PowerDetail struct {
	Channel   int     `json:"channel"`
	BusMilliV int32   `json:"bus_mV"`
	MilliA    int32   `json:"mA"`
	Watts     float64 `json:"w"`
}

type EnvironmentalDetail struct {
	TempMilliC    int32 `json:"temp_mC"`
	HumidityDeciP int32 `json:"humidity_dp"` // deci-percent RH
	PressurePa    int32 `json:"pressure_pa"`
}
