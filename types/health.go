package types

import "time"

// DeviceHealthSnapshot is the read-only view of a DeviceHealth counter set,
// reported through the health boundary.
type DeviceHealthSnapshot struct {
	LastSuccess         time.Time `json:"last_success"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalReads          uint64    `json:"total_reads"`
	TotalFailures       uint64    `json:"total_failures"`
	Connected           bool      `json:"connected"`
	Healthy             bool      `json:"healthy"`
	SuccessRate         float64   `json:"success_rate"`
}

// ToFSensorStatus is one entry of the ToF manager's status report.
type ToFSensorStatus struct {
	Name           string       `json:"name"`
	Status         SensorStatus `json:"status"`
	TargetAddress  uint8        `json:"target_address"`
	LastDistanceMM int32        `json:"last_distance_mm"`
	GoodReadStreak uint32       `json:"good_read_streak"`
	LastGood       time.Time    `json:"last_good"`
	LastRead       time.Time    `json:"last_read"`
	Simulated      bool         `json:"simulated"`
}

// SystemHealth is the aggregate report returned by the orchestrator.
// Field names are a stable contract for telemetry and operational tooling.
type SystemHealth struct {
	Healthy     bool                            `json:"healthy"`
	GracePeriod bool                            `json:"grace_period"`
	SessionID   string                          `json:"session_id"`
	Uptime      time.Duration                   `json:"uptime"`
	Plugins     map[string]bool                 `json:"plugins"`
	I2CDevices  map[string]DeviceHealthSnapshot `json:"i2c_devices"`
	ToFSensors  map[string]ToFSensorStatus      `json:"tof_sensors"`
	Steps       []StepResult                    `json:"steps,omitempty"`
	GeneratedAt time.Time                       `json:"generated_at"`
}
