package types

// ---- Common HAL state (retained) ----

type HALState struct {
	Level  string `json:"level"`  // e.g. "idle", "ready", "stopped"
	Status string `json:"status"` // freeform short code
	TS     int64  `json:"ts_ms"`
}

// Link is the link/state reported for a device or plugin.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

// ---- Sensor lifecycle ----

// SensorStatus classifies a sensor by recent read quality, not by whether a
// driver object merely exists. The string values are a stable contract for
// telemetry consumers.
type SensorStatus string

const (
	StatusNotInitialized SensorStatus = "not_initialized"
	StatusInitializing   SensorStatus = "initializing"
	StatusOK             SensorStatus = "ok"
)

// ---- Step results (orchestrator init) ----

// StepOutcome tags one initialization step. Optional subsystems degrade
// instead of failing the whole interface.
type StepOutcome string

const (
	StepOK       StepOutcome = "ok"
	StepDegraded StepOutcome = "degraded"
	StepFailed   StepOutcome = "failed"
)

type StepResult struct {
	Name    string      `json:"name"`
	Outcome StepOutcome `json:"outcome"`
	Reason  string      `json:"reason,omitempty"`
}

// ---- Plugin kinds ----

// PluginKind is the closed set of plugin types the HAL can load.
type PluginKind string

const (
	KindToF           PluginKind = "tof"
	KindPowerMonitor  PluginKind = "power_monitor"
	KindRoboHAT       PluginKind = "robohat"
	KindGPS           PluginKind = "gps"
	KindIMU           PluginKind = "imu"
	KindEnvironmental PluginKind = "environmental"
)
