package types

import "time"

// DeviceMap is the configuration contract the HAL consumes. How it is loaded
// (file format, defaults) lives in services/hal/config; the core only cares
// about this resulting structure.
type DeviceMap struct {
	I2CBus  int                     `yaml:"i2c_bus" json:"i2c_bus"`                                // linux bus number, default 1
	I2C     map[string]uint16       `yaml:"i2c" json:"i2c"`                                        // name -> 7-bit address
	Serial  map[string]SerialParams `yaml:"serial" json:"serial" validate:"omitempty,dive"`        // name -> port settings
	GPIO    map[string]int          `yaml:"gpio" json:"gpio"`                                      // name -> pin number
	Plugins []PluginConfig          `yaml:"plugins" json:"plugins" validate:"omitempty,dive"`
	ToF     ToFConfig               `yaml:"tof" json:"tof"`
	Camera  CameraConfig            `yaml:"camera" json:"camera"`
	Display DisplayConfig           `yaml:"display" json:"display"`
}

type SerialParams struct {
	Port    string        `yaml:"port" json:"port" validate:"required"`
	Baud    int           `yaml:"baud" json:"baud" validate:"gt=0"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// PluginConfig is owned by configuration; passed by value into plugin
// construction and never mutated by the plugin itself.
type PluginConfig struct {
	Name       string         `yaml:"name" json:"name" validate:"required"`
	Kind       PluginKind     `yaml:"kind" json:"kind" validate:"required"`
	Enabled    bool           `yaml:"enabled" json:"enabled"`
	Parameters map[string]any `yaml:"parameters" json:"parameters"`
}

// ToFSensorConfig is fixed for the process lifetime. Two instances exist by
// default: tof_left@0x29, tof_right@0x30.
type ToFSensorConfig struct {
	Name                   string `yaml:"name" json:"name" validate:"required"`
	ShutdownPin            int    `yaml:"shutdown_pin" json:"shutdown_pin"`
	InterruptPin           *int   `yaml:"interrupt_pin,omitempty" json:"interrupt_pin,omitempty"`
	TargetAddress          uint8  `yaml:"target_address" json:"target_address"`
	TimingBudgetMicros     uint32 `yaml:"timing_budget_us" json:"timing_budget_us"`
	BootWaitMillis         int    `yaml:"boot_wait_ms,omitempty" json:"boot_wait_ms,omitempty"`
	PerSensorTimeoutMillis int    `yaml:"per_sensor_timeout_ms,omitempty" json:"per_sensor_timeout_ms,omitempty"`
}

type ToFConfig struct {
	Sensors        []ToFSensorConfig `yaml:"sensors" json:"sensors" validate:"omitempty,dive"`
	Mode           string            `yaml:"mode" json:"mode" validate:"omitempty,oneof=never auto always"`
	AutoAssign     bool              `yaml:"auto_assign" json:"auto_assign"`
	AssignHelper   string            `yaml:"assign_helper,omitempty" json:"assign_helper,omitempty"`
	RequiredReads  int               `yaml:"required_good_reads,omitempty" json:"required_good_reads,omitempty"`
	GoodReadAgeSec int               `yaml:"good_read_age_s,omitempty" json:"good_read_age_s,omitempty"`
}

type CameraConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Device  string `yaml:"device,omitempty" json:"device,omitempty"`
	Width   int    `yaml:"width,omitempty" json:"width,omitempty"`
	Height  int    `yaml:"height,omitempty" json:"height,omitempty"`
}

type DisplayConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address uint16 `yaml:"address,omitempty" json:"address,omitempty"`
}
