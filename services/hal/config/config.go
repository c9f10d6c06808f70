// Package config loads, validates and persists the device map the HAL
// consumes. YAML on disk, struct-tag validation, opinionated defaults for
// the standard mower build.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"mowercode-go/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the device map for the reference hardware: two distance
// sensors on the front corners, the power monitor, and the motor
// controller.
func Default() types.DeviceMap {
	return types.DeviceMap{
		I2CBus: 1,
		I2C: map[string]uint16{
			"power_monitor": 0x40,
		},
		Serial: map[string]types.SerialParams{
			"robohat": {Port: "/dev/ttyS0", Baud: 115200},
		},
		ToF: types.ToFConfig{
			Mode: "auto",
			Sensors: []types.ToFSensorConfig{
				{Name: "tof_left", ShutdownPin: 22, TargetAddress: 0x29, TimingBudgetMicros: 33000},
				{Name: "tof_right", ShutdownPin: 23, TargetAddress: 0x30, TimingBudgetMicros: 33000},
			},
		},
		Plugins: []types.PluginConfig{
			{Name: "tof", Kind: types.KindToF, Enabled: true},
			{Name: "power", Kind: types.KindPowerMonitor, Enabled: true},
			{Name: "drive", Kind: types.KindRoboHAT, Enabled: true,
				Parameters: map[string]any{"device": "robohat"}},
		},
	}
}

// Load reads and validates a device map. A missing file yields the default
// map rather than an error, so a fresh install boots.
func Load(path string) (types.DeviceMap, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return types.DeviceMap{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg types.DeviceMap
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return types.DeviceMap{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return types.DeviceMap{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks struct tags plus the cross-field rules tags cannot
// express.
func Validate(cfg types.DeviceMap) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, p := range cfg.Plugins {
		if seen[p.Name] {
			return fmt.Errorf("duplicate plugin name %q", p.Name)
		}
		seen[p.Name] = true
	}
	addrs := map[uint8]string{}
	for _, s := range cfg.ToF.Sensors {
		if s.TargetAddress == 0 {
			return fmt.Errorf("tof sensor %q has no target address", s.Name)
		}
		if prev, dup := addrs[s.TargetAddress]; dup {
			return fmt.Errorf("tof sensors %q and %q share address 0x%02x", prev, s.Name, s.TargetAddress)
		}
		addrs[s.TargetAddress] = s.Name
	}
	return nil
}

func applyDefaults(cfg *types.DeviceMap) {
	if cfg.I2CBus == 0 {
		cfg.I2CBus = 1
	}
	if cfg.ToF.Mode == "" {
		cfg.ToF.Mode = "auto"
	}
	for i := range cfg.ToF.Sensors {
		if cfg.ToF.Sensors[i].TimingBudgetMicros == 0 {
			cfg.ToF.Sensors[i].TimingBudgetMicros = 33000
		}
	}
	normalize(cfg)
}

// normalize drops empty containers so a map that went through marshalling
// compares equal to one built in code: YAML decodes an absent section to nil
// but an empty `{}` to a non-nil empty map.
func normalize(cfg *types.DeviceMap) {
	if len(cfg.I2C) == 0 {
		cfg.I2C = nil
	}
	if len(cfg.Serial) == 0 {
		cfg.Serial = nil
	}
	if len(cfg.GPIO) == 0 {
		cfg.GPIO = nil
	}
	if len(cfg.Plugins) == 0 {
		cfg.Plugins = nil
	}
	for i := range cfg.Plugins {
		if len(cfg.Plugins[i].Parameters) == 0 {
			cfg.Plugins[i].Parameters = nil
		}
	}
	if len(cfg.ToF.Sensors) == 0 {
		cfg.ToF.Sensors = nil
	}
}

// Save writes the device map atomically: temp file in the same directory,
// then rename.
func Save(path string, cfg types.DeviceMap) error {
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config: refusing to save invalid map: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".devicemap-*.yaml")
	if err != nil {
		return fmt.Errorf("config: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("config: rename: %w", err)
	}
	return nil
}
