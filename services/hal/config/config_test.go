package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mowercode-go/types"
)

func TestLoadMissingFileYieldsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "devicemap.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.NoError(t, Validate(cfg))
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devicemap.yaml")
	doc := `
i2c:
  power_monitor: 0x40
tof:
  sensors:
    - name: tof_left
      shutdown_pin: 22
      target_address: 0x29
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.I2CBus, "bus number defaults to 1")
	require.Equal(t, "auto", cfg.ToF.Mode)
	require.Equal(t, uint32(33000), cfg.ToF.Sensors[0].TimingBudgetMicros)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devicemap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plugins: {not: [a, list"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateDuplicatePluginNames(t *testing.T) {
	cfg := Default()
	cfg.Plugins = append(cfg.Plugins, cfg.Plugins[0])
	err := Validate(cfg)
	require.ErrorContains(t, err, "duplicate plugin name")
}

func TestValidateToFAddressCollision(t *testing.T) {
	cfg := Default()
	cfg.ToF.Sensors[1].TargetAddress = cfg.ToF.Sensors[0].TargetAddress
	err := Validate(cfg)
	require.ErrorContains(t, err, "share address")
}

func TestValidateToFZeroAddress(t *testing.T) {
	cfg := Default()
	cfg.ToF.Sensors[0].TargetAddress = 0
	err := Validate(cfg)
	require.ErrorContains(t, err, "no target address")
}

func TestValidateSerialParams(t *testing.T) {
	cfg := Default()
	cfg.Serial["robohat"] = types.SerialParams{Port: "", Baud: 115200}
	require.Error(t, Validate(cfg), "empty port must fail validation")

	cfg = Default()
	cfg.Serial["robohat"] = types.SerialParams{Port: "/dev/ttyS0", Baud: 0}
	require.Error(t, Validate(cfg), "zero baud must fail validation")
}

func TestValidateDescendsIntoElements(t *testing.T) {
	cfg := Default()
	cfg.Plugins[0].Name = ""
	require.Error(t, Validate(cfg), "nameless plugin must fail validation")

	cfg = Default()
	cfg.ToF.Sensors[0].Name = ""
	require.Error(t, Validate(cfg), "nameless tof sensor must fail validation")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "devicemap.yaml")
	cfg := Default()
	cfg.Plugins[2].Enabled = false
	cfg.I2C["imu"] = 0x68

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestSaveRefusesInvalidMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devicemap.yaml")
	cfg := Default()
	cfg.ToF.Sensors[0].TargetAddress = 0
	require.Error(t, Save(path, cfg))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "invalid map must not be written")
}
