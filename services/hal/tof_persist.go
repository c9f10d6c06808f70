package hal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// noGPIOFlagFile is the only state this core persists across process runs.
// Its presence with no_gpio_always=true means both reserved ToF addresses
// were once observed simultaneously on the bus, so future runs may skip the
// GPIO sequencing protocol entirely.
const noGPIOFlagFile = "tof_no_gpio.json"

type noGPIOFlag struct {
	NoGPIOAlways bool   `json:"no_gpio_always"`
	ConfirmedAt  string `json:"confirmed_at"`
	Note         string `json:"note"`
}

// loadNoGPIOFlag reads the persisted flag. Absence (or garbage) means
// "not yet confirmed".
func loadNoGPIOFlag(dataDir string) (noGPIOFlag, bool) {
	raw, err := os.ReadFile(filepath.Join(dataDir, noGPIOFlagFile))
	if err != nil {
		return noGPIOFlag{}, false
	}
	var f noGPIOFlag
	if err := json.Unmarshal(raw, &f); err != nil {
		return noGPIOFlag{}, false
	}
	return f, true
}

// saveNoGPIOFlag records that both reserved addresses were observed together.
func saveNoGPIOFlag(dataDir, note string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	f := noGPIOFlag{
		NoGPIOAlways: true,
		ConfirmedAt:  time.Now().UTC().Format(time.RFC3339),
		Note:         note,
	}
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, noGPIOFlagFile), raw, 0o644)
}
