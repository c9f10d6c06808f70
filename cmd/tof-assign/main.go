// tof-assign runs the GPIO-sequenced distance sensor bring-up as a separate
// process and exits, leaving the sensors answering at their target
// addresses with their shutdown pins held high. The daemon invokes it in
// no-GPIO mode when the sensors are missing, which keeps pin ownership out
// of the long-running process.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"mowercode-go/services/hal"
	"mowercode-go/services/hal/config"
	"mowercode-go/services/hal/linuxio"
)

func main() {
	var (
		configPath = flag.String("config", "config/devicemap.yaml", "device map path")
		timeout    = flag.Duration("timeout", 20*time.Second, "overall deadline")
	)
	flag.Parse()

	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: time.TimeOnly}))

	if err := run(log, *configPath, *timeout); err != nil {
		log.Error("assign failed", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, configPath string, timeout time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	backend := linuxio.NewBackend()
	defer backend.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	i2c := hal.NewI2CManager(log, hal.DefaultRetryPolicy)
	if err := i2c.Initialize(backend, cfg.I2CBus, nil); err != nil {
		return err
	}
	gpio := hal.NewGPIOManager(log, hal.NewPinManager())
	if err := gpio.Initialize(backend); err != nil {
		return err
	}

	// Forcing never-mode runs the full sequencing protocol regardless of
	// any persisted confirmation.
	tof := hal.NewToFSensorManager(log, hal.ToFManagerConfig{
		Sensors: cfg.ToF.Sensors,
		Mode:    hal.ToFModeNever,
	}, gpio, i2c)
	if err := tof.Initialize(ctx); err != nil {
		return err
	}

	// Deliberately no tof.Shutdown here: dropping the shutdown pins would
	// reset the sensors back to the factory address.
	status := tof.Status()
	out, _ := json.MarshalIndent(status, "", "  ")
	os.Stdout.Write(append(out, '\n'))
	return nil
}
