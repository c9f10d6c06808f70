// mowerhal is the hardware abstraction daemon: it owns the I2C bus, GPIO
// pins, serial ports and camera, loads the configured device plugins, and
// serves readings and health over the in-process bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"mowercode-go/bus"
	svcconfig "mowercode-go/services/config"
	"mowercode-go/services/hal"
	"mowercode-go/services/hal/config"
	"mowercode-go/services/hal/linuxio"
	"mowercode-go/services/hal/simio"
	"mowercode-go/services/heartbeat"
	"mowercode-go/types"

	_ "mowercode-go/services/hal/devices/envdev"
	_ "mowercode-go/services/hal/devices/gpsdev"
	_ "mowercode-go/services/hal/devices/imudev"
	_ "mowercode-go/services/hal/devices/powerdev"
	_ "mowercode-go/services/hal/devices/robohatdev"
	_ "mowercode-go/services/hal/devices/tofdev"
)

func main() {
	var (
		configPath   = flag.String("config", "config/devicemap.yaml", "device map path")
		servicesPath = flag.String("services", "config/services.yaml", "service settings path")
		backendName  = flag.String("backend", "linux", "hardware backend: linux or sim")
		dataDir      = flag.String("data", "data", "writable state directory")
		logLevel     = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	log := newLogger(*logLevel)

	if err := run(log, *configPath, *servicesPath, *backendName, *dataDir); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, configPath, servicesPath, backendName, dataDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var backend hal.Backend
	switch backendName {
	case "linux":
		b := linuxio.NewBackend()
		defer b.Close()
		backend = b
	case "sim":
		backend = newSimBackend()
	default:
		return fmt.Errorf("unknown backend %q", backendName)
	}

	b := bus.NewBus(64)
	h := hal.New(log, hal.Options{
		Config:  cfg,
		Backend: backend,
		Bus:     b,
		DataDir: dataDir,
		SaveConfig: func(m types.DeviceMap) error {
			return config.Save(configPath, m)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ok, err := h.Initialize(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("initialization did not reach a usable state")
	}
	for _, step := range h.StepResults() {
		log.Info("init step", "step", step.Name, "outcome", step.Outcome, "reason", step.Reason)
	}

	// Retained config sections go out before consumers subscribe, but the
	// bus replays them regardless, so ordering here is cosmetic.
	svccfg := svcconfig.New(log, servicesPath)
	if err := svccfg.Start(ctx, b.NewConnection("config")); err != nil {
		log.Warn("service config unavailable", "err", err)
	}

	hb := heartbeat.New(log, h.SessionID(), time.Second)
	if err := hb.Start(ctx, b.NewConnection("heartbeat")); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutting down")

	cctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return h.Cleanup(cctx)
}

// newSimBackend populates the simulated bus with the reference hardware so
// the daemon runs end to end on a desk.
func newSimBackend() *simio.Backend {
	b := simio.NewBackend()
	simio.NewVL53L0X(b.Bus(), 0x29, 450)
	simio.NewVL53L0X(b.Bus(), 0x30, 800)
	ina := simio.NewINA3221(b.Bus(), 0x40)
	_ = ina.SetChannel(1, 12600, 5000)
	return b
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	}))
}
