// i2c-scan probes a bus and prints every answering address, the same probe
// the HAL itself uses. Handy when a sensor has wandered off its expected
// address.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"mowercode-go/services/hal"
	"mowercode-go/services/hal/linuxio"
)

func main() {
	busNumber := flag.Int("bus", 1, "i2c bus number")
	flag.Parse()

	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelWarn,
		TimeFormat: time.TimeOnly,
	}))

	backend := linuxio.NewBackend()
	defer backend.Close()

	m := hal.NewI2CManager(log, hal.DefaultRetryPolicy)
	if err := m.Initialize(backend, *busNumber, nil); err != nil {
		log.Error("open bus", "err", err)
		os.Exit(1)
	}

	addrs := m.ScanDevices()
	if len(addrs) == 0 {
		fmt.Printf("bus %d: no devices\n", *busNumber)
		return
	}
	fmt.Printf("bus %d: %d device(s)\n", *busNumber, len(addrs))
	for _, a := range addrs {
		fmt.Printf("  0x%02x\n", a)
	}
}
