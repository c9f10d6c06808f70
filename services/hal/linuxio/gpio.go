package linuxio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"mowercode-go/services/hal"
)

const gpioRoot = "/sys/class/gpio"

// pinBank hands out sysfs-backed pins, exporting each number once.
type pinBank struct {
	mu   sync.Mutex
	pins map[int]*sysfsPin
}

func newPinBank() *pinBank {
	return &pinBank{pins: map[int]*sysfsPin{}}
}

func (b *pinBank) ByNumber(n int) (hal.GPIOPin, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pins[n]; ok {
		return p, true
	}
	p := &sysfsPin{n: n, dir: filepath.Join(gpioRoot, fmt.Sprintf("gpio%d", n))}
	if err := p.export(); err != nil {
		return nil, false
	}
	b.pins[n] = p
	return p, true
}

// sysfsPin drives one GPIO through /sys/class/gpio. Configuration errors
// surface through the Configure methods; Set and Get are best effort, same
// as the memory-mapped register access they stand in for.
type sysfsPin struct {
	n   int
	dir string
}

func (p *sysfsPin) export() error {
	if _, err := os.Stat(p.dir); err == nil {
		return nil
	}
	if err := os.WriteFile(filepath.Join(gpioRoot, "export"), []byte(strconv.Itoa(p.n)), 0o644); err != nil {
		return fmt.Errorf("linuxio: export gpio%d: %w", p.n, err)
	}
	// udev needs a moment to fix up permissions on the new node.
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join(p.dir, "direction")); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("linuxio: gpio%d did not appear after export", p.n)
}

func (p *sysfsPin) Number() int { return p.n }

func (p *sysfsPin) ConfigureInput(pull hal.Pull) error {
	// Sysfs exposes no pull control; board-level device tree sets bias.
	return p.writeAttr("direction", "in")
}

func (p *sysfsPin) ConfigureOutput(initial bool) error {
	v := "low"
	if initial {
		v = "high"
	}
	// Writing "high"/"low" sets direction and level atomically.
	return p.writeAttr("direction", v)
}

func (p *sysfsPin) Set(level bool) {
	v := "0"
	if level {
		v = "1"
	}
	_ = p.writeAttr("value", v)
}

func (p *sysfsPin) Get() bool {
	data, err := os.ReadFile(filepath.Join(p.dir, "value"))
	if err != nil {
		return false
	}
	return len(data) > 0 && data[0] == '1'
}

func (p *sysfsPin) writeAttr(attr, value string) error {
	if err := os.WriteFile(filepath.Join(p.dir, attr), []byte(value), 0o644); err != nil {
		return fmt.Errorf("linuxio: gpio%d %s=%s: %w", p.n, attr, value, err)
	}
	return nil
}
