package hal

import (
	"fmt"
	"log/slog"
	"sync"

	"mowercode-go/types"
)

// Display is the minimal status surface the HAL drives during start-up and
// running operation. Failures here are cosmetic and never abort anything.
type Display interface {
	ShowStatus(lines []string) error
	Clear() error
}

// nopDisplay is used whenever no panel is configured or the configured one
// fails to come up.
type nopDisplay struct{}

func (nopDisplay) ShowStatus([]string) error { return nil }
func (nopDisplay) Clear() error              { return nil }

// DisplayManager guards a Display behind a mutex and swallows its errors,
// logging them at most once per distinct message.
type DisplayManager struct {
	log *slog.Logger

	mu      sync.Mutex
	disp    Display
	lastErr string
}

func NewDisplayManager(log *slog.Logger) *DisplayManager {
	return &DisplayManager{log: log.With("comp", "display"), disp: nopDisplay{}}
}

// Attach replaces the no-op display with a real one.
func (dm *DisplayManager) Attach(d Display) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if d == nil {
		d = nopDisplay{}
	}
	dm.disp = d
}

// ShowStatus renders status lines, dropping errors after logging them.
func (dm *DisplayManager) ShowStatus(lines ...string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if err := dm.disp.ShowStatus(lines); err != nil {
		dm.logOnce(err)
	}
}

// ShowStep renders one orchestration step outcome.
func (dm *DisplayManager) ShowStep(step string, outcome types.StepOutcome) {
	dm.ShowStatus(fmt.Sprintf("%s: %s", step, outcome))
}

// Clear blanks the panel.
func (dm *DisplayManager) Clear() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if err := dm.disp.Clear(); err != nil {
		dm.logOnce(err)
	}
}

func (dm *DisplayManager) logOnce(err error) {
	msg := err.Error()
	if msg == dm.lastErr {
		return
	}
	dm.lastErr = msg
	dm.log.Warn("display write failed", "err", err)
}
