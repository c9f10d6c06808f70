package hal

import (
	"errors"
	"sync"
	"testing"

	"mowercode-go/types"
)

type fakeDisplay struct {
	mu     sync.Mutex
	lines  [][]string
	clears int
	err    error
}

func (d *fakeDisplay) ShowStatus(lines []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.lines = append(d.lines, append([]string(nil), lines...))
	return nil
}

func (d *fakeDisplay) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.clears++
	return nil
}

func TestDisplayDefaultsToNoOp(t *testing.T) {
	dm := NewDisplayManager(testLogger(t))
	// Must not panic or error with nothing attached.
	dm.ShowStatus("hello")
	dm.ShowStep("i2c", types.StepOK)
	dm.Clear()
}

func TestDisplayRendersThroughAttachedPanel(t *testing.T) {
	dm := NewDisplayManager(testLogger(t))
	d := &fakeDisplay{}
	dm.Attach(d)

	dm.ShowStatus("hal ready", "session 1234")
	dm.ShowStep("tof", types.StepDegraded)
	dm.Clear()

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.lines) != 2 {
		t.Fatalf("panel saw %d writes", len(d.lines))
	}
	if d.lines[0][0] != "hal ready" || d.lines[0][1] != "session 1234" {
		t.Fatalf("first write = %v", d.lines[0])
	}
	if d.lines[1][0] != "tof: degraded" {
		t.Fatalf("step line = %v", d.lines[1])
	}
	if d.clears != 1 {
		t.Fatalf("clears = %d", d.clears)
	}
}

func TestDisplayErrorsNeverPropagate(t *testing.T) {
	dm := NewDisplayManager(testLogger(t))
	dm.Attach(&fakeDisplay{err: errors.New("i2c panel gone")})
	dm.ShowStatus("a")
	dm.ShowStatus("b")
	dm.Clear()
}

func TestDisplayAttachNilFallsBackToNoOp(t *testing.T) {
	dm := NewDisplayManager(testLogger(t))
	dm.Attach(nil)
	dm.ShowStatus("still fine")
}
