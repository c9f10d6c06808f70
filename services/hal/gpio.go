package hal

import (
	"fmt"
	"log/slog"
	"sync"

	"mowercode-go/errcode"
)

type pinDirection string

const (
	pinInput  pinDirection = "input"
	pinOutput pinDirection = "output"
)

type pinState struct {
	pin   GPIOPin
	dir   pinDirection
	pull  Pull
	claim *PinClaim
}

// GPIOManager owns pin configuration and state. A pin is configured lazily
// the first time it is written or read; all claims go through the shared
// PinManager, so a pin held by another subsystem is a typed error rather
// than a silent double-drive.
type GPIOManager struct {
	log    *slog.Logger
	pinman *PinManager

	mu      sync.Mutex
	factory PinFactory
	pins    map[int]*pinState
}

func NewGPIOManager(log *slog.Logger, pinman *PinManager) *GPIOManager {
	return &GPIOManager{
		log:    log.With("component", "gpio"),
		pinman: pinman,
		pins:   map[int]*pinState{},
	}
}

func (m *GPIOManager) Initialize(backend Backend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factory = backend.Pins()
	if m.factory == nil {
		return errcode.Msgf(errcode.UnknownPin, "gpio.initialize", "backend has no pin factory")
	}
	return nil
}

// ensureLocked claims and configures a pin on first use, or reconfigures its
// direction when usage changes. A pin already configured here belongs to the
// subsystem that claimed it; any other caller gets the same typed error the
// claim itself would have produced.
func (m *GPIOManager) ensureLocked(pin int, dir pinDirection, pull Pull, initial bool, owner string) (*pinState, error) {
	st, ok := m.pins[pin]
	if ok && st.claim.Owner() != owner {
		return nil, errcode.Msgf(errcode.PinInUse, "gpio", "pin held by "+st.claim.Owner())
	}
	if !ok {
		if m.factory == nil {
			return nil, errcode.Msgf(errcode.UnknownPin, "gpio", "not initialized")
		}
		p, found := m.factory.ByNumber(pin)
		if !found {
			return nil, errcode.Msgf(errcode.UnknownPin, "gpio", fmt.Sprintf("pin %d", pin))
		}
		claim, err := m.pinman.Claim(pin, owner)
		if err != nil {
			return nil, err
		}
		st = &pinState{pin: p, claim: claim}
		m.pins[pin] = st
	}
	if st.dir != dir {
		var err error
		if dir == pinOutput {
			err = st.pin.ConfigureOutput(initial)
		} else {
			err = st.pin.ConfigureInput(pull)
		}
		if err != nil {
			return nil, errcode.Wrap(errcode.Hardware, "gpio.configure", err)
		}
		st.dir = dir
		st.pull = pull
	}
	return st, nil
}

// WritePin drives a pin, configuring it as an output first if needed.
func (m *GPIOManager) WritePin(pin int, level bool, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.ensureLocked(pin, pinOutput, PullNone, level, owner)
	if err != nil {
		return err
	}
	st.pin.Set(level)
	return nil
}

// ReadPin samples a pin, configuring it as an input first if needed.
func (m *GPIOManager) ReadPin(pin int, pull Pull, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.ensureLocked(pin, pinInput, pull, false, owner)
	if err != nil {
		return false, err
	}
	return st.pin.Get(), nil
}

// ReleasePin drops the configuration and ownership claim for a pin.
func (m *GPIOManager) ReleasePin(pin int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.pins[pin]; ok {
		st.claim.Release()
		delete(m.pins, pin)
	}
}

// OwnerOf reports which subsystem configured a pin through this manager.
func (m *GPIOManager) OwnerOf(pin int) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.pins[pin]
	if !ok {
		return "", false
	}
	return st.claim.Owner(), true
}

// ConfiguredPins lists pins currently configured by this manager.
func (m *GPIOManager) ConfiguredPins() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.pins))
	for n := range m.pins {
		out = append(out, n)
	}
	return out
}

// Shutdown drives outputs low and releases every claim this manager holds.
func (m *GPIOManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for n, st := range m.pins {
		if st.dir == pinOutput {
			st.pin.Set(false)
		}
		st.claim.Release()
		delete(m.pins, n)
	}
}
