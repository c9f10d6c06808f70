package hal

import (
	"sync"

	"mowercode-go/errcode"
)

// PinManager arbitrates GPIO pin ownership across subsystems. Claiming a pin
// yields a unique token; a second claimant receives errcode.PinInUse instead
// of a logged warning, making cross-subsystem pin conflicts unrepresentable.
type PinManager struct {
	mu     sync.Mutex
	claims map[int]*PinClaim
}

// PinClaim is the non-copyable ownership token for one pin.
type PinClaim struct {
	pin      int
	owner    string
	mgr      *PinManager
	released bool
}

func NewPinManager() *PinManager {
	return &PinManager{claims: map[int]*PinClaim{}}
}

// Claim reserves a pin for the named subsystem. Returns errcode.PinInUse
// (with the current holder in the message) if the pin is already held.
func (m *PinManager) Claim(pin int, owner string) (*PinClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.claims[pin]; ok {
		return nil, errcode.Msgf(errcode.PinInUse, "pins.claim", "pin held by "+held.owner)
	}
	c := &PinClaim{pin: pin, owner: owner, mgr: m}
	m.claims[pin] = c
	return c, nil
}

func (c *PinClaim) Pin() int      { return c.pin }
func (c *PinClaim) Owner() string { return c.owner }

// Release returns the pin to the pool. Releasing twice is a no-op.
func (c *PinClaim) Release() {
	c.mgr.mu.Lock()
	defer c.mgr.mu.Unlock()
	if c.released {
		return
	}
	c.released = true
	if held, ok := c.mgr.claims[c.pin]; ok && held == c {
		delete(c.mgr.claims, c.pin)
	}
}

// Holder reports the subsystem currently holding a pin, if any.
func (m *PinManager) Holder(pin int) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[pin]
	if !ok {
		return "", false
	}
	return c.owner, true
}

// Snapshot returns pin -> owner for diagnostics.
func (m *PinManager) Snapshot() map[int]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]string, len(m.claims))
	for pin, c := range m.claims {
		out[pin] = c.owner
	}
	return out
}
