package hal

import (
	"errors"
	"strings"
	"testing"

	"mowercode-go/errcode"
)

func TestPinClaimConflict(t *testing.T) {
	m := NewPinManager()
	c, err := m.Claim(17, "tof")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if c.Pin() != 17 || c.Owner() != "tof" {
		t.Fatalf("claim = pin %d owner %q", c.Pin(), c.Owner())
	}

	_, err = m.Claim(17, "gpio")
	if err == nil {
		t.Fatal("second claim succeeded")
	}
	if !errors.Is(err, errcode.PinInUse) {
		t.Fatalf("conflict code = %v, want pin_in_use", errcode.Of(err))
	}
	if !strings.Contains(err.Error(), "tof") {
		t.Fatalf("conflict message %q does not name the holder", err.Error())
	}
}

func TestPinReleaseIsIdempotent(t *testing.T) {
	m := NewPinManager()
	c, err := m.Claim(22, "tof")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	c.Release()
	c.Release() // second release must be a no-op

	if owner, held := m.Holder(22); held {
		t.Fatalf("pin still held by %q after release", owner)
	}
	if _, err := m.Claim(22, "gpio"); err != nil {
		t.Fatalf("reclaim after release: %v", err)
	}
}

func TestPinStaleReleaseDoesNotEvictNewHolder(t *testing.T) {
	m := NewPinManager()
	old, _ := m.Claim(5, "a")
	old.Release()
	if _, err := m.Claim(5, "b"); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	old.Release() // stale token, must not free b's claim
	owner, held := m.Holder(5)
	if !held || owner != "b" {
		t.Fatalf("holder = %q, %v; want b, true", owner, held)
	}
}

func TestPinSnapshot(t *testing.T) {
	m := NewPinManager()
	m.Claim(1, "a")
	m.Claim(2, "b")
	snap := m.Snapshot()
	if len(snap) != 2 || snap[1] != "a" || snap[2] != "b" {
		t.Fatalf("snapshot = %v", snap)
	}
}
