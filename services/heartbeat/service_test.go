package heartbeat

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"mowercode-go/bus"
)

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nextBeat(t *testing.T, sub *bus.Subscription) Beat {
	t.Helper()
	select {
	case msg := <-sub.Channel():
		beat, ok := msg.Payload.(Beat)
		if !ok {
			t.Fatalf("payload = %#v", msg.Payload)
		}
		return beat
	case <-time.After(2 * time.Second):
		t.Fatal("no beat published")
		return Beat{}
	}
}

func TestBeatsCarrySessionAndSequence(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("heartbeat")
	sub := b.NewConnection("test").Subscribe(bus.T("heartbeat"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(testLog(), "session-1", 5*time.Millisecond)
	if err := s.Start(ctx, conn); err != nil {
		t.Fatalf("start: %v", err)
	}

	first := nextBeat(t, sub)
	second := nextBeat(t, sub)
	if first.SessionID != "session-1" || second.SessionID != "session-1" {
		t.Fatalf("session ids = %q, %q", first.SessionID, second.SessionID)
	}
	if second.Seq != first.Seq+1 {
		t.Fatalf("seq %d then %d, want consecutive", first.Seq, second.Seq)
	}
	if first.TS == 0 {
		t.Fatal("beat has no timestamp")
	}
}

func TestBeatIsRetainedForLateSubscribers(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("heartbeat")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(testLog(), "session-2", 5*time.Millisecond)
	if err := s.Start(ctx, conn); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Let at least one beat publish, then subscribe.
	early := b.NewConnection("early").Subscribe(bus.T("heartbeat"))
	nextBeat(t, early)
	late := b.NewConnection("late").Subscribe(bus.T("heartbeat"))
	beat := nextBeat(t, late)
	if beat.SessionID != "session-2" {
		t.Fatalf("retained beat session = %q", beat.SessionID)
	}
}

func TestIntervalReconfiguredOverBus(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("heartbeat")
	sub := b.NewConnection("test").Subscribe(bus.T("heartbeat"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Start slow so only the reconfigured interval can produce beats in
	// time.
	s := New(testLog(), "session-3", time.Hour)
	if err := s.Start(ctx, conn); err != nil {
		t.Fatalf("start: %v", err)
	}

	cfg := b.NewConnection("config")
	// Retained, so the service sees it even if its subscription raced the
	// publish.
	cfg.Publish(cfg.NewMessage(bus.T("config", "heartbeat"),
		map[string]any{"interval": 0.005}, true))

	nextBeat(t, sub)
}
