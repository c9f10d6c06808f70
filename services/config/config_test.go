package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mowercode-go/bus"
)

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recvSection(t *testing.T, sub *bus.Subscription) map[string]any {
	t.Helper()
	select {
	case msg := <-sub.Channel():
		m, ok := msg.Payload.(map[string]any)
		if !ok {
			t.Fatalf("payload = %#v", msg.Payload)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("section never published")
		return nil
	}
}

func TestMissingFilePublishesDefaults(t *testing.T) {
	b := bus.NewBus(16)
	s := New(testLog(), filepath.Join(t.TempDir(), "services.yaml"))
	if err := s.Start(context.Background(), b.NewConnection("config")); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Retained: subscribing after Start still yields the sections.
	conn := b.NewConnection("test")
	hb := recvSection(t, conn.Subscribe(bus.T("config", "heartbeat")))
	if hb["interval"] != 1 {
		t.Fatalf("heartbeat defaults = %v", hb)
	}
	hal := recvSection(t, conn.Subscribe(bus.T("config", "hal")))
	if hal["grace_period"] != 120 {
		t.Fatalf("hal defaults = %v", hal)
	}
}

func TestFileSectionsOverrideDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	doc := `
heartbeat:
  interval: 5
navigation:
  max_speed: 0.8
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	b := bus.NewBus(16)
	s := New(testLog(), path)
	if err := s.Start(context.Background(), b.NewConnection("config")); err != nil {
		t.Fatalf("start: %v", err)
	}

	conn := b.NewConnection("test")
	hb := recvSection(t, conn.Subscribe(bus.T("config", "heartbeat")))
	if hb["interval"] != 5 {
		t.Fatalf("heartbeat section = %v, want file value", hb)
	}
	// Unknown sections pass through untouched.
	nav := recvSection(t, conn.Subscribe(bus.T("config", "navigation")))
	if nav["max_speed"] != 0.8 {
		t.Fatalf("navigation section = %v", nav)
	}
	// Sections the file omits still get defaults.
	hal := recvSection(t, conn.Subscribe(bus.T("config", "hal")))
	if hal["health_interval"] != 30 {
		t.Fatalf("hal section = %v", hal)
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	if err := os.WriteFile(path, []byte("heartbeat:\n  interval: 5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	b := bus.NewBus(16)
	conn := b.NewConnection("config")
	s := New(testLog(), path)
	if err := s.Start(context.Background(), conn); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := os.WriteFile(path, []byte("heartbeat:\n  interval: 9\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := s.Reload(conn); err != nil {
		t.Fatalf("reload: %v", err)
	}

	hb := recvSection(t, b.NewConnection("test").Subscribe(bus.T("config", "heartbeat")))
	if hb["interval"] != 9 {
		t.Fatalf("reloaded section = %v", hb)
	}
}

func TestBadYAMLIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	if err := os.WriteFile(path, []byte("a: [unclosed"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := New(testLog(), path)
	if err := s.Start(context.Background(), bus.NewBus(1).NewConnection("config")); err == nil {
		t.Fatal("bad yaml did not error")
	}
}
