package hal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mowercode-go/errcode"
	"mowercode-go/types"
)

type fakeSource struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	frame    []byte
	ts       time.Time
	startErr error
}

func (s *fakeSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *fakeSource) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeSource) Latest() ([]byte, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, time.Time{}, false
	}
	return s.frame, s.ts, true
}

type cameraBackend struct {
	*fakeBackend
	src *fakeSource
	err error
}

func (b *cameraBackend) Camera(cfg types.CameraConfig) (FrameSource, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.src, nil
}

func TestCameraCaptureLifecycle(t *testing.T) {
	src := &fakeSource{}
	backend := &cameraBackend{fakeBackend: newFakeBackend(), src: src}
	cm := NewCameraManager(testLogger(t), types.CameraConfig{Enabled: true, Device: "/dev/video0"})

	if err := cm.Initialize(backend); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if cm.Running() {
		t.Fatal("running before StartCapture")
	}
	if _, ok := cm.Frame(); ok {
		t.Fatal("frame available before capture started")
	}

	if err := cm.StartCapture(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !cm.Running() {
		t.Fatal("not running after StartCapture")
	}

	src.mu.Lock()
	src.frame = []byte("jpeg")
	src.ts = time.Now()
	src.mu.Unlock()

	frame, ok := cm.Frame()
	if !ok || string(frame) != "jpeg" {
		t.Fatalf("frame = %q, %v", frame, ok)
	}
	if _, ok := cm.LastFrameAt(); !ok {
		t.Fatal("no frame timestamp recorded")
	}

	if err := cm.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !src.stopped {
		t.Fatal("source not stopped")
	}
	if cm.Running() {
		t.Fatal("still running after shutdown")
	}
}

func TestCameraStartWithoutInitialize(t *testing.T) {
	cm := NewCameraManager(testLogger(t), types.CameraConfig{})
	err := cm.StartCapture(context.Background())
	if !errors.Is(err, errcode.DeviceNotFound) {
		t.Fatalf("err = %v, want device_not_found", err)
	}
}

func TestCameraInitializeFailure(t *testing.T) {
	backend := &cameraBackend{fakeBackend: newFakeBackend(), err: errors.New("no camera stack")}
	cm := NewCameraManager(testLogger(t), types.CameraConfig{Enabled: true})
	err := cm.Initialize(backend)
	if !errors.Is(err, errcode.Hardware) {
		t.Fatalf("err = %v, want hardware_error", err)
	}
}
