package hal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mowercode-go/errcode"
	"mowercode-go/types"
)

// CameraManager wraps a FrameSource and caches the most recent frame so
// readers never block on capture.
type CameraManager struct {
	log *slog.Logger
	cfg types.CameraConfig

	mu      sync.Mutex
	src     FrameSource
	running bool
	lastAt  time.Time
}

func NewCameraManager(log *slog.Logger, cfg types.CameraConfig) *CameraManager {
	return &CameraManager{log: log.With("comp", "camera"), cfg: cfg}
}

// Initialize attaches the backend frame source. Capture does not start yet.
func (cm *CameraManager) Initialize(backend Backend) error {
	op := "camera.init"
	src, err := backend.Camera(cm.cfg)
	if err != nil {
		return errcode.Wrap(errcode.Hardware, op, err)
	}
	cm.mu.Lock()
	cm.src = src
	cm.mu.Unlock()
	cm.log.Info("camera attached", "device", cm.cfg.Device, "width", cm.cfg.Width, "height", cm.cfg.Height)
	return nil
}

// StartCapture begins background frame production.
func (cm *CameraManager) StartCapture(ctx context.Context) error {
	op := "camera.start"
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.src == nil {
		return errcode.Msgf(errcode.DeviceNotFound, op, "camera not initialized")
	}
	if cm.running {
		return nil
	}
	if err := cm.src.Start(ctx); err != nil {
		return errcode.Wrap(errcode.Hardware, op, err)
	}
	cm.running = true
	return nil
}

// Frame returns the newest captured frame, or (nil, false) when none exists.
func (cm *CameraManager) Frame() ([]byte, bool) {
	cm.mu.Lock()
	src, running := cm.src, cm.running
	cm.mu.Unlock()
	if src == nil || !running {
		return nil, false
	}
	frame, at, ok := src.Latest()
	if !ok {
		return nil, false
	}
	cm.mu.Lock()
	cm.lastAt = at
	cm.mu.Unlock()
	return frame, true
}

// Running reports whether capture is active.
func (cm *CameraManager) Running() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.running
}

// LastFrameAt reports the timestamp of the newest observed frame.
func (cm *CameraManager) LastFrameAt() (time.Time, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.lastAt, !cm.lastAt.IsZero()
}

// Shutdown stops capture and releases the source.
func (cm *CameraManager) Shutdown(ctx context.Context) error {
	cm.mu.Lock()
	src, running := cm.src, cm.running
	cm.src = nil
	cm.running = false
	cm.mu.Unlock()
	if src == nil || !running {
		return nil
	}
	if err := src.Stop(ctx); err != nil {
		return errcode.Wrap(errcode.Hardware, "camera.shutdown", err)
	}
	return nil
}
