package hal

import (
	"sync"
	"time"

	"mowercode-go/types"
)

// Thresholds for the health model.
const (
	disconnectFailures = 5   // connected flips false at this many consecutive failures
	healthyFailuresMax = 3   // healthy requires consecutive failures below this
	healthySuccessRate = 0.8 // and a success rate above this
)

// DeviceHealth tracks per-device (or per-plugin) I/O outcomes. It is mutated
// only through RecordSuccess/RecordFailure, called by the owning manager
// after each attempt.
type DeviceHealth struct {
	mu                  sync.Mutex
	lastSuccess         time.Time
	consecutiveFailures int
	totalReads          uint64
	totalFailures       uint64
	connected           bool
}

func NewDeviceHealth() *DeviceHealth {
	return &DeviceHealth{connected: true}
}

func (h *DeviceHealth) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.totalReads++
	h.consecutiveFailures = 0
	h.connected = true
	h.lastSuccess = time.Now()
}

func (h *DeviceHealth) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.totalReads++
	h.totalFailures++
	h.consecutiveFailures++
	if h.consecutiveFailures >= disconnectFailures {
		h.connected = false
	}
}

func (h *DeviceHealth) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

// Healthy holds iff connected, below the consecutive-failure bound, and the
// success rate is above healthySuccessRate (1.0 with zero reads).
func (h *DeviceHealth) Healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected &&
		h.consecutiveFailures < healthyFailuresMax &&
		h.successRateLocked() > healthySuccessRate
}

func (h *DeviceHealth) successRateLocked() float64 {
	if h.totalReads == 0 {
		return 1.0
	}
	return float64(h.totalReads-h.totalFailures) / float64(h.totalReads)
}

func (h *DeviceHealth) Snapshot() types.DeviceHealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return types.DeviceHealthSnapshot{
		LastSuccess:         h.lastSuccess,
		ConsecutiveFailures: h.consecutiveFailures,
		TotalReads:          h.totalReads,
		TotalFailures:       h.totalFailures,
		Connected:           h.connected,
		Healthy: h.connected &&
			h.consecutiveFailures < healthyFailuresMax &&
			h.successRateLocked() > healthySuccessRate,
		SuccessRate: h.successRateLocked(),
	}
}
