// Package heartbeat publishes a periodic liveness beat with uptime and the
// HAL session id, so off-board telemetry can spot a wedged process even
// when every sensor topic has gone quiet.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"mowercode-go/bus"
	"mowercode-go/x/params"
	"mowercode-go/x/timex"
)

var (
	topicBeat   = bus.T("heartbeat")
	topicConfig = bus.T("config", "heartbeat")
)

// Beat is the published payload.
type Beat struct {
	Seq       uint64 `json:"seq"`
	SessionID string `json:"session_id"`
	UptimeSec int64  `json:"uptime_s"`
	TS        int64  `json:"ts_ms"`
}

type Service struct {
	log       *slog.Logger
	sessionID string
	interval  time.Duration
	started   time.Time
	seq       uint64
}

func New(log *slog.Logger, sessionID string, interval time.Duration) *Service {
	if interval <= 0 {
		interval = time.Second
	}
	return &Service{
		log:       log.With("comp", "heartbeat"),
		sessionID: sessionID,
		interval:  interval,
	}
}

// Start runs the beat loop until the context ends.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.started = time.Now()
	go s.serviceLoop(ctx, conn)
	return nil
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfig)
	defer cfgSub.Unsubscribe()

	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping")
			return
		case <-tick.C:
			s.seq++
			conn.Publish(conn.NewMessage(topicBeat, Beat{
				Seq:       s.seq,
				SessionID: s.sessionID,
				UptimeSec: int64(timex.Since(s.started).Seconds()),
				TS:        timex.NowMs(),
			}, true))
		case msg := <-cfgSub.Channel():
			// Interval is adjustable at runtime: {"interval": seconds}.
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv := params.Float(m, "interval", 0); iv > 0 {
					s.interval = time.Duration(iv * float64(time.Second))
					tick.Reset(s.interval)
					s.log.Info("interval changed", "interval", s.interval)
				}
			}
		}
	}
}
