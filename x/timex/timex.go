package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Since returns the elapsed time since t, never negative.
func Since(t time.Time) time.Duration {
	d := time.Since(t)
	if d < 0 {
		return 0
	}
	return d
}
