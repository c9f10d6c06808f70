package linuxio

import (
	"context"
	"os"
	"sync"
	"time"
)

// fileFrameSource polls a file an external capture service keeps fresh
// (typically a JPEG rewritten atomically) and serves its newest contents.
// Deliberately not a V4L2 pipeline; encoding stays out of process.
type fileFrameSource struct {
	path string

	mu      sync.Mutex
	cancel  context.CancelFunc
	frame   []byte
	modTime time.Time
}

func newFileFrameSource(path string) *fileFrameSource {
	return &fileFrameSource{path: path}
}

func (f *fileFrameSource) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return nil
	}
	lctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go f.poll(lctx)
	return nil
}

func (f *fileFrameSource) poll(ctx context.Context) {
	t := time.NewTicker(200 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			f.refresh()
		}
	}
}

func (f *fileFrameSource) refresh() {
	st, err := os.Stat(f.path)
	if err != nil {
		return
	}
	f.mu.Lock()
	stale := st.ModTime().After(f.modTime)
	f.mu.Unlock()
	if !stale {
		return
	}
	data, err := os.ReadFile(f.path)
	if err != nil || len(data) == 0 {
		return
	}
	f.mu.Lock()
	f.frame = data
	f.modTime = st.ModTime()
	f.mu.Unlock()
}

func (f *fileFrameSource) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	return nil
}

func (f *fileFrameSource) Latest() ([]byte, time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frame == nil {
		return nil, time.Time{}, false
	}
	return f.frame, f.modTime, true
}
