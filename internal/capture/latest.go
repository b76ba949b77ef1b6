package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// LatestFrame is a single-slot frame mailbox: Publish replaces the stored
// frame, Latest hands out a copy of the newest one. Consumers that poll
// slower than the camera see only the freshest frame; older frames are
// discarded, never queued.
type LatestFrame struct {
	mu     sync.Mutex
	frame  gocv.Mat
	has    bool
	closed bool
}

// NewLatestFrame creates an empty frame mailbox.
func NewLatestFrame() *LatestFrame {
	return &LatestFrame{frame: gocv.NewMat()}
}

// Publish stores a copy of the frame, replacing any previous one. Nil or
// empty frames are ignored. The caller keeps ownership of its Mat.
func (l *LatestFrame) Publish(frame *gocv.Mat) {
	if frame == nil || frame.Empty() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	frame.CopyTo(&l.frame)
	l.has = true
}

// Latest returns a copy of the most recent frame, or nil if nothing has been
// published yet. The caller owns the returned Mat and must close it.
func (l *LatestFrame) Latest() *gocv.Mat {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || !l.has {
		return nil
	}

	out := l.frame.Clone()
	return &out
}

// Close releases the stored frame. Publish and Latest become no-ops.
func (l *LatestFrame) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	l.has = false
	l.frame.Close()
}
