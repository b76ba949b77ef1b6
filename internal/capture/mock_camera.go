package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// ErrPlaybackExhausted is returned once a non-looping frame sequence runs
// out.
var ErrPlaybackExhausted = errors.New("mock camera: no frames left")

// MockCamera replays a scripted sequence of drop-zone scenes in place of
// the station webcam: an empty zone, an item appearing, an item removed.
// Every read returns a clone, so callers may close or mutate frames
// without disturbing the script.
type MockCamera struct {
	mu     sync.Mutex
	frames []*gocv.Mat
	index  int
	loop   bool
	fps    int
	open   bool
}

// NewMockCamera creates a camera replaying frames, restarting from the
// beginning when loop is set.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
		fps:    DefaultFPS,
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

// ReadFrame returns a clone of the next scripted frame.
func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrCameraNotOpen
	}
	if len(c.frames) == 0 {
		return nil, ErrPlaybackExhausted
	}
	if c.index >= len(c.frames) {
		if !c.loop {
			return nil, ErrPlaybackExhausted
		}
		c.index = 0
	}

	frame := c.frames[c.index].Clone()
	c.index++
	return &frame, nil
}

func (c *MockCamera) SetFPS(fps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fps > 0 {
		c.fps = fps
	}
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// SetFrames swaps in a new scripted sequence mid-test, e.g. an item
// dropping into a previously empty zone. Playback restarts.
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// Rewind restarts playback from the first frame.
func (c *MockCamera) Rewind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
}
