// Package gallery persists captured frames as JPEG files and keeps the
// collection bounded: a fixed-capacity FIFO of paths where saving past the
// cap deletes the oldest files from disk.
package gallery

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// DefaultMaxImages is the retention cap when none is configured.
const DefaultMaxImages = 10

// Sentinel errors for frame persistence.
var (
	ErrNilFrame     = errors.New("frame is nil or empty")
	ErrEncodeFailed = errors.New("failed to encode frame as jpeg")
)

// Gallery owns the saved-image directory. It is safe for concurrent use,
// though in practice only the pipeline worker writes to it.
type Gallery struct {
	dir string
	max int
	now func() time.Time

	mu    sync.Mutex
	paths []string
}

// New creates a Gallery rooted at dir, creating the directory if needed.
// max <= 0 falls back to DefaultMaxImages.
func New(dir string, max int) (*Gallery, error) {
	if max <= 0 {
		max = DefaultMaxImages
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &Gallery{
		dir: dir,
		max: max,
		now: time.Now,
	}, nil
}

// SaveFrame writes the frame as motion_<unix-ms>.jpg in the gallery
// directory and returns the path. If the save pushes the collection past
// the cap, the oldest files are deleted before returning.
func (g *Gallery) SaveFrame(frame *gocv.Mat) (string, error) {
	if frame == nil || frame.Empty() {
		return "", ErrNilFrame
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	name := fmt.Sprintf("motion_%d.jpg", g.now().UnixMilli())
	path := filepath.Join(g.dir, name)

	if ok := gocv.IMWrite(path, *frame); !ok {
		return "", fmt.Errorf("%w: %s", ErrEncodeFailed, path)
	}

	g.add(path)
	return path, nil
}

// add appends path to the FIFO and evicts oldest entries past the cap.
// Caller holds g.mu.
func (g *Gallery) add(path string) {
	g.paths = append(g.paths, path)
	for len(g.paths) > g.max {
		oldest := g.paths[0]
		g.paths = g.paths[1:]
		if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
			log.Printf("gallery: failed to delete %s: %v", oldest, err)
		}
	}
}

// Paths returns the retained image paths, oldest first.
func (g *Gallery) Paths() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]string, len(g.paths))
	copy(out, g.paths)
	return out
}

// Latest returns the most recently saved path.
func (g *Gallery) Latest() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.paths) == 0 {
		return "", false
	}
	return g.paths[len(g.paths)-1], true
}

// Len returns the number of retained images.
func (g *Gallery) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.paths)
}

// Dir returns the gallery directory.
func (g *Gallery) Dir() string {
	return g.dir
}
