package detector

import (
	"image"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// RawMotionGate is the simple detector variant: background subtraction over
// the whole frame, debounced by a cooldown. It fires on the first contour
// large enough to matter and then stays quiet for the cooldown window;
// detections suppressed by the cooldown are dropped, not queued.
type RawMotionGate struct {
	cfg           Config
	bg            *backgroundModel
	brightness    brightnessMonitor
	lastDetection time.Time
	now           func() time.Time
	mu            sync.Mutex
}

// NewRawMotionGate creates a RawMotionGate with the given configuration.
func NewRawMotionGate(cfg Config) *RawMotionGate {
	return &RawMotionGate{
		cfg: cfg,
		bg:  newBackgroundModel(cfg),
		now: time.Now,
	}
}

// Process analyzes one frame and returns an event if qualifying motion was
// detected outside the cooldown window.
//
// Per frame:
//  1. Convert to grayscale and check for a global lighting change; a
//     lighting-change frame is skipped entirely (no model update, no
//     cooldown update).
//  2. Blur, apply the background model, binarize and clean the mask.
//  3. Fire on the first contour whose area exceeds MinContourArea, unless
//     the detection cooldown has not yet elapsed.
func (g *RawMotionGate) Process(frame *gocv.Mat) *Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil
	}

	gray := grayFrame(frame)
	defer gray.Close()

	if g.brightness.LightingChanged(gray.Mean().Val1) {
		if g.cfg.Debug {
			log.Println("motion gate: lighting change, frame skipped")
		}
		return nil
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := g.cfg.BlurKernelSize
	gocv.GaussianBlur(gray, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	mask := g.bg.foregroundMask(blurred)
	defer mask.Close()

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	now := g.now()
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area <= g.cfg.MinContourArea {
			continue
		}
		if now.Sub(g.lastDetection) < g.cfg.DetectionCooldown {
			// Suppressed by cooldown; the trigger is dropped, not queued.
			if g.cfg.Debug {
				log.Println("motion gate: detection within cooldown, dropped")
			}
			return nil
		}
		g.lastDetection = now

		center, _ := contourCentroid(contour.ToPoints())
		return &Event{
			Timestamp: now,
			Area:      area,
			Center:    center,
		}
	}

	return nil
}

// Reset discards the background model and zeroes the cooldown clock.
func (g *RawMotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.bg.Close()
	g.bg = newBackgroundModel(g.cfg)
	g.lastDetection = time.Time{}
	log.Println("motion gate: background model reset")
}

// UpdateConfig applies new tuning. The background model is rebuilt only when
// a structural parameter changed (history, model variant, shadow flag, the
// variant's threshold); numeric knobs apply in place.
func (g *RawMotionGate) UpdateConfig(cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rebuild := structuralChange(g.cfg, cfg)
	kernelChanged := g.cfg.MorphKernelSize != cfg.MorphKernelSize
	g.cfg = cfg

	if rebuild {
		g.bg.Close()
		g.bg = newBackgroundModel(cfg)
	} else if kernelChanged {
		g.bg.setKernelSize(cfg.MorphKernelSize)
	}
}

// Close releases the background model resources.
func (g *RawMotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bg.Close()
}
