package detector

import (
	"image"
	"log"
	"math"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// leaveConfirmDuration is the sustained no-motion time required before a
// leaving object is confirmed gone.
const leaveConfirmDuration = 500 * time.Millisecond

// motionSample is the per-frame measurement the state machine runs on.
type motionSample struct {
	hasMotion        bool
	area             float64
	center           image.Point
	hasCenter        bool
	activeRatio      float64
	backgroundChange bool
}

// ZonedPresenceDetector restricts background subtraction to the drop zone
// ROI and tracks object presence through a five-state machine. It emits an
// event only when an object has been present and motionless long enough to
// fall inside the stability window, at most once per cooldown.
//
// The ROI rectangle is computed from the first frame's dimensions and the
// configured edge ratios, and is fixed afterwards. Pixels outside the ROI
// are zeroed before subtraction, so motion there is invisible to the model.
type ZonedPresenceDetector struct {
	cfg        Config
	bg         *backgroundModel
	brightness brightnessMonitor

	state          State
	stateStart     time.Time
	stabilityStart time.Time // zero while no stability clock runs
	lastCenter     image.Point
	hasLastCenter  bool
	lastArea       float64
	lastEventTime  time.Time

	frameSize image.Point
	roi       image.Rectangle
	roiSet    bool

	now func() time.Time
	mu  sync.Mutex
}

// NewZonedPresenceDetector creates a ZonedPresenceDetector with the given
// configuration.
func NewZonedPresenceDetector(cfg Config) *ZonedPresenceDetector {
	d := &ZonedPresenceDetector{
		cfg:   cfg,
		bg:    newBackgroundModel(cfg),
		state: StateNoMotion,
		now:   time.Now,
	}
	d.stateStart = d.now()
	return d
}

// Process analyzes one frame and returns a stability event if the tracked
// object qualifies this frame.
//
// Per frame:
//  1. Convert to grayscale and reject global lighting changes (frame is
//     skipped entirely, background model untouched).
//  2. Blur, zero pixels outside the ROI, apply the background model and
//     clean the mask.
//  3. Measure active-pixel ratio plus the largest contour's area and
//     centroid. A frame where most of the zone is active but no single
//     contour is object-sized is global flicker: skipped entirely.
//  4. Advance the presence state machine on the measurement.
func (d *ZonedPresenceDetector) Process(frame *gocv.Mat) *Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil
	}

	if !d.roiSet {
		d.initFrameInfo(frame)
	}

	gray := grayFrame(frame)
	defer gray.Close()

	if d.brightness.LightingChanged(gray.Mean().Val1) {
		if d.cfg.Debug {
			log.Println("presence: lighting change, frame skipped")
		}
		return nil
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := d.cfg.BlurKernelSize
	gocv.GaussianBlur(gray, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	zone := blurred
	if d.cfg.ROIEnabled {
		zone = d.applyROI(blurred)
		defer zone.Close()
	}

	mask := d.bg.foregroundMask(zone)
	defer mask.Close()

	sample := d.analyzeMask(mask)
	if sample.backgroundChange {
		// Global flicker: most of the zone lit up but no contour is
		// object-sized. The state machine must not advance.
		if d.cfg.Debug {
			log.Printf("presence: background change, active_ratio=%.2f, frame skipped", sample.activeRatio)
		}
		return nil
	}

	return d.step(sample)
}

// initFrameInfo fixes the frame dimensions and the ROI rectangle. Called on
// the first frame only; the ROI is immutable afterwards.
func (d *ZonedPresenceDetector) initFrameInfo(frame *gocv.Mat) {
	d.frameSize = image.Pt(frame.Cols(), frame.Rows())
	d.roi = d.computeROI()
	d.roiSet = true
	if d.cfg.ROIEnabled {
		log.Printf("presence: drop zone ROI set to %v", d.roi)
	}
}

func (d *ZonedPresenceDetector) computeROI() image.Rectangle {
	w, h := d.frameSize.X, d.frameSize.Y
	return image.Rect(
		int(float64(w)*d.cfg.ROILeftRatio),
		int(float64(h)*d.cfg.ROITopRatio),
		int(float64(w)*d.cfg.ROIRightRatio),
		int(float64(h)*d.cfg.ROIBottomRatio),
	)
}

// applyROI returns a copy of src with everything outside the ROI zeroed.
// The caller owns the result.
func (d *ZonedPresenceDetector) applyROI(src gocv.Mat) gocv.Mat {
	masked := gocv.Zeros(src.Rows(), src.Cols(), src.Type())

	srcRegion := src.Region(d.roi)
	defer srcRegion.Close()
	dstRegion := masked.Region(d.roi)
	defer dstRegion.Close()
	srcRegion.CopyTo(&dstRegion)

	return masked
}

// analyzeMask measures the cleaned foreground mask: active-pixel ratio and
// the largest contour's area and centroid.
func (d *ZonedPresenceDetector) analyzeMask(mask gocv.Mat) motionSample {
	total := mask.Rows() * mask.Cols()
	var activeRatio float64
	if total > 0 {
		activeRatio = float64(gocv.CountNonZero(mask)) / float64(total)
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return motionSample{
			activeRatio:      activeRatio,
			backgroundChange: activeRatio > d.cfg.BackgroundChangeThreshold,
		}
	}

	largestIdx := 0
	largestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > largestArea {
			largestArea = area
			largestIdx = i
		}
	}

	sample := motionSample{
		hasMotion:   largestArea > d.cfg.MinContourArea,
		area:        largestArea,
		activeRatio: activeRatio,
	}
	if largestArea > 0 {
		sample.center, sample.hasCenter = contourCentroid(contours.At(largestIdx).ToPoints())
	}
	sample.backgroundChange = activeRatio > d.cfg.BackgroundChangeThreshold && largestArea < d.cfg.MinPresenceArea

	return sample
}

// step advances the presence state machine by one frame. lastCenter and
// lastArea persist across frames regardless of state; any state change
// restarts the state-entry clock, and leaving StatePresentStable clears the
// stability clock.
func (d *ZonedPresenceDetector) step(sample motionSample) *Event {
	now := d.now()
	stateDuration := now.Sub(d.stateStart)

	var areaChange float64
	if d.lastArea != 0 {
		areaChange = math.Abs(sample.area - d.lastArea)
	}
	var centerMovement float64
	if d.hasLastCenter && sample.hasCenter {
		centerMovement = math.Hypot(
			float64(sample.center.X-d.lastCenter.X),
			float64(sample.center.Y-d.lastCenter.Y),
		)
	}
	stable := centerMovement < d.cfg.CenterMovementThreshold && areaChange <= d.cfg.StabilityThreshold

	newState := d.state
	var event *Event

	switch d.state {
	case StateNoMotion:
		if sample.hasMotion && sample.area > d.cfg.MinPresenceArea {
			newState = StateEntering
			log.Printf("presence: object entering, area=%.0f", sample.area)
		}

	case StateEntering:
		switch {
		case !sample.hasMotion:
			newState = StateNoMotion
		case sample.area > d.cfg.MinPresenceArea && stateDuration >= d.cfg.MinPresenceDuration:
			if stable {
				newState = StatePresentStable
				d.stabilityStart = now
				log.Printf("presence: object settling, center_movement=%.1f", centerMovement)
			} else {
				newState = StatePresentMoving
			}
		}

	case StatePresentMoving:
		switch {
		case !sample.hasMotion:
			newState = StateLeaving
		case stable:
			newState = StatePresentStable
			d.stabilityStart = now
			log.Println("presence: object settled after moving")
		}

	case StatePresentStable:
		switch {
		case !sample.hasMotion:
			newState = StateLeaving
		case centerMovement > d.cfg.CenterMovementThreshold || areaChange > d.cfg.StabilityThreshold:
			newState = StatePresentMoving
			d.stabilityStart = time.Time{}
			log.Println("presence: object moving again")
		default:
			if !d.stabilityStart.IsZero() {
				stability := now.Sub(d.stabilityStart)
				if stability >= d.cfg.MinStabilityDuration && stability <= d.cfg.MaxStabilityDuration {
					if now.Sub(d.lastEventTime) >= d.cfg.DetectionCooldown {
						event = &Event{
							State:             StatePresentStable,
							Timestamp:         now,
							Area:              sample.area,
							Center:            sample.center,
							StabilityDuration: stability,
						}
						d.lastEventTime = now
						log.Printf("presence: capture condition met, stable for %.1fs", stability.Seconds())
					} else if d.cfg.Debug {
						log.Println("presence: stable but within cooldown, no event")
					}
				}
			}
		}

	case StateLeaving:
		if sample.hasMotion && sample.area > d.cfg.MinPresenceArea {
			newState = StatePresentMoving
		} else if stateDuration > leaveConfirmDuration {
			newState = StateNoMotion
			log.Println("presence: object departure confirmed")
		}
	}

	if newState != d.state {
		d.state = newState
		d.stateStart = now
		if newState != StatePresentStable {
			d.stabilityStart = time.Time{}
		}
	}

	d.lastCenter = sample.center
	d.hasLastCenter = sample.hasCenter
	d.lastArea = sample.area

	return event
}

// StateInfo returns a snapshot of the state machine for telemetry.
func (d *ZonedPresenceDetector) StateInfo() StateInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	info := StateInfo{
		State:         d.state,
		StateDuration: now.Sub(d.stateStart),
		LastCenter:    d.lastCenter,
		LastArea:      d.lastArea,
		ROI:           d.roi,
	}
	if !d.stabilityStart.IsZero() {
		info.StabilityDuration = now.Sub(d.stabilityStart)
	}
	return info
}

// Reset discards the background model and returns the state machine to
// StateNoMotion. The ROI is kept; it is fixed for the life of the detector.
func (d *ZonedPresenceDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.bg.Close()
	d.bg = newBackgroundModel(d.cfg)
	d.state = StateNoMotion
	d.stateStart = d.now()
	d.stabilityStart = time.Time{}
	d.lastCenter = image.Point{}
	d.hasLastCenter = false
	d.lastArea = 0
	d.lastEventTime = time.Time{}
	log.Println("presence: detector reset")
}

// UpdateConfig applies new tuning, rebuilding the background model only on
// structural changes. The ROI is fixed once computed from the first frame;
// new ROI ratios only apply to a freshly constructed detector.
func (d *ZonedPresenceDetector) UpdateConfig(cfg Config) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rebuild := structuralChange(d.cfg, cfg)
	kernelChanged := d.cfg.MorphKernelSize != cfg.MorphKernelSize
	d.cfg = cfg

	if rebuild {
		d.bg.Close()
		d.bg = newBackgroundModel(cfg)
	} else if kernelChanged {
		d.bg.setKernelSize(cfg.MorphKernelSize)
	}
}

// Close releases the background model resources.
func (d *ZonedPresenceDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bg.Close()
}
