// Package detector implements motion detection for the waste drop zone.
//
// Two detector variants are provided, selected at construction time:
//
//   - RawMotionGate: background subtraction gated by a cooldown. Cheap,
//     fires on any sufficiently large motion.
//   - ZonedPresenceDetector: background subtraction restricted to a drop
//     zone ROI, driving a five-state presence machine that only fires once
//     an object has settled.
//
// Both variants share the illumination-change rejection and the
// morphological mask cleanup, and both own their background model
// exclusively; no locking is needed beyond each detector's own mutex.
package detector

import (
	"image"
	"strconv"
	"strings"
	"time"

	"gocv.io/x/gocv"
)

// State is the presence state tracked by the ZonedPresenceDetector.
type State int

// Presence states. Transitions never skip from StateNoMotion directly to
// StatePresentStable or StateLeaving; an object must be seen entering first.
const (
	StateNoMotion State = iota
	StateEntering
	StatePresentMoving
	StatePresentStable
	StateLeaving
)

// MarshalJSON encodes the state by its wire name.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(s.String())), nil
}

// String returns the wire name of the state, as used in telemetry payloads.
func (s State) String() string {
	switch s {
	case StateNoMotion:
		return "no_motion"
	case StateEntering:
		return "entering"
	case StatePresentMoving:
		return "present_moving"
	case StatePresentStable:
		return "present_stable"
	case StateLeaving:
		return "leaving"
	default:
		return "unknown"
	}
}

// Event is a discrete motion event produced by a detector. At most one event
// is produced per cooldown window. Events are transient: the orchestrator
// consumes them immediately and nothing retains them.
//
// RawMotionGate events carry Timestamp, Area and Center only; State and
// StabilityDuration are meaningful for the zoned detector alone.
type Event struct {
	State             State
	Timestamp         time.Time
	Area              float64
	Center            image.Point
	StabilityDuration time.Duration
}

// StateInfo is a snapshot of the zoned detector's state machine, emitted to
// observers on every processed frame regardless of whether an event fired.
type StateInfo struct {
	State             State           `json:"state"`
	StateDuration     time.Duration   `json:"state_duration"`
	StabilityDuration time.Duration   `json:"stability_duration"`
	LastCenter        image.Point     `json:"last_center"`
	LastArea          float64         `json:"last_area"`
	ROI               image.Rectangle `json:"roi"`
}

// Detector is the common contract of the two detector variants.
// Process borrows the frame for the duration of the call; implementations
// never retain it. A nil return means no qualifying event this frame.
type Detector interface {
	Process(frame *gocv.Mat) *Event
	Reset()
	UpdateConfig(cfg Config)
	Close()
}

// Background model variants.
const (
	ModelMOG2 = "MOG2"
	ModelKNN  = "KNN"
)

// Config holds the tunables for both detector variants. All numeric fields
// are assumed range-checked by the configuration loader.
type Config struct {
	// Background model. History, DetectShadows and the variant-specific
	// threshold are structural: changing them rebuilds the model.
	Model          string
	History        int
	VarThreshold   float64 // MOG2 only
	Dist2Threshold float64 // KNN only
	DetectShadows  bool

	// Mask extraction knobs. Applied without rebuilding the model.
	MinContourArea  float64
	BlurKernelSize  int // odd
	MorphKernelSize int

	// Minimum time between two accepted detections.
	DetectionCooldown time.Duration

	// Drop zone ROI, as ratios of the frame edges. Zoned detector only.
	ROIEnabled     bool
	ROITopRatio    float64
	ROIBottomRatio float64
	ROILeftRatio   float64
	ROIRightRatio  float64

	// Presence state machine. Zoned detector only.
	MinPresenceArea           float64
	MinPresenceDuration       time.Duration
	CenterMovementThreshold   float64
	StabilityThreshold        float64
	MinStabilityDuration      time.Duration
	MaxStabilityDuration      time.Duration
	BackgroundChangeThreshold float64

	// Debug enables per-frame skip logging (lighting changes, flicker).
	Debug bool
}

// DefaultConfig returns the tuning used by the drop stations in the field.
func DefaultConfig() Config {
	return Config{
		Model:                     ModelMOG2,
		History:                   500,
		VarThreshold:              500,
		Dist2Threshold:            400,
		DetectShadows:             true,
		MinContourArea:            1500,
		BlurKernelSize:            5,
		MorphKernelSize:           5,
		DetectionCooldown:         3 * time.Second,
		ROIEnabled:                true,
		ROITopRatio:               0.2,
		ROIBottomRatio:            0.8,
		ROILeftRatio:              0.1,
		ROIRightRatio:             0.9,
		MinPresenceArea:           3000,
		MinPresenceDuration:       500 * time.Millisecond,
		CenterMovementThreshold:   100,
		StabilityThreshold:        50,
		MinStabilityDuration:      1 * time.Second,
		MaxStabilityDuration:      5 * time.Second,
		BackgroundChangeThreshold: 0.1,
	}
}

func normalizeModel(model string) string {
	if strings.EqualFold(model, ModelKNN) {
		return ModelKNN
	}
	return ModelMOG2
}

// structuralChange reports whether switching from old to next requires the
// background model to be rebuilt. Purely numeric knobs (areas, kernel sizes,
// cooldown) apply in place and do not count.
func structuralChange(old, next Config) bool {
	if normalizeModel(old.Model) != normalizeModel(next.Model) {
		return true
	}
	if old.History != next.History || old.DetectShadows != next.DetectShadows {
		return true
	}
	if normalizeModel(next.Model) == ModelKNN {
		return old.Dist2Threshold != next.Dist2Threshold
	}
	return old.VarThreshold != next.VarThreshold
}

// grayFrame converts a frame to single channel. The caller owns the result.
func grayFrame(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	return gray
}
