// Package events provides the fire-and-forget event bus connecting the
// detection pipeline to external observers. Publishing never blocks: a
// subscriber that cannot keep up loses events instead of stalling the
// pipeline.
package events

import "time"

// Type identifies what kind of event occurred.
type Type string

// The event types emitted by the detection pipeline.
const (
	TypeMotionDetected     Type = "motion_detected"
	TypeImageCaptured      Type = "image_captured"
	TypeAPIResultReceived  Type = "api_result_received"
	TypeDetectionCompleted Type = "detection_completed"
	TypeErrorOccurred      Type = "error_occurred"
	TypeMotionStateChanged Type = "motion_state_changed"
)

// Event is a single pipeline notification. Payload depends on the type:
// a saved image path, a detection record, an error message, or a detector
// state snapshot.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}
