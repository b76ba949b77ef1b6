package app

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/ayusman/binsight/internal/detector"
	"github.com/ayusman/binsight/internal/events"
	"github.com/ayusman/binsight/internal/recognize"
	"github.com/ayusman/binsight/internal/store"
)

// Pipeline timing constants.
const (
	// disabledSleep is how long the orchestrator idles between enabled-flag
	// checks while detection is off.
	disabledSleep = 100 * time.Millisecond
	// waitSlice bounds how long the capture-delay wait can go without
	// checking for a stop or disable request.
	waitSlice = 50 * time.Millisecond
)

var nowFunc = time.Now

// Trigger is the motion_detected event payload.
type Trigger struct {
	State       string      `json:"state,omitempty"`
	Area        float64     `json:"area"`
	Center      image.Point `json:"center"`
	Timestamp   time.Time   `json:"timestamp"`
	StabilityMS int64       `json:"stability_ms,omitempty"`
}

// captureLoop reads camera frames at the camera's own cadence and publishes
// them to the latest-frame mailbox. Read failures are transient; the loop
// never stops on them.
func (a *App) captureLoop(ctx context.Context) {
	defer a.wg.Done()

	fps := a.camera.FPS()
	if fps <= 0 {
		fps = 15
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := a.camera.ReadFrame()
			if err != nil {
				continue
			}
			a.latest.Publish(frame)
			frame.Close()
		}
	}
}

// run is the orchestration loop: poll the latest frame, feed the detector,
// and run the full trigger cycle when an event fires. While disabled it
// only sleeps and re-checks.
func (a *App) run(ctx context.Context) {
	defer a.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		if !a.IsEnabled() {
			if !sleepCtx(ctx, disabledSleep) {
				return
			}
			continue
		}

		a.cycle(ctx)

		a.mu.RLock()
		poll := a.cfg.Capture.PollIntervalDuration()
		a.mu.RUnlock()
		if !sleepCtx(ctx, poll) {
			return
		}
	}
}

// cycle processes one frame. Any panic is contained here: it is logged,
// surfaced as an error event, and the loop carries on.
func (a *App) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic in detection cycle: %v", r)
			a.bus.Publish(events.Event{Type: events.TypeErrorOccurred, Payload: fmt.Sprint(r)})
		}
	}()

	frame := a.latest.Latest()
	if frame == nil {
		return
	}

	// The read lock spans the detector calls so a hot-reload variant
	// switch cannot close the model out from under a frame in flight. The
	// deferred unlock keeps a detector panic from wedging the lock.
	var ev *detector.Event
	var info detector.StateInfo
	var zoned bool
	func() {
		a.mu.RLock()
		defer a.mu.RUnlock()
		ev = a.det.Process(frame)
		if a.zoned != nil {
			zoned = true
			info = a.zoned.StateInfo()
		}
	}()
	frame.Close()

	// The zoned detector reports its state on every processed frame, not
	// just when an event fires.
	if zoned {
		a.bus.Publish(events.Event{Type: events.TypeMotionStateChanged, Payload: info})
	}

	if ev == nil {
		return
	}
	a.trigger(ctx, ev, zoned)
}

// trigger runs one full capture cycle for a motion event. Within the cycle,
// motion_detected, image_captured and then either both result events or
// error_occurred fire in that order; a stop or disable request mid-cycle
// aborts with no further events.
func (a *App) trigger(ctx context.Context, ev *detector.Event, zoned bool) {
	trig := Trigger{
		Area:      ev.Area,
		Center:    ev.Center,
		Timestamp: ev.Timestamp,
	}
	if zoned {
		trig.State = ev.State.String()
		trig.StabilityMS = ev.StabilityDuration.Milliseconds()
	}
	a.bus.Publish(events.Event{Type: events.TypeMotionDetected, Payload: trig})

	a.mu.RLock()
	delay := a.cfg.Capture.CaptureDelayDuration()
	a.mu.RUnlock()

	frame := a.latest.Latest()
	if delay > 0 {
		// Let the scene settle, then re-fetch for the freshest frame.
		if frame != nil {
			frame.Close()
		}
		if !a.waitSettle(ctx, delay) {
			return
		}
		frame = a.latest.Latest()
	}
	if frame == nil {
		return
	}

	path, err := a.gallery.SaveFrame(frame)
	frame.Close()
	if err != nil {
		a.fail(fmt.Sprintf("failed to save capture: %v", err))
		return
	}
	a.bus.Publish(events.Event{Type: events.TypeImageCaptured, Payload: path})

	if ctx.Err() != nil || !a.IsEnabled() {
		return
	}

	result, err := a.recognizer.Recognize(ctx, path)
	if ctx.Err() != nil {
		// Cancelled mid-flight: the cycle produces no result events.
		return
	}
	if err != nil || result == nil {
		a.fail(fmt.Sprintf("recognition failed: %v", err))
		return
	}

	record := a.newRecord(result, ev, path, zoned)
	if a.st != nil {
		if err := a.st.Detections().Create(record); err != nil {
			log.Printf("failed to persist detection: %v", err)
		}
	}

	a.bus.Publish(events.Event{Type: events.TypeAPIResultReceived, Payload: record})
	a.bus.Publish(events.Event{Type: events.TypeDetectionCompleted, Payload: record})
	log.Printf("detection completed: %s (%s)", record.Category, record.ImagePath)
}

// waitSettle sleeps for the capture delay in short slices, bailing out as
// soon as the pipeline is stopped or disabled.
func (a *App) waitSettle(ctx context.Context, delay time.Duration) bool {
	deadline := nowFunc().Add(delay)
	for {
		remaining := deadline.Sub(nowFunc())
		if remaining <= 0 {
			return true
		}
		slice := waitSlice
		if remaining < slice {
			slice = remaining
		}
		if !sleepCtx(ctx, slice) {
			return false
		}
		if !a.IsEnabled() {
			return false
		}
	}
}

// newRecord merges the recognition result with the trigger metadata.
func (a *App) newRecord(res *recognize.Result, ev *detector.Event, path string, zoned bool) *store.Detection {
	d := &store.Detection{
		Category:        res.Category,
		Composition:     res.Composition,
		DegradationTime: res.DegradationTime,
		RecyclingValue:  res.RecyclingValue,
		Description:     res.Description,
		Confidence:      res.Confidence,
		ImagePath:       path,
		DetectionMethod: a.method,
	}
	if zoned {
		d.PresenceState = ev.State.String()
		d.StabilityMS = ev.StabilityDuration.Milliseconds()
	}
	return d
}

// fail logs and surfaces a cycle failure without stopping the worker.
func (a *App) fail(msg string) {
	log.Println(msg)
	a.bus.Publish(events.Event{Type: events.TypeErrorOccurred, Payload: msg})
}

// sleepCtx sleeps for d, returning false if the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
