// Package app wires the capture, detection, recognition and persistence
// pieces into the station's orchestration loop.
package app

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/ayusman/binsight/internal/capture"
	"github.com/ayusman/binsight/internal/config"
	"github.com/ayusman/binsight/internal/detector"
	"github.com/ayusman/binsight/internal/events"
	"github.com/ayusman/binsight/internal/gallery"
	"github.com/ayusman/binsight/internal/recognize"
	"github.com/ayusman/binsight/internal/store"
)

// Config holds the application dependencies. Camera, Detector and
// Recognizer may be pre-built (tests use the mock camera and stubs);
// when nil they are constructed from the station configuration.
type Config struct {
	Manager    *config.Manager
	Store      *store.Store
	Camera     capture.Camera
	Detector   detector.Detector
	Recognizer recognize.Recognizer
}

// App owns the detection pipeline: one capture goroutine feeding the latest
// frame mailbox, one orchestrator goroutine polling it. All external control
// goes through the enabled flag and the hot-reload listener.
type App struct {
	manager *config.Manager
	st      *store.Store

	camera     capture.Camera
	latest     *capture.LatestFrame
	recognizer recognize.Recognizer
	gallery    *gallery.Gallery
	bus        *events.Bus
	method     string

	mu      sync.RWMutex
	cfg     config.Config
	det     detector.Detector
	zoned   *detector.ZonedPresenceDetector
	enabled bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an App from the station configuration and registers for
// hot reload.
func New(c Config) (*App, error) {
	cfg := c.Manager.Get()

	g, err := gallery.New(cfg.Capture.ImageDir, cfg.Capture.MaxSavedImages)
	if err != nil {
		return nil, fmt.Errorf("init gallery: %w", err)
	}

	a := &App{
		manager:    c.Manager,
		st:         c.Store,
		camera:     c.Camera,
		latest:     capture.NewLatestFrame(),
		recognizer: c.Recognizer,
		gallery:    g,
		bus:        events.NewBus(events.DefaultBuffer),
		cfg:        cfg,
		det:        c.Detector,
		method:     "api",
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(cfg.Camera.DeviceID)
	}
	if a.det == nil {
		a.det = newDetector(cfg.Detection)
	}
	a.zoned, _ = a.det.(*detector.ZonedPresenceDetector)

	if a.recognizer == nil {
		if cfg.API.Key == "" {
			log.Println("no API key configured, using simulated recognition")
			a.recognizer = recognize.NewSimulator()
			a.method = "simulation"
		} else {
			a.recognizer = recognize.NewClient(recognize.ClientConfig{
				APIURL:     cfg.API.URL,
				APIKey:     cfg.API.Key,
				Model:      cfg.API.Model,
				MaxRetries: cfg.API.MaxRetries,
				Timeout:    cfg.API.TimeoutDuration(),
			})
		}
	}

	c.Manager.OnChange(a.applyConfig)

	return a, nil
}

// newDetector builds the configured detector variant.
func newDetector(d config.DetectionConfig) detector.Detector {
	if d.Variant == config.VariantGate {
		return detector.NewRawMotionGate(d.DetectorConfig())
	}
	return detector.NewZonedPresenceDetector(d.DetectorConfig())
}

// Start opens the camera and launches the capture and orchestration
// goroutines. Starting a running app is a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.camera.SetFPS(a.cfg.Camera.FPS)

	a.pruneHistory()

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(2)
	go a.captureLoop(ctx)
	go a.run(ctx)

	log.Println("detection pipeline started")
	return nil
}

// Stop halts both goroutines and releases the camera and detector. Any
// in-flight recognition call is cancelled.
func (a *App) Stop() {
	a.mu.Lock()
	if a.cancel == nil {
		a.mu.Unlock()
		return
	}
	a.cancel()
	a.cancel = nil
	a.mu.Unlock()

	a.wg.Wait()

	if err := a.camera.Close(); err != nil {
		log.Printf("error closing camera: %v", err)
	}

	a.mu.Lock()
	a.det.Close()
	a.mu.Unlock()

	a.latest.Close()
	a.bus.Close()

	log.Println("detection pipeline stopped")
}

// SetEnabled enables or disables detection. The worker keeps running while
// disabled, it just skips processing. The toggle is persisted so a restart
// comes back in the same mode.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()

	if enabled {
		log.Println("motion detection enabled")
	} else {
		log.Println("motion detection disabled")
	}

	if a.st != nil {
		if err := a.st.Settings().Set(store.SettingDetectionEnabled, strconv.FormatBool(enabled)); err != nil {
			log.Printf("failed to persist detection toggle: %v", err)
		}
	}
}

// IsEnabled returns whether detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// ResetBackground discards the detector's learned background. The read
// lock keeps the detector alive for the duration of the call.
func (a *App) ResetBackground() {
	a.mu.RLock()
	defer a.mu.RUnlock()
	a.det.Reset()
}

// StateInfo returns the zoned detector's state snapshot. ok is false for
// the gate variant, which tracks no presence state.
func (a *App) StateInfo() (detector.StateInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.zoned == nil {
		return detector.StateInfo{}, false
	}
	return a.zoned.StateInfo(), true
}

// applyConfig is the hot-reload listener. A variant switch rebuilds the
// detector; otherwise the running detector is retuned in place.
func (a *App) applyConfig(cfg config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cfg.Detection.Variant != a.cfg.Detection.Variant {
		// The worker holds the read lock across Process, so the old
		// detector is idle here and safe to close.
		a.det.Close()
		a.det = newDetector(cfg.Detection)
		a.zoned, _ = a.det.(*detector.ZonedPresenceDetector)
		log.Printf("detector variant switched to %s", cfg.Detection.Variant)
	} else {
		a.det.UpdateConfig(cfg.Detection.DetectorConfig())
	}

	if cfg.Camera.FPS != a.cfg.Camera.FPS {
		a.camera.SetFPS(cfg.Camera.FPS)
	}

	a.cfg = cfg
	log.Println("configuration applied")
}

// pruneHistory removes stored detections past the retention window.
// Caller holds a.mu.
func (a *App) pruneHistory() {
	if a.st == nil || a.cfg.Data.MaxDataAgeDays <= 0 {
		return
	}

	cutoff := nowFunc().Add(-a.cfg.Data.MaxDataAge())
	pruned, err := a.st.Detections().PruneOlderThan(cutoff)
	if err != nil {
		log.Printf("failed to prune detection history: %v", err)
		return
	}
	if pruned > 0 {
		log.Printf("pruned %d detections older than %d days", pruned, a.cfg.Data.MaxDataAgeDays)
	}
}

// Bus returns the pipeline event bus.
func (a *App) Bus() *events.Bus {
	return a.bus
}

// LatestFrame returns the frame mailbox, read by the MJPEG stream.
func (a *App) LatestFrame() *capture.LatestFrame {
	return a.latest
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Gallery returns the saved-image gallery.
func (a *App) Gallery() *gallery.Gallery {
	return a.gallery
}

// Store returns the persistence layer, which may be nil.
func (a *App) Store() *store.Store {
	return a.st
}
