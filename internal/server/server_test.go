package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/binsight/internal/app"
	"github.com/ayusman/binsight/internal/config"
	"github.com/ayusman/binsight/internal/detector"
	"github.com/ayusman/binsight/internal/events"
	"github.com/ayusman/binsight/internal/recognize"
	"github.com/ayusman/binsight/internal/store"
)

// nullDetector satisfies detector.Detector without OpenCV.
type nullDetector struct {
	mu     sync.Mutex
	resets int
}

func (d *nullDetector) Process(frame *gocv.Mat) *detector.Event { return nil }

func (d *nullDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
}

func (d *nullDetector) UpdateConfig(cfg detector.Config) {}
func (d *nullDetector) Close()                           {}

type nullRecognizer struct{}

func (nullRecognizer) Recognize(ctx context.Context, path string) (*recognize.Result, error) {
	return &recognize.Result{}, nil
}

func newTestServer(t *testing.T) (*Server, *app.App, *config.Manager, *nullDetector) {
	t.Helper()
	dir := t.TempDir()

	m, err := config.NewManager(filepath.Join(dir, "system_config.json"))
	if err != nil {
		t.Fatal(err)
	}
	cfg := m.Get()
	cfg.Capture.ImageDir = filepath.Join(dir, "images")
	cfg.API.Key = "station-key"
	if err := m.Update(cfg); err != nil {
		t.Fatal(err)
	}

	st, err := store.New(filepath.Join(dir, "binsight.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	det := &nullDetector{}
	a, err := app.New(app.Config{
		Manager:    m,
		Store:      st,
		Detector:   det,
		Recognizer: nullRecognizer{},
	})
	if err != nil {
		t.Fatal(err)
	}

	return New(Config{App: a, Manager: m}), a, m, det
}

func TestHealth(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["enabled"] != false {
		t.Errorf("enabled field = %v, want false before enabling", body["enabled"])
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestDetections(t *testing.T) {
	s, a, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/detections", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Detections []*store.Detection `json:"detections"`
		Count      int                `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0 on empty store", body.Count)
	}

	for i := 0; i < 3; i++ {
		err := a.Store().Detections().Create(&store.Detection{
			Category:        "Recyclable-Metal-Soda Can",
			ImagePath:       "/tmp/x.jpg",
			DetectionMethod: "api",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/detections?limit=2", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want limit applied", body.Count)
	}
	if body.Detections[0].Category != "Recyclable-Metal-Soda Can" {
		t.Errorf("detections = %+v", body.Detections)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/detections?limit=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus limit status = %d, want 400", rec.Code)
	}
}

func TestDetectorState_NonZonedVariant(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/detector/state", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no presence state exists", rec.Code)
	}
}

func TestEnable(t *testing.T) {
	s, a, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/enable", strings.NewReader(`{"enabled": true}`))
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !a.IsEnabled() {
		t.Error("enable request did not enable detection")
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/enable", strings.NewReader(`{"enabled": false}`))
	s.ServeHTTP(rec, req)
	if a.IsEnabled() {
		t.Error("disable request did not disable detection")
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/enable", strings.NewReader(`nonsense`))
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}
}

func TestResetBackground(t *testing.T) {
	s, _, _, det := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reset-background", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	det.mu.Lock()
	defer det.mu.Unlock()
	if det.resets != 1 {
		t.Errorf("detector resets = %d, want 1", det.resets)
	}
}

func TestConfig_GetRedactsAPIKey(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var cfg config.Config
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.API.Key != "" {
		t.Error("GET /api/config must not expose the API key")
	}
	if cfg.Detection.Variant == "" {
		t.Error("config body looks empty")
	}
}

func TestConfig_PutUpdatesAndPreservesKey(t *testing.T) {
	s, _, m, _ := newTestServer(t)

	body := `{"detection": {"min_contour_area": 2500}}`
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/config", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	got := m.Get()
	if got.Detection.MinContourArea != 2500 {
		t.Errorf("min contour area = %v, want hot-reloaded value", got.Detection.MinContourArea)
	}
	if got.API.Key != "station-key" {
		t.Error("PUT without a key must preserve the stored key")
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/config", strings.NewReader("{bad")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed config status = %d, want 400", rec.Code)
	}
}

func TestEvents_WebsocketFeed(t *testing.T) {
	s, a, _, _ := newTestServer(t)

	srv := httptest.NewServer(s)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}
	defer conn.Close()

	// Give the handler a moment to register its subscription.
	time.Sleep(50 * time.Millisecond)
	a.Bus().Publish(events.Event{Type: events.TypeMotionDetected, Payload: map[string]any{"area": 4000}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.Type != events.TypeMotionDetected {
		t.Errorf("event type = %q, want motion_detected", got.Type)
	}
}
