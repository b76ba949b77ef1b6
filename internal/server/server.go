// Package server provides the HTTP control and observation surface for the
// drop station: detection history, detector state and control, config hot
// reload, the MJPEG preview stream and the websocket event feed.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/binsight/internal/app"
	"github.com/ayusman/binsight/internal/config"
)

// Config holds the server dependencies.
type Config struct {
	App     *app.App
	Manager *config.Manager
}

// Server is the station's HTTP surface.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(cfg Config) *Server {
	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/detections", s.handleDetections)
	s.mux.HandleFunc("/api/detector/state", s.handleDetectorState)
	s.mux.HandleFunc("/api/enable", s.handleEnable)
	s.mux.HandleFunc("/api/reset-background", s.handleResetBackground)
	s.mux.HandleFunc("/api/config", s.handleConfig)

	s.mux.Handle("/api/stream", NewStreamHandler(s.config.App.LatestFrame()))
	s.mux.Handle("/api/events", NewEventsHandler(s.config.App.Bus()))
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.start).String(),
		"enabled": s.config.App.IsEnabled(),
	})
}

// handleDetections handles GET requests to /api/detections. The optional
// limit query parameter bounds the result; default 50.
func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.config.App.Store()
	if st == nil {
		http.Error(w, "Detection history not available", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	detections, err := st.Detections().ListRecent(limit)
	if err != nil {
		http.Error(w, "Failed to list detections", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"detections": detections,
		"count":      len(detections),
	})
}

// handleDetectorState handles GET requests to /api/detector/state. The gate
// variant tracks no presence state and answers 404.
func (s *Server) handleDetectorState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info, ok := s.config.App.StateInfo()
	if !ok {
		http.Error(w, "Detector variant has no presence state", http.StatusNotFound)
		return
	}

	writeJSON(w, info)
}

// handleEnable handles POST requests to /api/enable with body
// {"enabled": bool}.
func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.config.App.SetEnabled(req.Enabled)
	writeJSON(w, map[string]any{"enabled": req.Enabled})
}

// handleResetBackground handles POST requests to /api/reset-background.
func (s *Server) handleResetBackground(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.config.App.ResetBackground()
	writeJSON(w, map[string]any{"status": "reset"})
}

// handleConfig handles GET and PUT requests to /api/config. PUT persists
// and hot-reloads; the API key is never exposed on GET and is preserved on
// PUT when the request omits it.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg := s.config.Manager.Get()
		cfg.API.Key = ""
		writeJSON(w, cfg)

	case http.MethodPut:
		current := s.config.Manager.Get()

		// Start from the current config so omitted fields keep their values.
		next := current
		next.API.Key = ""
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			http.Error(w, "Invalid config", http.StatusBadRequest)
			return
		}
		if next.API.Key == "" {
			next.API.Key = current.API.Key
		}

		if err := s.config.Manager.Update(next); err != nil {
			log.Printf("config update failed: %v", err)
			http.Error(w, "Failed to save config", http.StatusInternalServerError)
			return
		}

		next.API.Key = ""
		writeJSON(w, next)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		log.Printf("failed to encode response: %v", err)
	}
}
