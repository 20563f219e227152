// Package server provides the HTTP server exposing health, recorded
// motion events, and the live frame stream.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/hammycam/internal/store"
)

// FrameProvider supplies the most recent processed frame as JPEG
// bytes. A nil return means no frame is available yet.
type FrameProvider interface {
	LatestFrame() []byte
}

// Config holds the server configuration.
type Config struct {
	Store  *store.Store
	Frames FrameProvider
	Hub    *EventsHub
}

// Server represents the HTTP server for the motion detection daemon.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		s.mux.HandleFunc("/api/events", s.handleEvents)
		s.mux.HandleFunc("/api/events/", s.handleEventByID)
	}

	if s.config.Frames != nil {
		s.mux.HandleFunc("/api/frame", s.handleFrame)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/motion", s.config.Hub)
	}
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

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	writeJSON(w, http.StatusOK, response)
}

// handleEvents handles GET requests to /api/events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	events, err := s.config.Store.Events().List(limit)
	if err != nil {
		http.Error(w, "Failed to list events", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, eventsToJSON(events))
}

// handleEventByID handles GET requests to /api/events/{id}.
func (s *Server) handleEventByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/events/")
	if id == "" {
		http.Error(w, "Missing event ID", http.StatusBadRequest)
		return
	}

	event, err := s.config.Store.Events().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load event", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, eventToJSON(event))
}

// handleFrame serves the latest processed frame as a single JPEG.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jpeg := s.config.Frames.LatestFrame()
	if len(jpeg) == 0 {
		http.Error(w, "No frame available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(jpeg)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// eventJSON is the wire form of a stored motion event.
type eventJSON struct {
	ID             string       `json:"id"`
	Source         string       `json:"source"`
	DetectedAt     time.Time    `json:"detected_at"`
	FrameIndex     int          `json:"frame_index"`
	ChangedPercent float64      `json:"changed_percent"`
	Regions        []regionJSON `json:"regions,omitempty"`
}

type regionJSON struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func eventToJSON(e *store.Event) eventJSON {
	out := eventJSON{
		ID:             e.ID,
		Source:         e.Source,
		DetectedAt:     e.DetectedAt,
		FrameIndex:     e.FrameIndex,
		ChangedPercent: e.ChangedPercent,
	}
	for _, r := range e.Regions {
		out.Regions = append(out.Regions, regionJSON{
			X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy(),
		})
	}
	return out
}

func eventsToJSON(events []*store.Event) []eventJSON {
	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, eventToJSON(e))
	}
	return out
}
