package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"servicemon/internal/event"
	"servicemon/internal/metrics"
	"servicemon/internal/service"
)

// Server wraps HTTP serving of the status API and the event stream.
type Server struct {
	httpServer   *http.Server
	log          *event.Log
	services     []*service.Service
	hub          *Hub
	historyLimit int
}

// New creates a configured HTTP server for the monitor. The returned
// hub must be attached to the event queue to feed /ws/events.
func New(addr string, log *event.Log, services []*service.Service) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer:   &http.Server{Addr: addr, Handler: mux},
		log:          log,
		services:     services,
		hub:          NewHub(),
		historyLimit: 200,
	}
	s.registerRoutes(mux)
	return s
}

// Hub returns the websocket broadcast hub; it implements event.Sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/services", s.handleServices)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/availability", s.handleAvailability)
	mux.HandleFunc("/ws/events", s.hub.handleWS)
}

type statusResponse struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Services    []serviceStatus `json:"services"`
	LastEvent   *event.Event    `json:"last_event,omitempty"`
}

type serviceStatus struct {
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Path      string     `json:"path,omitempty"`
	Monitored bool       `json:"monitored"`
	Waiting   bool       `json:"waiting"`
	Collected *time.Time `json:"collected,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		GeneratedAt: time.Now().UTC(),
		Services:    make([]serviceStatus, 0, len(s.services)),
	}
	for _, svc := range s.services {
		status := serviceStatus{
			Name:      svc.Name,
			Type:      svc.Type.String(),
			Path:      svc.Path,
			Monitored: svc.Monitor != service.MonitorNot,
			Waiting:   svc.Monitor&service.MonitorWaiting != 0,
		}
		if !svc.Collected.IsZero() {
			collected := svc.Collected
			status.Collected = &collected
		}
		resp.Services = append(resp.Services, status)
	}
	if latest, ok := s.log.Latest(); ok {
		resp.LastEvent = &latest
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleServices(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(s.services))
	for _, svc := range s.services {
		names = append(names, svc.Name)
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	writeJSON(w, http.StatusOK, s.log.HistoryN(limit))
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	summary := metrics.ComputeServiceAvailability(s.log.HistoryN(limit))
	writeJSON(w, http.StatusOK, summary)
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
