// Package api exposes the crawl controller over HTTP: start, stop, pause,
// resume, status and a health endpoint.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/seospider/seospider/internal/crawler"
	"github.com/seospider/seospider/internal/types"
)

// Server wires the controller to HTTP handlers.
type Server struct {
	controller *crawler.Controller
	logger     *log.Logger
}

func NewServer(controller *crawler.Controller, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{controller: controller, logger: logger}
}

// Handler returns the routed API surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/crawl/start", s.handleStart)
	mux.HandleFunc("/api/crawl/stop", s.handleStop)
	mux.HandleFunc("/api/crawl/pause", s.handlePause)
	mux.HandleFunc("/api/crawl/resume", s.handleResume)
	mux.HandleFunc("/api/crawl/status", s.handleStatus)
	return mux
}

type controlResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// startRequest carries the seed URL and optional setting overrides. The
// overrides are applied on top of the defaults, so a partial config only
// changes the fields it names.
type startRequest struct {
	URL    string          `json:"url"`
	Config json.RawMessage `json:"config"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, controlResponse{Message: "invalid JSON body"})
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, controlResponse{Message: "url is required"})
		return
	}

	cfg := types.DefaultConfig()
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeJSON(w, http.StatusBadRequest, controlResponse{Message: "invalid config: " + err.Error()})
			return
		}
	}

	ok, msg := s.controller.Start(cfg, req.URL)
	s.respondControl(w, ok, msg)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	ok, msg := s.controller.Stop()
	s.respondControl(w, ok, msg)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	ok, msg := s.controller.Pause()
	s.respondControl(w, ok, msg)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	ok, msg := s.controller.Resume()
	s.respondControl(w, ok, msg)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondControl(w http.ResponseWriter, ok bool, msg string) {
	status := http.StatusOK
	if !ok {
		status = http.StatusConflict
	}
	writeJSON(w, status, controlResponse{Success: ok, Message: msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, controlResponse{Message: "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
