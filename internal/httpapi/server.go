// Package httpapi exposes the mixer's status and control surfaces over
// HTTP, built on chi and the Prometheus metrics handler.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agalue/loopback-mixer/internal/mixer"
)

// maxRequestBodySize is the upper limit for JSON request bodies.
const maxRequestBodySize = 1 << 16

// Server holds the status/control HTTP handler dependencies.
type Server struct {
	router *chi.Mux
	mx     *mixer.Mixer
}

// NewServer creates a status/control HTTP server with all routes mounted.
func NewServer(mx *mixer.Mixer) *Server {
	s := &Server{
		router: chi.NewRouter(),
		mx:     mx,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/sources/{id}", func(r chi.Router) {
		r.Post("/gain", s.handleSetGain)
		r.Post("/mute", s.handleSetMute)
		r.Post("/latency", s.handleSetLatency)
	})
}

// handleStatus handles GET /status, returning the current mixer diagnostics
// snapshot as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mx.Status())
}

type gainRequest struct {
	Linear float32 `json:"linear"`
}

// handleSetGain handles POST /sources/{id}/gain.
func (s *Server) handleSetGain(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSourceID(w, r)
	if !ok {
		return
	}

	var req gainRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if err := s.mx.SetGain(id, req.Linear); err != nil {
		writeMixerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: "ok"})
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

// handleSetMute handles POST /sources/{id}/mute.
func (s *Server) handleSetMute(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSourceID(w, r)
	if !ok {
		return
	}

	var req muteRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if err := s.mx.SetMute(id, req.Muted); err != nil {
		writeMixerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: "ok"})
}

type latencyRequest struct {
	Frames int64 `json:"frames"`
}

// handleSetLatency handles POST /sources/{id}/latency.
func (s *Server) handleSetLatency(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSourceID(w, r)
	if !ok {
		return
	}

	var req latencyRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if err := s.mx.SetLatency(id, req.Frames); err != nil {
		writeMixerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: "ok"})
}

func parseSourceID(w http.ResponseWriter, r *http.Request) (mixer.SourceID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "source id must be a non-negative integer")
		return 0, false
	}
	return mixer.SourceID(id), true
}

func writeMixerError(w http.ResponseWriter, err error) {
	switch err.(type) {
	case *mixer.UnknownSourceError:
		writeError(w, http.StatusNotFound, err.Error())
	case *mixer.InvalidLengthError, *mixer.UnsupportedChannelsError:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error("mixer control call failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// envelope is the standard response wrapper for the control API.
type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("failed to encode json response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Error: msg}); err != nil {
		log.Error("failed to encode json error response", "err", err)
	}
}

func readJSON(r *http.Request, dst any) string {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return "invalid request body"
	}
	if dec.More() {
		return "request body must contain a single json object"
	}
	return ""
}
