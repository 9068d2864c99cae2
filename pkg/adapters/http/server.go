// Package http exposes the dialogue engine over HTTP with chi. Turns stream
// back as Server-Sent Events; session diffs are pushed to /events subscribers.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Classifier classifies a single message without touching any session.
type Classifier interface {
	Classify(ctx context.Context, message string, canvas *domain.CanvasContext) (domain.Classification, error)
}

// Server serves the HTTP API.
type Server struct {
	Runner     *runner.Runner
	Classifier Classifier
	Streams    *StreamManager

	metrics http.Handler
	version string
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithClassifier enables POST /classify.
func WithClassifier(c Classifier) Option {
	return func(s *Server) {
		s.Classifier = c
	}
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server around r.
func NewServer(r *runner.Runner, opts ...Option) *Server {
	s := &Server{
		Runner:  r,
		version: "dev",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	return s
}

// NewHandler creates the HTTP handler for r.
func NewHandler(r *runner.Runner, opts ...Option) http.Handler {
	return NewServer(r, opts...).Routes()
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Post("/turns", s.PostTurn)
	r.Post("/classify", s.PostClassify)
	r.Get("/sessions", s.ListSessions)
	r.Get("/sessions/{id}", s.GetSession)
	r.Delete("/sessions/{id}", s.DeleteSession)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PostTurn handles POST /turns. The body is a runner.Request; the response is
// an SSE stream with one "event: <kind>" frame per turn event. The session ID
// (generated when the request has none) is returned in X-Session-ID.
func (s *Server) PostTurn(w http.ResponseWriter, r *http.Request) {
	var req runner.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		s.logger.Warn("PostTurn: Invalid request body", "err", err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	started := false
	_, err := s.Runner.Turn(r.Context(), req, func(ev domain.StreamEvent, diff *domain.SessionDiff) error {
		if !started {
			started = true
			w.Header().Set("X-Session-ID", req.SessionID)
			setStreamHeaders(w)
			w.WriteHeader(http.StatusOK)
		}
		if diff != nil {
			s.broadcast(diff)
		}
		if err := writeEvent(w, string(ev.Kind), ev); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	switch {
	case err == nil:
	case started:
		// The stream is already committed; the client sees it end early.
		s.logger.Warn("PostTurn: Stream ended early", "session_id", req.SessionID, "err", err)
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("PostTurn: Turn failed", "session_id", req.SessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "Turn failed")
	}
}

func (s *Server) broadcast(diff *domain.SessionDiff) {
	data, err := json.Marshal(diff)
	if err != nil {
		s.logger.Error("Failed to encode session diff", "session_id", diff.SessionID, "err", err)
		return
	}
	s.Streams.Broadcast(diff.SessionID, string(data))
}

type classifyRequest struct {
	Message string                `json:"message"`
	Canvas  *domain.CanvasContext `json:"canvas,omitempty"`
}

// PostClassify handles POST /classify.
func (s *Server) PostClassify(w http.ResponseWriter, r *http.Request) {
	if s.Classifier == nil {
		writeError(w, http.StatusNotImplemented, "Classification endpoint disabled")
		return
	}
	var body classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cls, err := s.Classifier.Classify(r.Context(), body.Message, body.Canvas)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("PostClassify failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Classification failed")
		return
	}
	writeJSON(w, http.StatusOK, cls)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Runner.Sessions().List(r.Context())
	if err != nil {
		s.logger.Error("ListSessions failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.Runner.Sessions().Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		s.logger.Error("GetSession failed", "session_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Runner.Sessions().Delete(r.Context(), id); err != nil {
		s.logger.Error("DeleteSession failed", "session_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubscribeEvents handles GET /events?session_id=...&watch=... (SSE). Each
// saved change of the session is pushed as a SessionDiff. watch is a comma
// separated filter over "history", "canvas" and "clarification".
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	var watchList []string
	if watch := r.URL.Query().Get("watch"); watch != "" {
		for _, f := range strings.Split(watch, ",") {
			watchList = append(watchList, strings.TrimSpace(f))
		}
	}

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()
	s.logger.Info("SSE: Subscribing to session updates", "session_id", sessionID)

	setStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watchList) > 0 && !watched(msg, watchList) {
				continue
			}
			fmt.Fprintf(w, "event: diff\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func watched(msg string, fields []string) bool {
	var diff domain.SessionDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range fields {
		switch field {
		case "history":
			if len(diff.Appended) > 0 {
				return true
			}
		case "canvas":
			if diff.Canvas != nil {
				return true
			}
		case "clarification":
			if diff.PendingClarification != nil || diff.ClarificationCleared {
				return true
			}
		}
	}
	return false
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "canvas-http",
		"version": s.version,
	})
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
