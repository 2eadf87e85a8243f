// Package http exposes the engine's operations to the gateway-facing layer
// as a JSON API. Each route maps 1:1 onto one engine operation; the
// persisted session layout is not part of this surface.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/katlego-io/ussdflow/internal/logging"
	"github.com/katlego-io/ussdflow/pkg/domain"
	"github.com/katlego-io/ussdflow/pkg/engine"
)

// Server wires the engine into chi routes.
type Server struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewHandler creates the gateway HTTP handler.
func NewHandler(eng *engine.Engine, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{engine: eng, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/sessions", s.createSession)
		v1.Get("/sessions/active", s.getActiveSession)
		v1.Post("/sessions/{sessionID}/input", s.processInput)
		v1.Post("/sessions/{sessionID}/navigate", s.navigate)
		v1.Post("/sessions/{sessionID}/complete", s.complete)
		v1.Post("/sessions/{sessionID}/terminate", s.terminate)
		v1.Post("/sweep", s.sweep)
	})

	return r
}

type createSessionRequest struct {
	FlowID      string `json:"flow_id"`
	PhoneNumber string `json:"phone_number"`
	ShortCode   string `json:"short_code"`
}

type screenResponse struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Status    string `json:"status"`
	Reprompt  bool   `json:"reprompt,omitempty"`
}

type inputRequest struct {
	Input string `json:"input"`
}

type navigateRequest struct {
	NodeID string `json:"node_id"`
}

type terminateRequest struct {
	Reason string `json:"reason"`
}

type sweepResponse struct {
	Count int `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if body.FlowID == "" || body.PhoneNumber == "" || body.ShortCode == "" {
		s.respondError(w, http.StatusBadRequest, "bad_request", "flow_id, phone_number and short_code are required")
		return
	}

	result, err := s.engine.CreateSession(r.Context(), body.FlowID, body.PhoneNumber, body.ShortCode)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, screenResponse{
		SessionID: result.Session.SessionID,
		Text:      result.Text,
		Status:    string(result.Status),
	})
}

func (s *Server) processInput(w http.ResponseWriter, r *http.Request) {
	var body inputRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	result, err := s.engine.ProcessInput(r.Context(), sessionID, body.Input)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, screenResponse{
		SessionID: result.Session.SessionID,
		Text:      result.Text,
		Status:    string(result.Status),
		Reprompt:  result.Reprompt,
	})
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	var body navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if body.NodeID == "" {
		s.respondError(w, http.StatusBadRequest, "bad_request", "node_id is required")
		return
	}

	session, err := s.engine.NavigateToNode(r.Context(), chi.URLParam(r, "sessionID"), body.NodeID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, session)
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request) {
	session, err := s.engine.CompleteSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, session)
}

func (s *Server) terminate(w http.ResponseWriter, r *http.Request) {
	var body terminateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.respondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}
	}

	session, err := s.engine.TerminateSession(r.Context(), chi.URLParam(r, "sessionID"), body.Reason)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, session)
}

func (s *Server) getActiveSession(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone_number")
	code := r.URL.Query().Get("short_code")
	if phone == "" || code == "" {
		s.respondError(w, http.StatusBadRequest, "bad_request", "phone_number and short_code are required")
		return
	}

	session, err := s.engine.GetActiveSession(r.Context(), phone, code)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, session)
}

func (s *Server) sweep(w http.ResponseWriter, r *http.Request) {
	count, err := s.engine.Sweep(r.Context(), s.engine.Now())
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sweepResponse{Count: count})
}

// respondEngineError maps the engine's error taxonomy onto HTTP statuses.
// The gateway chooses its own user-facing wording; only the code matters.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrFlowNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrNodeNotFound):
		s.respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConflictingActiveSession):
		s.respondError(w, http.StatusConflict, "conflicting_active_session", err.Error())
	case errors.Is(err, domain.ErrConcurrentModification):
		// Duplicate/retransmit: the caller should re-read and resend the
		// previous screen rather than retry the input.
		s.respondError(w, http.StatusConflict, "concurrent_modification", err.Error())
	case errors.Is(err, domain.ErrSessionNotActive):
		s.respondError(w, http.StatusGone, "session_not_active", err.Error())
	default:
		s.logger.Error("engine error", "err", err)
		s.respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// requestLogger emits one structured log line per request, in place of
// chi's text logger so gateway logs stay machine-parseable.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, msg string) {
	s.respondJSON(w, status, errorResponse{Error: msg, Code: code})
}
