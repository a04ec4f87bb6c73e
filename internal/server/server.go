// Package server provides the HTTP API: a chat endpoint that drives the
// turn pipeline, session retrieval, and health probes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/parleyhq/parley/internal/orchestrator"
	"github.com/parleyhq/parley/internal/state"
)

// MaxMessageLen bounds the chat message length in runes.
const MaxMessageLen = 2000

// TurnHandler drives one user message through the turn pipeline.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, userText string) (*orchestrator.TurnResult, error)
}

// Pinger reports readiness of a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP handler dependencies.
type Server struct {
	runner    TurnHandler
	sessions  state.SessionStore
	readiness []Pinger
	logger    *slog.Logger
}

// New creates a server. pingers are checked by the readiness probe and
// may be empty.
func New(runner TurnHandler, sessions state.SessionStore, logger *slog.Logger, pingers ...Pinger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{runner: runner, sessions: sessions, readiness: pingers, logger: logger}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/sessions/{id}", s.handleGetSession)
	})

	return r
}

// chatRequest is the POST /v1/chat payload.
type chatRequest struct {
	// SessionID continues an existing conversation; empty starts one.
	SessionID string `json:"session_id"`
	// Message is the user's message.
	Message string `json:"message"`
}

// chatResponse is the POST /v1/chat reply payload.
type chatResponse struct {
	SessionID        string   `json:"session_id"`
	TurnID           string   `json:"turn_id"`
	Reply            string   `json:"reply"`
	Intent           string   `json:"intent"`
	Confidence       float64  `json:"confidence"`
	Tier             string   `json:"tier"`
	CapabilitiesUsed []string `json:"capabilities_used"`
	Outcomes         any      `json:"outcomes,omitempty"`
	ElapsedMS        int64    `json:"elapsed_ms"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}
	if len([]rune(message)) > MaxMessageLen {
		Error(w, http.StatusBadRequest, "message exceeds maximum length")
		return
	}

	result, err := s.runner.HandleTurn(r.Context(), req.SessionID, message)
	if err != nil {
		s.logger.Error("turn failed", "error", err, "session_id", req.SessionID)
		if orchestrator.IsConfigurationError(err) {
			Error(w, http.StatusInternalServerError, "service misconfigured")
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			Error(w, http.StatusGatewayTimeout, "turn timed out")
			return
		}
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	capabilitiesUsed := result.CapabilitiesUsed
	if capabilitiesUsed == nil {
		capabilitiesUsed = []string{}
	}

	JSON(w, http.StatusOK, chatResponse{
		SessionID:        result.SessionID,
		TurnID:           result.TurnID,
		Reply:            result.Reply,
		Intent:           result.Intent,
		Confidence:       result.Confidence,
		Tier:             string(result.Tier),
		CapabilitiesUsed: capabilitiesUsed,
		Outcomes:         result.Outcomes,
		ElapsedMS:        result.Elapsed.Milliseconds(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.sessions.LoadSession(r.Context(), id)
	if err != nil {
		s.logger.Error("load session failed", "error", err, "session_id", id)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, struct {
		*state.Session
		MessageCount int `json:"message_count"`
	}{session, session.MessageCount()})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	for _, p := range s.readiness {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			Error(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
