package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/mesa/pkg/auth"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/rpc"
	"github.com/go-chi/chi/v5"
)

// APIKeyHeader carries the caller credential.
const APIKeyHeader = "X-API-Key"

// DefaultMaxBodyBytes bounds a request body when WithMaxBodyBytes is not used.
const DefaultMaxBodyBytes int64 = 1 << 20

// Dispatcher is the part of the host the transport needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, agentType, instanceID string, raw any, credential string) domain.Response
	Agents() []string
}

// Option configures the handler.
type Option func(*Server)

// WithMaxBodyBytes limits the size of a request body.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the logger for transport failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStreams mounts GET /events, the SSE feed of update deliveries.
// Subscribers send the same header as dispatch requests, checked by authn.
func WithStreams(streams *StreamManager, authn auth.Authenticator) Option {
	return func(s *Server) {
		s.streams = streams
		s.streamAuth = authn
	}
}

// Server exposes a Dispatcher over HTTP.
type Server struct {
	dispatcher Dispatcher
	maxBody    int64
	metrics    http.Handler
	streams    *StreamManager
	streamAuth auth.Authenticator
	logger     *slog.Logger
	version    string
}

// NewHandler creates a new HTTP handler for the host.
func NewHandler(d Dispatcher, version string, opts ...Option) http.Handler {
	s := &Server{
		dispatcher: d,
		maxBody:    DefaultMaxBodyBytes,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		version:    version,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Post("/agents/{agentType}/{instanceId}", s.Dispatch)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.json", s.GetOpenAPI)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.streams != nil && s.streamAuth != nil {
		r.Get("/events", s.SubscribeEvents)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+APIKeyHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Dispatch handles POST /agents/{agentType}/{instanceId}.
// The body is passed to the host untouched; the HTTP status follows the envelope.
func (s *Server) Dispatch(w http.ResponseWriter, r *http.Request) {
	agentType := chi.URLParam(r, "agentType")
	instanceID := chi.URLParam(r, "instanceId")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		// An unreadable or oversized body dispatches as empty, which fails parsing after authentication.
		s.logger.Warn("Dispatch: failed to read body", "agent", agentType, "error", err)
		body = nil
	}

	resp := s.dispatcher.Dispatch(r.Context(), agentType, instanceID, body, r.Header.Get(APIKeyHeader))
	writeJSON(w, rpc.HTTPStatus(resp), resp, s.logger)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":     "mesa",
		"version": s.version,
		"agents":  s.dispatcher.Agents(),
	}, s.logger)
}

// GetOpenAPI handles the GET /openapi.json request.
func (s *Server) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc := OpenAPI(s.version, s.dispatcher.Agents())
	writeJSON(w, http.StatusOK, doc, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}
