package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/history"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/turn"
)

// CatalogFunc loads the current model catalog. Looked up per request so
// catalog changes take effect without a restart.
type CatalogFunc func() (config.Catalog, error)

// DirectPipeline runs one direct-completion turn against a hosted
// chat-completion provider.
type DirectPipeline interface {
	Respond(ctx context.Context, tr *turn.Turn, messages []history.Message, useTools bool) (string, error)
}

// AgentPipeline runs one turn against the stateful agent service.
type AgentPipeline interface {
	Respond(ctx context.Context, tr *turn.Turn, userInput string) (string, error)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger    *slog.Logger
	Sessions  *session.Store   // Required
	Builder   *history.Builder // Required
	Catalog   CatalogFunc      // Required
	Direct    DirectPipeline   // Required
	Agent     AgentPipeline    // Required
	UploadDir string           // Staging directory for uploaded attachments

	CORSOrigins []string // Allowed origins for CORS
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst   int      // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON/SSE API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Builder == nil {
		return nil, errors.New("history builder is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("catalog source is required")
	}
	if cfg.Direct == nil || cfg.Agent == nil {
		return nil, errors.New("both pipelines are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mh := &modelHandler{catalog: cfg.Catalog, logger: logger}
	sh := &sessionHandler{store: cfg.Sessions, logger: logger}
	fh := &fileHandler{store: cfg.Sessions, uploadDir: cfg.UploadDir, logger: logger}
	ch := &chatHandler{
		store:   cfg.Sessions,
		builder: cfg.Builder,
		direct:  cfg.Direct,
		agent:   cfg.Agent,
		logger:  logger,
	}

	mux := http.NewServeMux()

	// Model catalog and UI bootstrap
	mux.HandleFunc("GET /api/v1/profiles", mh.listProfiles)
	mux.HandleFunc("GET /api/v1/starters", mh.listStarters)

	// Sessions
	mux.HandleFunc("POST /api/v1/sessions", sh.createSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.getSession)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/settings", sh.updateSettings)

	// Attachment staging
	mux.HandleFunc("POST /api/v1/sessions/{id}/files", fh.stageFiles)

	// Chat
	mux.HandleFunc("POST /api/v1/chat/stream", ch.stream)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Identity → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = identityMiddleware(logger)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Catalog, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
