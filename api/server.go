// Package api provides the HTTP interface for the conversational query
// service.
//
// Endpoints:
//
//	POST /chat    - one conversational turn (JSON request/response)
//	GET  /        - service status
//	GET  /health  - liveness probe
//	GET  /ready   - readiness probe (pings the database)
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: recovery, request ID, logging
//   - ratelimit.go: per-IP token bucket
//   - chat.go: chat endpoint
//   - health.go: probes and status
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oceanlab/argonaut/internal/chat"
	"github.com/oceanlab/argonaut/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to resist slow-client attacks.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because one chat turn can wait on two model
	// calls plus a query.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// ServerConfig contains the server dependencies.
type ServerConfig struct {
	Chat      *chat.Service // Required
	Pool      *pgxpool.Pool // Optional: nil makes /ready report unavailable
	Logger    log.Logger
	RateBurst int // Rate limiter burst size per IP (0 = default 30)
}

// Server is the HTTP server for the chat API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates a server with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Chat == nil {
		return nil, errors.New("chat service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()

	ch := &chatHandler{service: cfg.Chat, logger: logger}
	ch.RegisterRoutes(mux)

	hh := &healthHandler{pool: cfg.Pool, chat: cfg.Chat, logger: logger}
	mux.HandleFunc("GET /{$}", hh.status)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 30
	}
	rl := newRateLimiter(1.0, burst)

	wrapped := chain(mux,
		recoveryMiddleware(logger),
		requestIDMiddleware(),
		loggingMiddleware(logger),
		rateLimitMiddleware(rl, logger),
	)

	// Probes bypass the middleware stack so orchestrators are never rate
	// limited away from them.
	top := http.NewServeMux()
	hh.RegisterRoutes(top)
	top.Handle("/", wrapped)

	return &Server{mux: top, logger: logger}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
