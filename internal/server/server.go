// Package server is the headless HTTP + WebSocket API for the bot: read-only
// views of positions, trades, quotes, and events, plus an ad-hoc screening
// endpoint for the dashboard.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/you/snipebot/internal/domain"
	"github.com/you/snipebot/internal/server/handler"
	"github.com/you/snipebot/internal/server/middleware"
	"github.com/you/snipebot/internal/server/ws"
)

// apiRateLimit caps requests per client IP per minute.
const apiRateLimit = 120

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Positions *handler.PositionHandler
	Trades    *handler.TradeHandler
	Quotes    *handler.QuoteHandler
	Events    *handler.EventHandler
	Screen    *handler.ScreenHandler

	// Archives is nil when archival is disabled; the route is then absent.
	Archives *handler.ArchiveHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub. limiter may be nil, which disables rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Bot status.
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Position endpoints.
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListOpen)
	mux.HandleFunc("GET /api/positions/history", handlers.Positions.ListHistory)
	mux.HandleFunc("GET /api/positions/{token}", handlers.Positions.GetByToken)

	// Trade history.
	mux.HandleFunc("GET /api/trades", handlers.Trades.ListRecent)
	mux.HandleFunc("GET /api/tokens/{token}/trades", handlers.Trades.ListByToken)

	// Snapshot and screening endpoints.
	mux.HandleFunc("GET /api/tokens/{token}/quote", handlers.Quotes.GetQuote)
	mux.HandleFunc("GET /api/tokens/{token}/risk", handlers.Quotes.GetRisk)
	mux.HandleFunc("GET /api/tokens/{token}/screen", handlers.Screen.ScreenToken)

	// Event backfill.
	mux.HandleFunc("GET /api/events", handlers.Events.ListEvents)

	// Cold-storage archive listing.
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.ListArchives)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply per-client rate limiting.
	h = middleware.RateLimit(limiter, apiRateLimit, time.Minute)(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
