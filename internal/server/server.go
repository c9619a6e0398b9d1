package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ktgogineni08-hub/nifty-trader/internal/config"
	"github.com/ktgogineni08-hub/nifty-trader/internal/marketclock"
	"github.com/ktgogineni08-hub/nifty-trader/internal/modules/portfolio"
	"github.com/ktgogineni08-hub/nifty-trader/internal/modules/trading"
)

// Config holds server configuration
type Config struct {
	Port              int
	Log               zerolog.Logger
	DevMode           bool
	Cfg               *config.Config
	Clock             *marketclock.Clock
	TradingHandlers   *trading.Handlers
	PortfolioHandlers *portfolio.Handler
}

// Server represents the admin/read-only HTTP server.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	clock   *marketclock.Clock
	trading *trading.Handlers
	book    *portfolio.Handler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		clock:   cfg.Clock,
		trading: cfg.TradingHandlers,
		book:    cfg.PortfolioHandlers,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes wires the engine's read-only observability surface. There is
// no mutating HTTP API — orders only ever originate from the trading loop.
func (s *Server) setupRoutes() {
	s.router.NotFound(s.handleNotFound)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", s.book.HandleGetPositions)
			r.Get("/report", s.book.HandleGetReport)
		})

		r.Route("/trades", func(r chi.Router) {
			r.Get("/", s.trading.HandleGetTrades)
			r.Get("/stats", s.trading.HandleGetStats)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", portFromAddr(s.server.Addr)).Msg("starting admin HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down admin HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"server_time":     now,
		"session_state":   s.clock.State(now),
		"market_tradable": s.clock.State(now).IsTradable(),
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func portFromAddr(addr string) int {
	var port int
	_, _ = fmt.Sscanf(addr, ":%d", &port)
	return port
}
