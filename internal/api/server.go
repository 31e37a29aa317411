// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihandler "github.com/newthinker/stonks/internal/api/handler/api"
	"github.com/newthinker/stonks/internal/api/job"
	"github.com/newthinker/stonks/internal/api/middleware"
	"github.com/newthinker/stonks/internal/backtest"
	"github.com/newthinker/stonks/internal/metrics"
	"github.com/newthinker/stonks/internal/predictor"
)

// Server represents the HTTP server for stonks
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	APIKey       string
	AllowOrigins []string
	// MetricsPath exposes Prometheus metrics when set.
	MetricsPath string
}

// Dependencies holds the components behind the API handlers.
type Dependencies struct {
	Market           apihandler.MarketData
	Predictors       *predictor.Registry
	Backtester       apihandler.Runner
	Jobs             *job.Store
	Metrics          *metrics.Registry
	Simulation       apihandler.SimulationOptions
	BacktestDefaults backtest.Config
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Market == nil || deps.Predictors == nil || deps.Backtester == nil {
		return nil, fmt.Errorf("server dependencies incomplete")
	}
	if deps.Jobs == nil {
		deps.Jobs = job.NewStore(100, time.Hour)
	}
	if deps.Simulation.Logger == nil {
		deps.Simulation.Logger = logger
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// simulations and synchronous backtests can take a while
			WriteTimeout: 6 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		mux:    mux,
	}

	s.setupRoutes(cfg, deps)

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.AllowOrigins)(handler)
	handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	handler = metrics.LoggingMiddleware(logger)(handler)
	s.httpServer.Handler = handler

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	market := apihandler.NewMarketHandler(deps.Market)
	sims := apihandler.NewSimulationHandler(deps.Market, deps.Predictors, deps.Simulation)
	backtests := apihandler.NewBacktestHandler(deps.Market, deps.Backtester, deps.Jobs, apihandler.BacktestOptions{
		Defaults: deps.BacktestDefaults,
		Metrics:  deps.Metrics,
		Logger:   s.logger,
	})

	auth := middleware.APIKeyAuth(cfg.APIKey)
	v1 := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, auth(h))
	}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	v1("GET /api/v1/sources", market.Sources)
	v1("POST /api/v1/history", market.History)
	v1("POST /api/v1/simulate", sims.Simulate)
	v1("POST /api/v1/predict", sims.Predict)
	v1("POST /api/v1/backtest", backtests.Run)
	v1("POST /api/v1/backtest/jobs", backtests.Create)
	v1("GET /api/v1/backtest/jobs/{id}", backtests.GetStatus)

	if cfg.MetricsPath != "" && deps.Metrics != nil {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"online","service":"stonks"}`))
}
