// Package app assembles the running system from configuration.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stonks/internal/api"
	apihandler "github.com/newthinker/stonks/internal/api/handler/api"
	"github.com/newthinker/stonks/internal/api/job"
	"github.com/newthinker/stonks/internal/backtest"
	"github.com/newthinker/stonks/internal/cache"
	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/collector/alphavantage"
	"github.com/newthinker/stonks/internal/collector/finnhub"
	"github.com/newthinker/stonks/internal/collector/mock"
	"github.com/newthinker/stonks/internal/collector/polygon"
	"github.com/newthinker/stonks/internal/collector/snapshot"
	"github.com/newthinker/stonks/internal/collector/yahoo"
	"github.com/newthinker/stonks/internal/collector/yahoochart"
	"github.com/newthinker/stonks/internal/config"
	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/metrics"
	"github.com/newthinker/stonks/internal/pipeline"
	"github.com/newthinker/stonks/internal/predictor"
	"github.com/newthinker/stonks/internal/predictor/montecarlo"
	"github.com/newthinker/stonks/internal/scheduler"
	"github.com/newthinker/stonks/internal/simulation"
	"github.com/newthinker/stonks/internal/storage/archive"
	"github.com/newthinker/stonks/internal/strategy"
	"github.com/newthinker/stonks/internal/strategy/bb_squeeze"
	"github.com/newthinker/stonks/internal/strategy/macd"
	"github.com/newthinker/stonks/internal/strategy/rsi"
	"github.com/newthinker/stonks/internal/strategy/sma_crossover"
)

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Registry
	collectors *collector.Registry
	cache      cache.Cache
	pipeline   *pipeline.Pipeline
	engine     *simulation.Engine
	predictors *predictor.Registry
	strategies *strategy.Engine
	backtester *backtest.Backtester
	archive    *archive.SeriesStore
	jobs       *job.Store
	watchlist  []core.Period

	mu        sync.Mutex
	running   bool
	scheduler *scheduler.Scheduler
}

// New builds every component described by cfg.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	storage, err := archive.New(archive.Options{
		Type: cfg.Storage.Archive.Type,
		Path: cfg.Storage.Archive.Path,
		S3: archive.S3Config{
			Bucket:    cfg.Storage.Archive.S3.Bucket,
			Endpoint:  cfg.Storage.Archive.S3.Endpoint,
			Region:    cfg.Storage.Archive.S3.Region,
			AccessKey: cfg.Storage.Archive.S3.AccessKey,
			SecretKey: cfg.Storage.Archive.S3.SecretKey,
			Prefix:    cfg.Storage.Archive.S3.Prefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	store := archive.NewSeriesStore(storage)

	periods := make([]core.Period, 0, len(cfg.Watchlist.Periods))
	for _, raw := range cfg.Watchlist.Periods {
		p, err := core.ParsePeriod(raw)
		if err != nil {
			return nil, fmt.Errorf("watchlist period: %w", err)
		}
		periods = append(periods, p)
	}
	backtestPeriod, err := core.ParsePeriod(cfg.Backtest.Period)
	if err != nil {
		backtestPeriod = core.DefaultPeriod
	}

	collectors := newCollectors(cfg, store)

	var c cache.Cache = cache.Nop{}
	if cfg.Cache.Enabled {
		c = cache.NewTTL(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}

	p := pipeline.New(collectors, pipeline.Options{
		Premium: cfg.Sources.Premium,
		Cache:   c,
		Metrics: reg,
		Logger:  logger.Named("pipeline"),
	})

	engine := simulation.NewEngine(simulation.Options{
		Workers:       cfg.Simulation.Workers,
		MaxIterations: cfg.Simulation.MaxIterations,
		MaxDays:       cfg.Simulation.MaxDays,
		Metrics:       reg,
		Logger:        logger.Named("simulation"),
	})

	predictors := predictor.NewRegistry()
	predictors.Register(montecarlo.New(engine, 0))

	strategies := strategy.NewEngine(logger.Named("strategy"))
	strategies.Register(sma_crossover.New())
	strategies.Register(rsi.New(0, 0))
	strategies.Register(macd.New())
	strategies.Register(bb_squeeze.New(0, 0))

	bt := backtest.New(p, strategies, predictors, backtest.Options{
		Period:  backtestPeriod,
		Metrics: reg,
		Logger:  logger.Named("backtest"),
	})

	return &App{
		cfg:        cfg,
		logger:     logger,
		metrics:    reg,
		collectors: collectors,
		cache:      c,
		pipeline:   p,
		engine:     engine,
		predictors: predictors,
		strategies: strategies,
		backtester: bt,
		archive:    store,
		jobs:       job.NewStore(cfg.Server.MaxJobs, time.Duration(cfg.Server.JobTTLHours)*time.Hour),
		watchlist:  periods,
	}, nil
}

// newCollectors registers every adapter. Keyed adapters are registered even
// without a configured key so a per-request key can still reach them.
func newCollectors(cfg *config.Config, store *archive.SeriesStore) *collector.Registry {
	src := cfg.Sources
	registry := collector.NewRegistry()
	registry.Register(yahoo.New(src.Timeout))
	registry.Register(yahoochart.New(src.YahooChart.BaseURL, src.Timeout))
	registry.Register(alphavantage.New(src.AlphaVantage.BaseURL, src.AlphaVantage.APIKey, src.Timeout))
	registry.Register(finnhub.New(src.Finnhub.BaseURL, src.Finnhub.APIKey, src.Timeout))
	registry.Register(polygon.New(src.Polygon.BaseURL, src.Polygon.APIKey, src.Timeout))
	registry.Register(snapshot.New(store))
	registry.Register(mock.New(src.Mock.Seed))
	return registry
}

// Start runs the cache purge and watchlist warm-up jobs until ctx is done
// or Stop is called.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("app already running")
	}

	s := scheduler.New(ctx, a.pipeline, scheduler.Options{
		Symbols: a.cfg.Watchlist.Symbols,
		Periods: a.watchlist,
		Metrics: a.metrics,
		Logger:  a.logger,
	})
	purgeSpec := ""
	if a.cfg.Cache.Enabled {
		purgeSpec = a.cfg.Cache.PurgeSchedule
	}
	if err := s.Register(purgeSpec, a.cfg.Watchlist.Schedule); err != nil {
		return err
	}
	s.Start()

	a.scheduler = s
	a.running = true
	a.logger.Info("stonks started",
		zap.Int("watchlist_count", len(a.cfg.Watchlist.Symbols)),
		zap.Int("scheduled_jobs", s.Jobs()),
		zap.Strings("sources", a.collectors.Names()),
	)
	return nil
}

// Stop halts the scheduled jobs.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.scheduler = nil
	}
	a.running = false
}

// Server builds the HTTP API over the app's components.
func (a *App) Server() (*api.Server, error) {
	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	sim := a.cfg.Simulation
	return api.NewServer(api.Config{
		Host:         a.cfg.Server.Host,
		Port:         a.cfg.Server.Port,
		APIKey:       a.cfg.Server.APIKey,
		AllowOrigins: a.cfg.Server.AllowOrigins,
		MetricsPath:  metricsPath,
	}, api.Dependencies{
		Market:     a.pipeline,
		Predictors: a.predictors,
		Backtester: a.backtester,
		Jobs:       a.jobs,
		Metrics:    a.metrics,
		Simulation: apihandler.SimulationOptions{
			Iterations:  sim.Iterations,
			VisualPaths: sim.VisualPaths,
			Bins:        sim.Bins,
			HistoryRows: sim.HistoryRows,
			Logger:      a.logger.Named("api"),
		},
		BacktestDefaults: a.BacktestConfig(),
	}, a.logger.Named("http"))
}

// BacktestConfig returns the configured trading parameters.
func (a *App) BacktestConfig() backtest.Config {
	return backtest.Config{
		InitialCapital: a.cfg.Backtest.InitialCapital,
		Commission:     a.cfg.Backtest.Commission,
		Threshold:      a.cfg.Backtest.Threshold,
	}
}

// Stats returns application statistics.
func (a *App) Stats() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	return map[string]any{
		"running":    a.running,
		"watchlist":  len(a.cfg.Watchlist.Symbols),
		"collectors": a.collectors.Len(),
		"strategies": len(a.strategies.GetAll()),
		"predictors": len(a.predictors.Names()),
		"cached":     a.cache.Len(),
	}
}

func (a *App) Config() *config.Config           { return a.cfg }
func (a *App) Logger() *zap.Logger              { return a.logger }
func (a *App) Metrics() *metrics.Registry       { return a.metrics }
func (a *App) Pipeline() *pipeline.Pipeline     { return a.pipeline }
func (a *App) Predictors() *predictor.Registry  { return a.predictors }
func (a *App) Strategies() *strategy.Engine     { return a.strategies }
func (a *App) Backtester() *backtest.Backtester { return a.backtester }
func (a *App) Archive() *archive.SeriesStore    { return a.archive }
func (a *App) Simulation() *simulation.Engine   { return a.engine }
func (a *App) Collectors() *collector.Registry  { return a.collectors }
