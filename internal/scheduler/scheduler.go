// Package scheduler runs the background maintenance jobs: cache purging and
// watchlist pre-warming.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/metrics"
	"github.com/newthinker/stonks/internal/pipeline"
)

// warmConcurrency bounds parallel watchlist fetches.
const warmConcurrency = 4

// Pipeline is the part of the acquisition pipeline the jobs drive.
type Pipeline interface {
	GetHistory(ctx context.Context, q pipeline.Query) *core.Series
	Purge() int
}

// Options configures a Scheduler.
type Options struct {
	Symbols []string
	Periods []core.Period
	Source  string
	Metrics *metrics.Registry
	Logger  *zap.Logger
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	cron     *cron.Cron
	pipeline Pipeline
	symbols  []string
	periods  []core.Period
	source   string
	metrics  *metrics.Registry
	logger   *zap.Logger
	ctx      context.Context
}

// New creates a Scheduler. Specs accept five or six fields and descriptors
// such as "@every 5m".
func New(ctx context.Context, p Pipeline, opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.Periods) == 0 {
		opts.Periods = []core.Period{core.DefaultPeriod}
	}
	logger := opts.Logger.Named("scheduler")

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{logger}

	symbols := make([]string, 0, len(opts.Symbols))
	for _, s := range opts.Symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		pipeline: p,
		symbols:  symbols,
		periods:  opts.Periods,
		source:   opts.Source,
		metrics:  opts.Metrics,
		logger:   logger,
		ctx:      ctx,
	}
}

// Register schedules the purge and warm jobs. An empty spec disables a job.
func (s *Scheduler) Register(purgeSpec, warmSpec string) error {
	if purgeSpec != "" {
		if _, err := s.cron.AddFunc(purgeSpec, func() { s.PurgeNow() }); err != nil {
			return fmt.Errorf("register purge task: %w", err)
		}
	}
	if warmSpec != "" && len(s.symbols) > 0 {
		if _, err := s.cron.AddFunc(warmSpec, s.WarmNow); err != nil {
			return fmt.Errorf("register warm task: %w", err)
		}
	}
	s.metrics.SetWatchlistSize(len(s.symbols))
	return nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", s.Jobs()))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// PurgeNow drops expired cache entries.
func (s *Scheduler) PurgeNow() int {
	n := s.pipeline.Purge()
	if n > 0 {
		s.logger.Debug("cache purged", zap.Int("entries", n))
	}
	return n
}

// WarmNow fetches every watchlist symbol and period so requests hit the cache.
func (s *Scheduler) WarmNow() {
	start := time.Now()
	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(warmConcurrency)

	for _, symbol := range s.symbols {
		for _, period := range s.periods {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				series := s.pipeline.GetHistory(ctx, pipeline.Query{Symbol: symbol, Period: period, Source: s.source})
				s.logger.Debug("warmed",
					zap.String("symbol", symbol),
					zap.String("period", string(period)),
					zap.String("source", series.Source),
					zap.Int("rows", series.Len()),
				)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("watchlist warm interrupted", zap.Error(err))
		return
	}
	s.logger.Info("watchlist warmed",
		zap.Int("symbols", len(s.symbols)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
