// Package simulation generates Geometric Brownian Motion price paths.
package simulation

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/metrics"
)

// MethodGBM is the only supported method.
const MethodGBM = "gbm"

// chunkSize is the number of paths generated per task. Each chunk draws from
// its own generator so output depends only on the seed.
const chunkSize = 256

// Params configures one run.
type Params struct {
	Days          int
	Iterations    int
	Method        string
	DriftAdj      float64
	VolatilityAdj float64
	// Seed makes a run reproducible. Zero picks a random seed.
	Seed uint64
}

// Result is a full simulation. Paths exclude the starting price.
type Result struct {
	Start       float64
	Dates       []time.Time
	Mean        []float64
	Paths       [][]float64
	Calibration Calibration
	Seed        uint64
}

// Options configures an Engine.
type Options struct {
	Workers       int
	MaxIterations int
	MaxDays       int
	Metrics       *metrics.Registry
	Logger        *zap.Logger
}

// Engine runs simulations. It holds no per-run state.
type Engine struct {
	workers       int
	maxIterations int
	maxDays       int
	metrics       *metrics.Registry
	logger        *zap.Logger
}

// NewEngine creates an engine. Zero limits mean unlimited.
func NewEngine(opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		workers:       opts.Workers,
		maxIterations: opts.MaxIterations,
		maxDays:       opts.MaxDays,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
	}
}

// Run calibrates on the series closes and generates p.Iterations paths of
// p.Days steps starting from the last close.
func (e *Engine) Run(ctx context.Context, series *core.Series, p Params) (*Result, error) {
	start := time.Now()
	res, err := e.run(ctx, series, p)

	status := metrics.OutcomeSuccess
	if err != nil {
		status = metrics.OutcomeFailure
	}
	e.metrics.RecordSimulation(status, time.Since(start).Seconds())
	return res, err
}

func (e *Engine) run(ctx context.Context, series *core.Series, p Params) (*Result, error) {
	if err := e.validate(series, p); err != nil {
		return nil, err
	}

	cal, err := Calibrate(series.Closes(), p.DriftAdj, p.VolatilityAdj)
	if err != nil {
		return nil, err
	}

	last, _ := series.Last()
	seed := p.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	paths, err := e.generate(ctx, last.Close, cal, p.Days, p.Iterations, seed)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("simulation complete",
		zap.String("symbol", series.Symbol),
		zap.Int("days", p.Days),
		zap.Int("iterations", p.Iterations),
		zap.Float64("drift", cal.Drift),
		zap.Float64("volatility", cal.Volatility),
	)

	return &Result{
		Start:       last.Close,
		Dates:       core.BusinessDaysAfter(last.Date, p.Days),
		Mean:        meanPath(paths, p.Days),
		Paths:       paths,
		Calibration: cal,
		Seed:        seed,
	}, nil
}

func (e *Engine) validate(series *core.Series, p Params) error {
	method := strings.ToLower(p.Method)
	if method != "" && method != MethodGBM {
		return core.Errorf(core.ErrUnsupportedMethod, "%q", p.Method)
	}
	if series.Len() < 2 {
		return core.Errorf(core.ErrInvalidInput, "need at least 2 rows, got %d", series.Len())
	}
	if err := checkRange("days", p.Days, e.maxDays); err != nil {
		return err
	}
	if err := checkRange("iterations", p.Iterations, e.maxIterations); err != nil {
		return err
	}
	return nil
}

// checkRange requires 1 <= v, and v <= limit when limit is positive.
func checkRange(name string, v, limit int) error {
	if limit > 0 && (v < 1 || v > limit) {
		return core.Errorf(core.ErrInvalidInput, "%s must be in [1, %d], got %d", name, limit, v)
	}
	if v < 1 {
		return core.Errorf(core.ErrInvalidInput, "%s must be at least 1, got %d", name, v)
	}
	return nil
}

func (e *Engine) generate(ctx context.Context, start float64, cal Calibration, days, iterations int, seed uint64) ([][]float64, error) {
	paths := make([][]float64, iterations)
	step := cal.Drift - cal.Volatility*cal.Volatility/2

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for chunk := 0; chunk*chunkSize < iterations; chunk++ {
		lo := chunk * chunkSize
		hi := min(lo+chunkSize, iterations)
		rng := rand.New(rand.NewPCG(seed, uint64(chunk)))

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for k := lo; k < hi; k++ {
				path := make([]float64, days)
				price := start
				for t := range path {
					price *= math.Exp(step + cal.Volatility*rng.NormFloat64())
					path[t] = price
				}
				paths[k] = path
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func meanPath(paths [][]float64, days int) []float64 {
	mean := make([]float64, days)
	for _, path := range paths {
		for t, v := range path {
			mean[t] += v
		}
	}
	n := float64(len(paths))
	for t := range mean {
		mean[t] /= n
	}
	return mean
}
