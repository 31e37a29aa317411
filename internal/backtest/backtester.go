package backtest

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/indicator"
	"github.com/newthinker/stonks/internal/metrics"
	"github.com/newthinker/stonks/internal/pipeline"
	"github.com/newthinker/stonks/internal/predictor"
	"github.com/newthinker/stonks/internal/strategy"
)

// HistoryProvider supplies history for a symbol. The pipeline satisfies it.
type HistoryProvider interface {
	GetHistory(ctx context.Context, q pipeline.Query) *core.Series
}

// ModelInput is a predictor's walk-forward output. Predicted[i] forecasts
// Actual[i] from information available at i-1.
type ModelInput struct {
	Dates     []time.Time
	Actual    []float64
	Predicted []float64
}

// RunStrategy backtests a rule strategy over an enriched series. Signals are
// delayed one row and trades execute at that row's close.
func RunStrategy(series *core.Series, strat strategy.Strategy, cfg Config) (*Result, error) {
	if series.Len() == 0 {
		return nil, core.Errorf(core.ErrInvalidInput, "empty series")
	}
	if series.Indicators == nil {
		enriched, err := indicator.Enrich(series)
		if err != nil {
			return nil, err
		}
		series = enriched
	}

	raw, err := strat.Signals(series)
	if err != nil {
		return nil, err
	}
	if len(raw) != series.Len() {
		return nil, core.Errorf(core.ErrComputation, "strategy %s produced %d signals for %d rows", strat.Name(), len(raw), series.Len())
	}
	signals := strategy.Shift(raw)

	steps := make([]Step, series.Len())
	for i, bar := range series.Bars {
		steps[i] = Step{
			Date:      bar.Date,
			Desired:   signals[i].Desired(),
			ExecPrice: bar.Close,
			MarkPrice: bar.Close,
		}
	}

	ledger, err := Simulate(steps, cfg)
	if err != nil {
		return nil, err
	}

	return &Result{
		Mode:      ModeStrategy,
		Name:      strat.Name(),
		Symbol:    series.Symbol,
		Dates:     series.Dates(),
		Prices:    series.Closes(),
		Signals:   signals,
		Equity:    ledger.Equity,
		Positions: ledger.Positions,
		Trades:    ledger.Trades,
		Stats:     CalculateStats(ledger.Equity, ledger.Trades, cfg.Commission),
	}, nil
}

// ModelSignals derives the position to hold entering each row: Long when the
// forecast beats the previous close by more than threshold, Sell when it
// trails by more than threshold, else Flat. Row 0 is Flat.
func ModelSignals(actual, predicted []float64, threshold float64) []core.Signal {
	out := make([]core.Signal, len(actual))
	for i := 1; i < len(actual); i++ {
		prev := actual[i-1]
		switch {
		case predicted[i] > prev*(1+threshold):
			out[i] = core.SignalLong
		case predicted[i] < prev*(1-threshold):
			out[i] = core.SignalSell
		}
	}
	return out
}

// RunModel backtests predictor output. A transition into row i executes at
// Actual[i-1] and equity is marked at Actual[i]. Sell signals hold cash.
func RunModel(in ModelInput, cfg Config) (*Result, error) {
	n := len(in.Actual)
	if n == 0 {
		return nil, core.Errorf(core.ErrInvalidInput, "no rows to backtest")
	}
	if len(in.Predicted) != n || (in.Dates != nil && len(in.Dates) != n) {
		return nil, core.Errorf(core.ErrInvalidInput, "misaligned model output: %d actual, %d predicted, %d dates", n, len(in.Predicted), len(in.Dates))
	}
	for i, p := range in.Predicted {
		if !finite(p) {
			return nil, core.Errorf(core.ErrInvalidInput, "non-finite prediction at row %d", i)
		}
	}

	signals := ModelSignals(in.Actual, in.Predicted, cfg.Threshold)
	steps := make([]Step, n)
	for i := range steps {
		exec := in.Actual[i]
		if i > 0 {
			exec = in.Actual[i-1]
		}
		steps[i] = Step{Desired: signals[i].Desired(), ExecPrice: exec, MarkPrice: in.Actual[i]}
		if in.Dates != nil {
			steps[i].Date = in.Dates[i]
		}
	}

	ledger, err := Simulate(steps, cfg)
	if err != nil {
		return nil, err
	}

	return &Result{
		Mode:      ModeModel,
		Dates:     in.Dates,
		Prices:    in.Actual,
		Signals:   signals,
		Equity:    ledger.Equity,
		Positions: ledger.Positions,
		Trades:    ledger.Trades,
		Stats:     CalculateStats(ledger.Equity, ledger.Trades, cfg.Commission),
		Actual:    in.Actual,
		Predicted: in.Predicted,
	}, nil
}

// Request selects what to backtest. Exactly one of Strategy or Model is
// used; Strategy wins when both are set.
type Request struct {
	Symbol   string
	Period   core.Period
	Source   string
	APIKey   string
	Strategy string
	Model    string
	Config   Config
}

// Mode reports which engine the request runs.
func (r Request) Mode() string {
	if r.Strategy != "" {
		return ModeStrategy
	}
	return ModeModel
}

// Backtester runs backtests against pipeline history
type Backtester struct {
	history    HistoryProvider
	strategies *strategy.Engine
	predictors *predictor.Registry
	period     core.Period
	metrics    *metrics.Registry
	logger     *zap.Logger
}

// Options configures a Backtester.
type Options struct {
	// Period is the history window used when a request has none.
	Period  core.Period
	Metrics *metrics.Registry
	Logger  *zap.Logger
}

// New creates a new Backtester
func New(history HistoryProvider, strategies *strategy.Engine, predictors *predictor.Registry, opts Options) *Backtester {
	if !opts.Period.Valid() {
		opts.Period = core.Period2Y
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Backtester{
		history:    history,
		strategies: strategies,
		predictors: predictors,
		period:     opts.Period,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
}

// Run fetches history and executes the request. Strategy mode yields one
// result; model mode yields one per resolved predictor.
func (b *Backtester) Run(ctx context.Context, req Request) ([]*Result, error) {
	start := time.Now()
	mode := req.Mode()

	results, err := b.run(ctx, req)

	status := metrics.OutcomeSuccess
	if err != nil {
		status = metrics.OutcomeFailure
		b.logger.Warn("backtest failed",
			zap.String("symbol", req.Symbol),
			zap.String("mode", mode),
			zap.Error(err),
		)
	}
	b.metrics.RecordBacktest(mode, status, time.Since(start).Seconds())
	return results, err
}

func (b *Backtester) run(ctx context.Context, req Request) ([]*Result, error) {
	if err := core.ValidateSymbol(req.Symbol); err != nil {
		return nil, err
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}

	// resolve names before fetching so bad requests fail fast
	var strat strategy.Strategy
	var models []string
	var err error
	if req.Mode() == ModeStrategy {
		if strat, err = b.strategies.Lookup(req.Strategy); err != nil {
			return nil, err
		}
	} else if models, err = b.predictors.Resolve(req.Model); err != nil {
		return nil, err
	}

	period := req.Period
	if !period.Valid() {
		period = b.period
	}
	raw := b.history.GetHistory(ctx, pipeline.Query{
		Symbol: strings.ToUpper(req.Symbol),
		Period: period,
		Source: req.Source,
		APIKey: req.APIKey,
	})
	series, err := indicator.Enrich(raw)
	if err != nil {
		return nil, err
	}

	if strat != nil {
		res, err := RunStrategy(series, strat, req.Config)
		if err != nil {
			return nil, err
		}
		return []*Result{res}, nil
	}

	results := make([]*Result, 0, len(models))
	for _, name := range models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := b.runModel(ctx, name, series, req.Config)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (b *Backtester) runModel(ctx context.Context, name string, series *core.Series, cfg Config) (*Result, error) {
	p, err := b.predictors.Get(name)
	if err != nil {
		return nil, err
	}
	eval, err := p.Backtest(ctx, series)
	if err != nil {
		return nil, err
	}

	res, err := RunModel(ModelInput{Dates: eval.Dates, Actual: eval.Actual, Predicted: eval.Predicted}, cfg)
	if err != nil {
		return nil, err
	}
	res.Name = name
	res.Symbol = series.Symbol
	res.ModelMetrics = eval.Metrics
	return res, nil
}
