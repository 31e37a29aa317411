package backtest

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/indicator"
	"github.com/newthinker/stonks/internal/pipeline"
	"github.com/newthinker/stonks/internal/predictor"
	"github.com/newthinker/stonks/internal/predictor/montecarlo"
	"github.com/newthinker/stonks/internal/simulation"
	"github.com/newthinker/stonks/internal/strategy"
	"github.com/newthinker/stonks/internal/strategy/sma_crossover"
)

// staticHistory implements HistoryProvider for testing
type staticHistory struct {
	series *core.Series
	calls  atomic.Int32
}

func (s *staticHistory) GetHistory(ctx context.Context, q pipeline.Query) *core.Series {
	s.calls.Add(1)
	return s.series
}

// alwaysLong wants to hold from the first row
type alwaysLong struct{}

func (alwaysLong) Name() string        { return "always_long" }
func (alwaysLong) Description() string { return "always long" }
func (alwaysLong) Signals(series *core.Series) ([]core.Signal, error) {
	return strategy.Map(series.Len(), func(int) core.Signal { return core.SignalLong }), nil
}

func rising(n int) *core.Series {
	bars := make([]core.Bar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = core.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return &core.Series{Symbol: "UP", Period: core.Period3Mo, Bars: bars}
}

func TestRunStrategy_RisingSeriesChargesCommissionOnce(t *testing.T) {
	series := rising(60)
	cfg := DefaultConfig()

	res, err := RunStrategy(series, alwaysLong{}, cfg)
	require.NoError(t, err)

	// entry happens on row 1 after the one-row shift
	entry := series.Bars[1].Close
	final := series.Bars[59].Close
	want := cfg.InitialCapital * (1 - cfg.Commission) * (final / entry)

	assert.Equal(t, cfg.InitialCapital, res.Equity[0])
	assert.InEpsilon(t, want, res.Stats.FinalValue, 1e-12)
	assert.InEpsilon(t, want*(1-cfg.Commission), res.Stats.LiquidationValue, 1e-12)
	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].Open)
	assert.Len(t, res.Equity, 60)
}

func TestRunStrategy_SMACrossoverOnRisingSeries(t *testing.T) {
	series, err := indicator.Enrich(rising(60))
	require.NoError(t, err)

	res, err := RunStrategy(series, sma_crossover.New(), Config{InitialCapital: 10000})
	require.NoError(t, err)

	assert.Greater(t, res.Stats.TotalReturn, 0.0)
	assert.Equal(t, 0.0, res.Stats.MaxDrawdown)
	assert.Equal(t, core.SignalFlat, res.Signals[0])

	// with commission the only dip is the entry fee
	res, err = RunStrategy(series, sma_crossover.New(), DefaultConfig())
	require.NoError(t, err)
	assert.InDelta(t, -DefaultCommission*100, res.Stats.MaxDrawdown, 1e-9)
}

func TestRunStrategy_EnrichesRawSeries(t *testing.T) {
	res, err := RunStrategy(rising(30), sma_crossover.New(), DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, res.Signals, 30)
	assert.Equal(t, sma_crossover.Name, res.Name)
	assert.Equal(t, ModeStrategy, res.Mode)
}

func TestRunStrategy_EmptySeries(t *testing.T) {
	_, err := RunStrategy(&core.Series{}, alwaysLong{}, DefaultConfig())
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestModelSignals(t *testing.T) {
	actual := []float64{100, 100, 100, 100}
	predicted := []float64{999, 100.3, 99.7, 100.1}

	got := ModelSignals(actual, predicted, 0.002)
	want := []core.Signal{core.SignalFlat, core.SignalLong, core.SignalSell, core.SignalFlat}
	assert.Equal(t, want, got)
}

func TestRunModel_ExecutesAtPriorClose(t *testing.T) {
	in := ModelInput{
		Actual:    []float64{100, 101, 103, 102},
		Predicted: []float64{0, 102, 101, 104},
	}

	res, err := RunModel(in, Config{InitialCapital: 10000, Threshold: DefaultThreshold})
	require.NoError(t, err)

	afterSale := 10000.0 / 100 * 101
	want := []float64{10000, 10000.0 / 100 * 101, afterSale, afterSale / 103 * 102}
	for i := range want {
		assert.InDelta(t, want[i], res.Equity[i], 1e-9, "equity[%d]", i)
	}
	assert.Equal(t, ModeModel, res.Mode)
	assert.Equal(t, in.Predicted, res.Predicted)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, 100.0, res.Trades[0].EntryPrice)
	assert.Equal(t, 101.0, res.Trades[0].ExitPrice)
}

func TestRunModel_SellSignalHoldsCash(t *testing.T) {
	in := ModelInput{
		Actual:    []float64{100, 90, 80, 70},
		Predicted: []float64{100, 50, 50, 50},
	}

	res, err := RunModel(in, DefaultConfig())
	require.NoError(t, err)

	for i, v := range res.Equity {
		assert.Equal(t, DefaultInitialCapital, v, "equity[%d]", i)
	}
	assert.Empty(t, res.Trades)
	assert.Equal(t, core.SignalSell, res.Signals[1])
}

func TestRunModel_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   ModelInput
	}{
		{"empty", ModelInput{}},
		{"misaligned", ModelInput{Actual: []float64{1, 2}, Predicted: []float64{1}}},
		{"misaligned dates", ModelInput{Actual: []float64{1}, Predicted: []float64{1}, Dates: make([]time.Time, 2)}},
		{"nan prediction", ModelInput{Actual: []float64{1, 2}, Predicted: []float64{1, math.NaN()}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunModel(tt.in, DefaultConfig())
			assert.True(t, errors.Is(err, core.ErrInvalidInput), "got %v", err)
		})
	}
}

func newBacktester(history HistoryProvider) *Backtester {
	strategies := strategy.NewEngine()
	strategies.Register(sma_crossover.New())

	predictors := predictor.NewRegistry()
	predictors.Register(montecarlo.New(simulation.NewEngine(simulation.Options{}), 1))

	return New(history, strategies, predictors, Options{})
}

func TestBacktester_StrategyMode(t *testing.T) {
	history := &staticHistory{series: rising(120)}
	b := newBacktester(history)

	results, err := b.Run(context.Background(), Request{Symbol: "up", Strategy: sma_crossover.Name, Config: DefaultConfig()})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, sma_crossover.Name, results[0].Name)
	assert.Greater(t, results[0].Stats.TotalReturn, 0.0)
	assert.EqualValues(t, 1, history.calls.Load())
}

func TestBacktester_ModelMode(t *testing.T) {
	history := &staticHistory{series: rising(120)}
	b := newBacktester(history)

	results, err := b.Run(context.Background(), Request{Symbol: "UP", Model: predictor.All, Config: DefaultConfig()})
	require.NoError(t, err)

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, predictor.MonteCarlo, res.Name)
	assert.Len(t, res.Actual, 120-montecarlo.Warmup)
	assert.Contains(t, res.ModelMetrics, "rmse")
}

func TestBacktester_FailsBeforeFetching(t *testing.T) {
	history := &staticHistory{series: rising(120)}
	b := newBacktester(history)

	tests := []struct {
		name string
		req  Request
		want *core.Error
	}{
		{"unknown strategy", Request{Symbol: "UP", Strategy: "Turtle", Config: DefaultConfig()}, core.ErrUnknownStrategy},
		{"external predictor", Request{Symbol: "UP", Model: predictor.SVR, Config: DefaultConfig()}, core.ErrUnknownPredictor},
		{"bad symbol", Request{Symbol: "", Strategy: sma_crossover.Name, Config: DefaultConfig()}, core.ErrInvalidInput},
		{"bad config", Request{Symbol: "UP", Strategy: sma_crossover.Name}, core.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Run(context.Background(), tt.req)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %s", err, tt.want.Code)
		})
	}
	assert.EqualValues(t, 0, history.calls.Load())
}
