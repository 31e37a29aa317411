// Package montecarlo is the Monte Carlo predictor. Its paths come from the
// GBM simulation engine and its point forecast is the mean path.
package montecarlo

import (
	"context"
	"math"

	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/predictor"
	"github.com/newthinker/stonks/internal/simulation"
)

const (
	// ForecastIterations is the path count behind PredictFuture.
	ForecastIterations = 1000
	// Warmup is the number of leading rows never forecast in Backtest.
	Warmup = 20
	// Window is the trailing number of closes calibrated per step.
	Window = 60
)

// MonteCarlo implements predictor.Predictor.
type MonteCarlo struct {
	engine *simulation.Engine
	seed   uint64
}

// New creates the predictor. A non-zero seed makes PredictFuture
// reproducible.
func New(engine *simulation.Engine, seed uint64) *MonteCarlo {
	return &MonteCarlo{engine: engine, seed: seed}
}

func (m *MonteCarlo) Name() string {
	return predictor.MonteCarlo
}

// Train calibrates on the series. There is nothing to fit, so epochs is
// ignored and no loss is reported.
func (m *MonteCarlo) Train(ctx context.Context, series *core.Series, epochs int) (*predictor.Training, error) {
	cal, err := simulation.Calibrate(series.Closes(), 0, 1)
	if err != nil {
		return nil, err
	}
	return &predictor.Training{
		Params: map[string]float64{
			"drift":      cal.Drift,
			"volatility": cal.Volatility,
		},
	}, nil
}

func (m *MonteCarlo) PredictFuture(ctx context.Context, series *core.Series, days int) (*predictor.Forecast, error) {
	res, err := m.engine.Run(ctx, series, simulation.Params{
		Days:          days,
		Iterations:    ForecastIterations,
		Method:        simulation.MethodGBM,
		VolatilityAdj: 1,
		Seed:          m.seed,
	})
	if err != nil {
		return nil, err
	}
	return &predictor.Forecast{Dates: res.Dates, Prices: res.Mean}, nil
}

func (m *MonteCarlo) PredictPaths(ctx context.Context, series *core.Series, params simulation.Params) (*simulation.Result, error) {
	return m.engine.Run(ctx, series, params)
}

// Backtest walks forward through the series. Each forecast is the GBM
// expectation one day ahead, calibrated on the trailing Window closes.
func (m *MonteCarlo) Backtest(ctx context.Context, series *core.Series) (*predictor.Evaluation, error) {
	n := series.Len()
	if n <= Warmup+1 {
		return nil, core.Errorf(core.ErrInvalidInput, "need more than %d rows, got %d", Warmup+1, n)
	}

	closes := series.Closes()
	dates := series.Dates()
	eval := &predictor.Evaluation{
		Dates:     dates[Warmup:],
		Actual:    closes[Warmup:],
		Predicted: make([]float64, 0, n-Warmup),
	}

	for i := Warmup; i < n; i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cal, err := simulation.Calibrate(closes[max(0, i-Window):i], 0, 1)
		if err != nil {
			return nil, err
		}
		// E[S(t+1)] = S(t)·exp(μ) under GBM with log-return mean μ
		eval.Predicted = append(eval.Predicted, closes[i-1]*math.Exp(cal.Drift))
	}

	eval.Metrics = Score(closes[Warmup-1:n-1], eval.Actual, eval.Predicted)
	return eval, nil
}

// Score compares forecasts with outcomes. previous[i] is the close the
// forecast for actual[i] was made from.
func Score(previous, actual, predicted []float64) map[string]float64 {
	var se, ae float64
	var hits int
	for i := range actual {
		diff := predicted[i] - actual[i]
		se += diff * diff
		ae += math.Abs(diff)
		if sign(predicted[i]-previous[i]) == sign(actual[i]-previous[i]) {
			hits++
		}
	}
	n := float64(len(actual))
	return map[string]float64{
		"rmse":               math.Sqrt(se / n),
		"mae":                ae / n,
		"direction_accuracy": float64(hits) / n * 100,
	}
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
