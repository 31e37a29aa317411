package montecarlo

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/predictor"
	"github.com/newthinker/stonks/internal/simulation"
)

func geometric(n int, growth float64) *core.Series {
	bars := make([]core.Bar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := range bars {
		bars[i] = core.Bar{Date: start.AddDate(0, 0, i), Close: price}
		price *= growth
	}
	return &core.Series{Symbol: "TEST", Bars: bars}
}

func newPredictor() *MonteCarlo {
	return New(simulation.NewEngine(simulation.Options{}), 7)
}

func TestMonteCarlo_ImplementsPredictor(t *testing.T) {
	var _ predictor.Predictor = (*MonteCarlo)(nil)
	assert.Equal(t, predictor.MonteCarlo, newPredictor().Name())
}

func TestMonteCarlo_Train(t *testing.T) {
	tr, err := newPredictor().Train(context.Background(), geometric(30, 1.01), 20)
	require.NoError(t, err)

	assert.InDelta(t, math.Log(1.01), tr.Params["drift"], 1e-12)
	assert.InDelta(t, 0, tr.Params["volatility"], 1e-12)
	assert.Equal(t, 0.0, tr.FinalLoss())
}

func TestMonteCarlo_PredictFuture(t *testing.T) {
	series := geometric(30, 1.01)
	f, err := newPredictor().PredictFuture(context.Background(), series, 5)
	require.NoError(t, err)

	require.Len(t, f.Prices, 5)
	require.Len(t, f.Dates, 5)
	last, _ := series.Last()
	// zero volatility: the mean path is the drift path
	assert.InEpsilon(t, last.Close*math.Pow(1.01, 5), f.Prices[4], 1e-9)
}

func TestMonteCarlo_PredictPaths(t *testing.T) {
	res, err := newPredictor().PredictPaths(context.Background(), geometric(30, 1.01), simulation.Params{
		Days: 3, Iterations: 50, VolatilityAdj: 1, Seed: 3,
	})
	require.NoError(t, err)
	assert.Len(t, res.Paths, 50)

	_, err = newPredictor().PredictPaths(context.Background(), geometric(30, 1.01), simulation.Params{
		Days: 3, Iterations: 50, Method: "arima",
	})
	assert.True(t, errors.Is(err, core.ErrUnsupportedMethod))
}

func TestMonteCarlo_Backtest(t *testing.T) {
	series := geometric(100, 1.002)
	eval, err := newPredictor().Backtest(context.Background(), series)
	require.NoError(t, err)

	n := 100 - Warmup
	require.Len(t, eval.Dates, n)
	require.Len(t, eval.Actual, n)
	require.Len(t, eval.Predicted, n)
	assert.Equal(t, series.Bars[Warmup].Date, eval.Dates[0])

	// a constant-growth series is forecast exactly
	for i := range eval.Actual {
		assert.InEpsilon(t, eval.Actual[i], eval.Predicted[i], 1e-9)
	}
	assert.InDelta(t, 0, eval.Metrics["rmse"], 1e-9)
	assert.InDelta(t, 100, eval.Metrics["direction_accuracy"], 1e-9)
}

func TestMonteCarlo_BacktestTooShort(t *testing.T) {
	_, err := newPredictor().Backtest(context.Background(), geometric(Warmup+1, 1.01))
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestScore(t *testing.T) {
	previous := []float64{100, 100}
	actual := []float64{101, 99}
	predicted := []float64{102, 101}

	m := Score(previous, actual, predicted)
	assert.InDelta(t, math.Sqrt((1+4)/2.0), m["rmse"], 1e-12)
	assert.InDelta(t, 1.5, m["mae"], 1e-12)
	assert.InDelta(t, 50, m["direction_accuracy"], 1e-12)
}
