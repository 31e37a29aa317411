package simulation

import (
	"math"

	"github.com/newthinker/stonks/internal/core"
)

// Calibration holds the per-day GBM parameters.
type Calibration struct {
	Drift      float64 `json:"drift"`
	Volatility float64 `json:"volatility"`
}

// Calibrate estimates drift and volatility from daily log returns. driftAdj is
// added to the mean return and volAdj scales the sample standard deviation.
func Calibrate(closes []float64, driftAdj, volAdj float64) (Calibration, error) {
	if len(closes) < 2 {
		return Calibration{}, core.Errorf(core.ErrInvalidInput, "need at least 2 closes, got %d", len(closes))
	}
	if !finite(driftAdj) || !finite(volAdj) || volAdj < 0 {
		return Calibration{}, core.Errorf(core.ErrInvalidInput, "invalid adjustments drift=%v volatility=%v", driftAdj, volAdj)
	}

	returns := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if !(prev > 0) || !(cur > 0) || !finite(cur) {
			return Calibration{}, core.Errorf(core.ErrInvalidInput, "non-positive close at row %d", i)
		}
		returns[i-1] = math.Log(cur / prev)
	}

	mean, std := meanStd(returns)
	return Calibration{
		Drift:      mean + driftAdj,
		Volatility: std * volAdj,
	}, nil
}

// meanStd returns the mean and sample standard deviation. A single value
// has zero deviation.
func meanStd(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}

	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
