package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// SMA calculates the trailing Simple Moving Average.
// The result has the same length as prices; rows before the window is full
// are NaN. A window longer than the input shrinks to the input length.
func SMA(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	period = effectiveWindow(period, len(prices))
	if period == 0 {
		return out
	}

	sma := talib.Sma(prices, period)
	copy(out[period-1:], sma[period-1:])
	return out
}

// EMA calculates the Exponential Moving Average with smoothing factor
// 2/(span+1), seeded by the first value and without bias adjustment:
// EMA[0] = x[0], EMA[t] = a*x[t] + (1-a)*EMA[t-1].
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RollingStd calculates the trailing sample standard deviation (n-1
// denominator). Leading rows are NaN; a one-row window has zero deviation.
// Each window is summed as offsets from its first value, so a flat window
// yields exactly zero.
func RollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	period = effectiveWindow(period, len(values))
	if period == 0 {
		return out
	}
	if period == 1 {
		for i := range out {
			out[i] = 0
		}
		return out
	}

	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		shift := window[0]

		var sum float64
		for _, v := range window {
			sum += v - shift
		}
		mean := sum / float64(period)

		var ss float64
		for _, v := range window {
			d := v - shift - mean
			ss += d * d
		}
		out[i] = math.Sqrt(math.Max(ss/float64(period-1), 0))
	}
	return out
}

func effectiveWindow(period, n int) int {
	if period > n {
		return n
	}
	if period < 1 {
		return 1
	}
	return period
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
