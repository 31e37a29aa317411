package backtest

import (
	"math"
)

// TradingDays annualizes daily figures.
const TradingDays = 252

// CalculateStats computes performance statistics from an equity curve and
// its trades. commission prices the exit of a position still open.
func CalculateStats(equity []float64, trades []Trade, commission float64) Stats {
	if len(equity) == 0 {
		return Stats{}
	}

	initial := equity[0]
	final := equity[len(equity)-1]

	stats := Stats{
		TotalReturn:      (final/initial - 1) * 100,
		MaxDrawdown:      calculateMaxDrawdown(equity) * 100,
		SharpeRatio:      calculateSharpeRatio(pctReturns(equity)),
		FinalValue:       final,
		LiquidationValue: final,
		TotalTrades:      len(trades),
	}

	for _, t := range trades {
		if !t.IsClosed() {
			stats.LiquidationValue = final - t.Shares*t.ExitPrice*commission
			continue
		}
		if t.IsWin() {
			stats.WinningTrades++
		} else {
			stats.LosingTrades++
		}
	}

	if closed := stats.WinningTrades + stats.LosingTrades; closed > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(closed) * 100
	}
	return stats
}

// calculateMaxDrawdown returns the most negative (equity-peak)/peak.
func calculateMaxDrawdown(equity []float64) float64 {
	var maxDD float64
	peak := equity[0]

	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (v - peak) / peak; dd < maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

func pctReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

// calculateSharpeRatio computes risk-adjusted return
// Assumes risk-free rate of 0 for simplicity
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	// Calculate mean return
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	// Calculate standard deviation
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return 0
	}

	return mean / stdDev * math.Sqrt(TradingDays)
}
