package simulation

import (
	"math"
	"sort"

	"github.com/newthinker/stonks/internal/core"
)

const (
	DefaultVisualPaths = 100
	DefaultBins        = 20
)

// SummaryOptions bounds the display output. Statistics always use every path.
type SummaryOptions struct {
	VisualPaths int
	Bins        int
}

// Histogram of terminal prices. Bins holds the lower edge of each bin.
type Histogram struct {
	Bins   []float64 `json:"bins"`
	Counts []int     `json:"counts"`
	Edges  []float64 `json:"-"`
}

// Summary is the caller-facing analytics of a Result.
type Summary struct {
	VaR95          float64
	ExpectedReturn float64
	MeanTerminal   float64
	Distribution   Histogram
	Paths          [][]float64
}

// Summarize computes risk figures over all terminal prices and keeps the
// first VisualPaths paths for display.
func Summarize(res *Result, currentPrice float64, opts SummaryOptions) (*Summary, error) {
	if res == nil || len(res.Paths) == 0 {
		return nil, core.Errorf(core.ErrInvalidInput, "no paths to summarize")
	}
	if !(currentPrice > 0) || !finite(currentPrice) {
		return nil, core.Errorf(core.ErrInvalidInput, "current price must be positive, got %v", currentPrice)
	}
	if opts.VisualPaths <= 0 {
		opts.VisualPaths = DefaultVisualPaths
	}
	if opts.Bins <= 0 {
		opts.Bins = DefaultBins
	}

	terminal := TerminalPrices(res.Paths)
	var sum float64
	for _, v := range terminal {
		sum += v
	}
	mean := sum / float64(len(terminal))

	return &Summary{
		VaR95:          Percentile(terminal, 5) - currentPrice,
		ExpectedReturn: (mean - currentPrice) / currentPrice,
		MeanTerminal:   mean,
		Distribution:   NewHistogram(terminal, opts.Bins),
		Paths:          res.Paths[:min(opts.VisualPaths, len(res.Paths))],
	}, nil
}

// TerminalPrices returns the last price of every path.
func TerminalPrices(paths [][]float64) []float64 {
	out := make([]float64, 0, len(paths))
	for _, p := range paths {
		if len(p) > 0 {
			out = append(out, p[len(p)-1])
		}
	}
	return out
}

// Percentile uses linear interpolation between closest ranks.
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

// NewHistogram counts values into equal-width bins spanning [min, max]. The
// last bin is closed on the right. Equal min and max widen to ±0.5.
func NewHistogram(values []float64, bins int) Histogram {
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	edges := make([]float64, bins+1)
	width := (hi - lo) / float64(bins)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi

	counts := make([]int, bins)
	for _, v := range values {
		idx := int((v - lo) / (hi - lo) * float64(bins))
		idx = max(0, min(idx, bins-1))
		// float rounding can put v one bin off its edges
		if v < edges[idx] && idx > 0 {
			idx--
		} else if idx < bins-1 && v >= edges[idx+1] {
			idx++
		}
		counts[idx]++
	}

	return Histogram{
		Bins:   append([]float64(nil), edges[:bins]...),
		Counts: counts,
		Edges:  edges,
	}
}
