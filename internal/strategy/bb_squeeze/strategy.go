package bb_squeeze

import (
	"fmt"

	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/strategy"
)

const (
	Name = "BB_Squeeze"

	// DefaultWidth is the band width, relative to SMA 20, below which the
	// bands count as squeezed.
	DefaultWidth = 0.10
	// DefaultLookback is how many trailing rows, current included, are
	// searched for a squeeze.
	DefaultLookback = 5
)

// BBSqueeze buys a breakout above the upper band that follows a recent
// squeeze and exits when the close falls back below SMA 20.
type BBSqueeze struct {
	width    float64
	lookback int
}

type state struct {
	signal core.Signal
}

func New(width float64, lookback int) *BBSqueeze {
	if width <= 0 {
		width = DefaultWidth
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &BBSqueeze{width: width, lookback: lookback}
}

func (b *BBSqueeze) Name() string {
	return Name
}

func (b *BBSqueeze) Description() string {
	return fmt.Sprintf("Breakout above the upper band within %d rows of a squeeze (width < %.2f)", b.lookback, b.width)
}

func (b *BBSqueeze) Signals(series *core.Series) ([]core.Signal, error) {
	ind, err := strategy.Indicators(series)
	if err != nil {
		return nil, err
	}

	recent := b.recentSqueeze(ind)
	bars := series.Bars

	return strategy.Fold(series.Len(), state{signal: core.SignalFlat}, func(s state, i int) (state, core.Signal) {
		price := bars[i].Close
		switch {
		case recent[i] && price > ind.UpperBand[i]:
			s.signal = core.SignalLong
		case s.signal == core.SignalLong && price < ind.SMA20[i]:
			s.signal = core.SignalFlat
		}
		return s, s.signal
	}), nil
}

// recentSqueeze flags rows whose full trailing window contains a squeeze.
// Rows before the first full window are never flagged.
func (b *BBSqueeze) recentSqueeze(ind *core.Indicators) []bool {
	n := len(ind.SMA20)
	squeezed := make([]bool, n)
	for i := range squeezed {
		squeezed[i] = b.squeezed(ind.UpperBand[i], ind.LowerBand[i], ind.SMA20[i])
	}

	recent := make([]bool, n)
	last := -1
	for i := 0; i < n; i++ {
		if squeezed[i] {
			last = i
		}
		recent[i] = i >= b.lookback-1 && last >= 0 && i-last < b.lookback
	}
	return recent
}

// squeezed reports whether the band width is under the threshold. A zero
// middle band never counts as a squeeze.
func (b *BBSqueeze) squeezed(upper, lower, middle float64) bool {
	if middle == 0 {
		return false
	}
	return (upper-lower)/middle < b.width
}
