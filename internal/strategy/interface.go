package strategy

import (
	"github.com/newthinker/stonks/internal/core"
)

// Strategy turns an enriched series into one raw signal per row. Signals are
// decisions made at each row's close; callers shift them before trading.
type Strategy interface {
	Name() string
	Description() string
	Signals(series *core.Series) ([]core.Signal, error)
}

// Indicators returns the indicator columns of an enriched series.
func Indicators(series *core.Series) (*core.Indicators, error) {
	if series.Len() == 0 {
		return nil, core.Errorf(core.ErrInvalidInput, "empty series")
	}
	if series.Indicators == nil {
		return nil, core.Errorf(core.ErrComputation, "series %s has no indicators", series.Symbol)
	}
	return series.Indicators, nil
}

// Fold runs step over rows 0..n-1, threading state from row to row, and
// collects the signal emitted at each row.
func Fold[S any](n int, initial S, step func(state S, i int) (S, core.Signal)) []core.Signal {
	out := make([]core.Signal, n)
	state := initial
	for i := 0; i < n; i++ {
		state, out[i] = step(state, i)
	}
	return out
}

// Map builds row-independent signals.
func Map(n int, rule func(i int) core.Signal) []core.Signal {
	out := make([]core.Signal, n)
	for i := range out {
		out[i] = rule(i)
	}
	return out
}

// Shift delays signals by one row so a decision taken at a close is traded
// on the following bar. The first row is flat.
func Shift(signals []core.Signal) []core.Signal {
	out := make([]core.Signal, len(signals))
	if len(signals) > 1 {
		copy(out[1:], signals[:len(signals)-1])
	}
	if len(out) > 0 {
		out[0] = core.SignalFlat
	}
	return out
}

// LongIf maps a condition onto Long or Flat.
func LongIf(cond bool) core.Signal {
	if cond {
		return core.SignalLong
	}
	return core.SignalFlat
}
