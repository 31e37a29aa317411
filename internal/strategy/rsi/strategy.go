package rsi

import (
	"fmt"

	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/strategy"
)

const (
	Name = "RSI_Strategy"

	DefaultOversold   = 30.0
	DefaultOverbought = 70.0
)

// RSI enters when RSI drops below the oversold level and exits when it rises
// above the overbought level. Between the two it keeps its previous state.
type RSI struct {
	oversold   float64
	overbought float64
}

// New creates an RSI strategy. Zero levels take the defaults.
func New(oversold, overbought float64) *RSI {
	if oversold == 0 {
		oversold = DefaultOversold
	}
	if overbought == 0 {
		overbought = DefaultOverbought
	}
	return &RSI{oversold: oversold, overbought: overbought}
}

func (r *RSI) Name() string {
	return Name
}

func (r *RSI) Description() string {
	return fmt.Sprintf("Long below RSI %.0f, flat above RSI %.0f", r.oversold, r.overbought)
}

func (r *RSI) Signals(series *core.Series) ([]core.Signal, error) {
	ind, err := strategy.Indicators(series)
	if err != nil {
		return nil, err
	}
	return strategy.Fold(series.Len(), core.SignalFlat, func(current core.Signal, i int) (core.Signal, core.Signal) {
		switch {
		case ind.RSI[i] < r.oversold:
			current = core.SignalLong
		case ind.RSI[i] > r.overbought:
			current = core.SignalFlat
		}
		return current, current
	}), nil
}
