package sma_crossover

import (
	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/strategy"
)

// Name is the registered strategy name.
const Name = "SMA_Crossover"

// SMACrossover holds long while the 20-row SMA is above the 50-row SMA.
type SMACrossover struct{}

// New creates a new SMA crossover strategy
func New() *SMACrossover {
	return &SMACrossover{}
}

func (s *SMACrossover) Name() string {
	return Name
}

func (s *SMACrossover) Description() string {
	return "Long while SMA 20 is above SMA 50"
}

func (s *SMACrossover) Signals(series *core.Series) ([]core.Signal, error) {
	ind, err := strategy.Indicators(series)
	if err != nil {
		return nil, err
	}
	return strategy.Map(series.Len(), func(i int) core.Signal {
		return strategy.LongIf(ind.SMA20[i] > ind.SMA50[i])
	}), nil
}
