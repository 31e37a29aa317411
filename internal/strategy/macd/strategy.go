package macd

import (
	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/strategy"
)

const Name = "Macd_Strategy"

// MACD holds long while the MACD line is above its signal line.
type MACD struct{}

func New() *MACD {
	return &MACD{}
}

func (m *MACD) Name() string {
	return Name
}

func (m *MACD) Description() string {
	return "Long while MACD is above the signal line"
}

func (m *MACD) Signals(series *core.Series) ([]core.Signal, error) {
	ind, err := strategy.Indicators(series)
	if err != nil {
		return nil, err
	}
	return strategy.Map(series.Len(), func(i int) core.Signal {
		return strategy.LongIf(ind.MACD[i] > ind.SignalLine[i])
	}), nil
}
