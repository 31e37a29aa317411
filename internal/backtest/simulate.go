package backtest

import (
	"math"

	"github.com/newthinker/stonks/internal/core"
)

// Simulate replays steps through a single-asset, long-or-cash account. The
// account is either fully in cash or fully invested; entering deducts the
// commission from cash before buying and exiting deducts it from the sale
// proceeds. Row 0 never trades, so the curve opens at the initial capital.
func Simulate(steps []Step, cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, core.Errorf(core.ErrInvalidInput, "no rows to backtest")
	}
	for i, st := range steps {
		if !validPrice(st.ExecPrice) || !validPrice(st.MarkPrice) {
			return nil, core.Errorf(core.ErrInvalidInput, "non-positive price at row %d", i)
		}
	}

	ledger := &Ledger{
		Equity:    make([]float64, len(steps)),
		Cash:      make([]float64, len(steps)),
		Shares:    make([]float64, len(steps)),
		Positions: make([]core.Position, len(steps)),
	}

	cash, shares := cfg.InitialCapital, 0.0
	var open *Trade
	var entryCash float64

	for i, st := range steps {
		if i > 0 {
			switch {
			case st.Desired == core.PositionLong && shares == 0:
				fee := cash * cfg.Commission
				entryCash = cash
				shares = (cash - fee) / st.ExecPrice
				cash = 0
				open = &Trade{EntryDate: st.Date, EntryPrice: st.ExecPrice, Shares: shares}

			case st.Desired == core.PositionFlat && shares > 0:
				proceeds := shares * st.ExecPrice
				cash = proceeds - proceeds*cfg.Commission
				shares = 0
				open.ExitDate = st.Date
				open.ExitPrice = st.ExecPrice
				open.Return = cash/entryCash - 1
				ledger.Trades = append(ledger.Trades, *open)
				open = nil
			}
		}

		ledger.Equity[i] = cash + shares*st.MarkPrice
		ledger.Cash[i] = cash
		ledger.Shares[i] = shares
		if shares > 0 {
			ledger.Positions[i] = core.PositionLong
		}
	}

	if open != nil {
		last := steps[len(steps)-1]
		open.ExitDate = last.Date
		open.ExitPrice = last.MarkPrice
		open.Return = shares*last.MarkPrice*(1-cfg.Commission)/entryCash - 1
		open.Open = true
		ledger.Trades = append(ledger.Trades, *open)
	}

	return ledger, nil
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
