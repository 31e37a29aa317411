// Package indicator derives technical indicator columns from closing prices.
package indicator

import (
	"fmt"
	"math"

	"github.com/newthinker/stonks/internal/core"
)

// Window sizes of the derived columns.
const (
	ShortSMA    = 20
	LongSMA     = 50
	FastEMA     = 12
	SlowEMA     = 26
	SignalSpan  = 9
	RSIPeriod   = 14
	BandPeriod  = 20
	BandStdDevs = 2.0
)

// Enrich returns a copy of series with every indicator column attached.
// Warm-up gaps are filled so no cell is left undefined.
func Enrich(series *core.Series) (*core.Series, error) {
	if series.Len() == 0 {
		return nil, core.WrapError(core.ErrComputation, fmt.Errorf("cannot compute indicators on an empty series"))
	}

	closes := series.Closes()
	ind := &core.Indicators{
		SMA20: SMA(closes, ShortSMA),
		SMA50: SMA(closes, LongSMA),
		EMA12: EMA(closes, FastEMA),
		EMA26: EMA(closes, SlowEMA),
		RSI:   RSI(closes, RSIPeriod),
	}

	ind.MACD = make([]float64, len(closes))
	for i := range closes {
		ind.MACD[i] = ind.EMA12[i] - ind.EMA26[i]
	}
	ind.SignalLine = EMA(ind.MACD, SignalSpan)

	std := RollingStd(closes, BandPeriod)
	ind.UpperBand = make([]float64, len(closes))
	ind.LowerBand = make([]float64, len(closes))
	for i := range closes {
		ind.UpperBand[i] = ind.SMA20[i] + BandStdDevs*std[i]
		ind.LowerBand[i] = ind.SMA20[i] - BandStdDevs*std[i]
	}

	for _, col := range ind.Columns() {
		Fill(col.Values)
		for i, v := range col.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, core.Errorf(core.ErrComputation, "%s undefined at row %d", col.Name, i)
			}
		}
	}

	out := *series
	out.Bars = append([]core.Bar(nil), series.Bars...)
	out.Indicators = ind
	return &out, nil
}
