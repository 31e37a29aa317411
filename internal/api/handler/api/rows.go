package api

import (
	"github.com/newthinker/stonks/internal/core"
)

// PriceRow is one OHLCV row on the wire.
type PriceRow struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// IndicatorRow is a PriceRow with its indicator columns.
type IndicatorRow struct {
	PriceRow
	SMA20      float64 `json:"sma_20"`
	SMA50      float64 `json:"sma_50"`
	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	SignalLine float64 `json:"signal_line"`
	UpperBand  float64 `json:"upper_band"`
	LowerBand  float64 `json:"lower_band"`
}

func priceRow(b core.Bar) PriceRow {
	return PriceRow{
		Date:   b.Date.Format(core.DateLayout),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}

func priceRows(series *core.Series) []PriceRow {
	rows := make([]PriceRow, series.Len())
	for i, b := range series.Bars {
		rows[i] = priceRow(b)
	}
	return rows
}

// indicatorRows converts the last n rows of an enriched series.
func indicatorRows(series *core.Series, n int) []IndicatorRow {
	tail := series.Tail(n)
	ind := tail.Indicators
	rows := make([]IndicatorRow, tail.Len())
	for i, b := range tail.Bars {
		rows[i] = IndicatorRow{PriceRow: priceRow(b)}
		if ind == nil {
			continue
		}
		rows[i].SMA20 = ind.SMA20[i]
		rows[i].SMA50 = ind.SMA50[i]
		rows[i].RSI = ind.RSI[i]
		rows[i].MACD = ind.MACD[i]
		rows[i].SignalLine = ind.SignalLine[i]
		rows[i].UpperBand = ind.UpperBand[i]
		rows[i].LowerBand = ind.LowerBand[i]
	}
	return rows
}
