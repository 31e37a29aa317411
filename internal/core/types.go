package core

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"
)

// DateLayout is the ISO-8601 date format used at every boundary.
const DateLayout = "2006-01-02"

// Bar is one day's OHLCV summary. Date is a civil date stored as UTC midnight.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// DateOf strips the clock and zone from t, keeping the calendar date as
// observed in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Indicators holds the derived columns, each aligned with Series.Bars.
type Indicators struct {
	SMA20      []float64
	SMA50      []float64
	EMA12      []float64
	EMA26      []float64
	RSI        []float64
	MACD       []float64
	SignalLine []float64
	UpperBand  []float64
	LowerBand  []float64
}

// Column is a named indicator column.
type Column struct {
	Name   string
	Values []float64
}

// Columns returns the indicator columns in the order they are computed.
func (ind *Indicators) Columns() []Column {
	return []Column{
		{"SMA_20", ind.SMA20},
		{"SMA_50", ind.SMA50},
		{"EMA_12", ind.EMA12},
		{"EMA_26", ind.EMA26},
		{"RSI", ind.RSI},
		{"MACD", ind.MACD},
		{"Signal_Line", ind.SignalLine},
		{"Upper_Band", ind.UpperBand},
		{"Lower_Band", ind.LowerBand},
	}
}

// Series is an ascending, date-unique sequence of bars plus optional
// indicator columns. A series is treated as read-only once enriched.
type Series struct {
	Symbol     string
	Period     Period
	Source     string
	Bars       []Bar
	Indicators *Indicators
}

// NewSeries normalizes bars into a Series: rows are sorted by date, later
// duplicates replace earlier ones, and rows without a usable close are dropped.
func NewSeries(symbol string, period Period, source string, bars []Bar) *Series {
	byDate := make(map[time.Time]Bar, len(bars))
	for _, b := range bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close <= 0 {
			continue
		}
		b.Date = DateOf(b.Date)
		byDate[b.Date] = b
	}

	out := make([]Bar, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	return &Series{
		Symbol: symbol,
		Period: period,
		Source: source,
		Bars:   out,
	}
}

// Len returns the number of rows.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Closes returns the close column.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Dates returns the date column.
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Date
	}
	return out
}

// Last returns the most recent bar.
func (s *Series) Last() (Bar, bool) {
	if s.Len() == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Tail returns a view of the last n rows, indicators included.
func (s *Series) Tail(n int) *Series {
	if n >= s.Len() {
		return s
	}
	start := s.Len() - n
	out := &Series{
		Symbol: s.Symbol,
		Period: s.Period,
		Source: s.Source,
		Bars:   s.Bars[start:],
	}
	if ind := s.Indicators; ind != nil {
		out.Indicators = &Indicators{
			SMA20:      ind.SMA20[start:],
			SMA50:      ind.SMA50[start:],
			EMA12:      ind.EMA12[start:],
			EMA26:      ind.EMA26[start:],
			RSI:        ind.RSI[start:],
			MACD:       ind.MACD[start:],
			SignalLine: ind.SignalLine[start:],
			UpperBand:  ind.UpperBand[start:],
			LowerBand:  ind.LowerBand[start:],
		}
	}
	return out
}

// Since returns the rows dated on or after cutoff.
func (s *Series) Since(cutoff time.Time) *Series {
	cutoff = DateOf(cutoff)
	idx := sort.Search(len(s.Bars), func(i int) bool { return !s.Bars[i].Date.Before(cutoff) })
	return &Series{
		Symbol: s.Symbol,
		Period: s.Period,
		Source: s.Source,
		Bars:   s.Bars[idx:],
	}
}

// Period is a lookback window name such as "3mo" or "2y".
type Period string

const (
	Period1Mo Period = "1mo"
	Period3Mo Period = "3mo"
	Period6Mo Period = "6mo"
	Period1Y  Period = "1y"
	Period2Y  Period = "2y"
	Period5Y  Period = "5y"
	PeriodMax Period = "max"

	// DefaultPeriod is used when a period is empty or unknown.
	DefaultPeriod = Period2Y
)

var lookbackDays = map[Period]int{
	Period1Mo: 30,
	Period3Mo: 90,
	Period6Mo: 180,
	Period1Y:  365,
	Period2Y:  730,
	Period5Y:  1825,
	PeriodMax: 3650,
}

// ParsePeriod validates a period name.
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return DefaultPeriod, nil
	}
	p := Period(s)
	if _, ok := lookbackDays[p]; !ok {
		return "", Errorf(ErrInvalidInput, "unknown period %q", s)
	}
	return p, nil
}

// Lookback returns the calendar-day window for the period. Unknown periods
// fall back to the default period's window.
func (p Period) Lookback() int {
	if d, ok := lookbackDays[p]; ok {
		return d
	}
	return lookbackDays[DefaultPeriod]
}

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	_, ok := lookbackDays[p]
	return ok
}

// Window returns the [start, end] range covered by the period ending at end.
func (p Period) Window(end time.Time) (time.Time, time.Time) {
	return end.AddDate(0, 0, -p.Lookback()), end
}

// Periods lists the known periods from shortest to longest.
func Periods() []Period {
	return []Period{Period1Mo, Period3Mo, Period6Mo, Period1Y, Period2Y, Period5Y, PeriodMax}
}

// LookbackDays returns a copy of the period to calendar-day mapping.
func LookbackDays() map[Period]int {
	out := make(map[Period]int, len(lookbackDays))
	for p, d := range lookbackDays {
		out[p] = d
	}
	return out
}

// Provider describes a data source. It is static configuration.
type Provider struct {
	Name        string         `json:"name"`
	RequiresKey bool           `json:"requires_key"`
	Description string         `json:"description,omitempty"`
	Lookback    map[Period]int `json:"lookback_days"`
}

// Signal is a per-row trading directive.
type Signal int

const (
	SignalSell Signal = -1
	SignalFlat Signal = 0
	SignalLong Signal = 1
)

func (s Signal) String() string {
	switch s {
	case SignalSell:
		return "sell"
	case SignalLong:
		return "long"
	default:
		return "flat"
	}
}

// Position is the executed holding state. Short positions are never taken.
type Position int

const (
	PositionFlat Position = iota
	PositionLong
)

func (p Position) String() string {
	if p == PositionLong {
		return "long"
	}
	return "flat"
}

// Desired maps a signal onto the executable position: only Long holds stock.
func (s Signal) Desired() Position {
	if s == SignalLong {
		return PositionLong
	}
	return PositionFlat
}

// BusinessDaysAfter returns the n weekdays following date.
func BusinessDaysAfter(date time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := DateOf(date)
	for len(out) < n {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

// FormatDates renders dates with DateLayout.
func FormatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(DateLayout)
	}
	return out
}

// validSymbol matches tickers like AAPL, BRK-B, 0700.HK, ^GSPC, EURUSD=X
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9][A-Za-z0-9.\-=]{0,19}$`)

// ValidateSymbol checks if a symbol has valid format
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return WrapError(ErrInvalidInput, fmt.Errorf("symbol cannot be empty"))
	}
	if len(symbol) > 20 {
		return WrapError(ErrInvalidInput, fmt.Errorf("symbol too long: %s", symbol))
	}
	if !validSymbol.MatchString(symbol) {
		return WrapError(ErrInvalidInput, fmt.Errorf("invalid symbol format: %s", symbol))
	}
	return nil
}
