package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/newthinker/stonks/internal/core"
)

const seriesPrefix = "series"

// SeriesStore saves and loads history snapshots as JSON documents under
// series/{SYMBOL}/{period}.json.
type SeriesStore struct {
	storage Storage
	now     func() time.Time
}

// NewSeriesStore wraps a storage backend.
func NewSeriesStore(storage Storage) *SeriesStore {
	return &SeriesStore{storage: storage, now: time.Now}
}

type seriesDoc struct {
	Symbol  string    `json:"symbol"`
	Period  string    `json:"period"`
	Source  string    `json:"source"`
	SavedAt time.Time `json:"saved_at"`
	Bars    []barDoc  `json:"bars"`
}

type barDoc struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// SeriesPath returns the object path for a symbol and period.
func SeriesPath(symbol string, period core.Period) string {
	return path.Join(seriesPrefix, strings.ToUpper(symbol), string(period)+".json")
}

// Save writes the raw bars of series. Indicator columns are derived data and
// are not stored.
func (s *SeriesStore) Save(ctx context.Context, series *core.Series) error {
	if err := core.ValidateSymbol(series.Symbol); err != nil {
		return err
	}

	doc := seriesDoc{
		Symbol:  series.Symbol,
		Period:  string(series.Period),
		Source:  series.Source,
		SavedAt: s.now().UTC(),
		Bars:    make([]barDoc, len(series.Bars)),
	}
	for i, b := range series.Bars {
		doc.Bars[i] = barDoc{
			Date:   b.Date.Format(core.DateLayout),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding series: %w", err)
	}
	return s.storage.Write(ctx, SeriesPath(series.Symbol, series.Period), data)
}

// Load reads a snapshot. A missing snapshot wraps ErrNotFound.
func (s *SeriesStore) Load(ctx context.Context, symbol string, period core.Period) (*core.Series, error) {
	if err := core.ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	data, err := s.storage.Read(ctx, SeriesPath(symbol, period))
	if err != nil {
		return nil, err
	}

	var doc seriesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding series %s/%s: %w", symbol, period, err)
	}

	bars := make([]core.Bar, 0, len(doc.Bars))
	for _, b := range doc.Bars {
		date, err := time.Parse(core.DateLayout, b.Date)
		if err != nil {
			return nil, fmt.Errorf("decoding series %s/%s: bad date %q", symbol, period, b.Date)
		}
		bars = append(bars, core.Bar{
			Date:   date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return core.NewSeries(doc.Symbol, core.Period(doc.Period), doc.Source, bars), nil
}

// Entry identifies a stored snapshot.
type Entry struct {
	Symbol string      `json:"symbol"`
	Period core.Period `json:"period"`
}

// List returns the stored snapshots.
func (s *SeriesStore) List(ctx context.Context) ([]Entry, error) {
	paths, err := s.storage.List(ctx, seriesPrefix)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		parts := strings.Split(p, "/")
		if len(parts) != 3 || parts[0] != seriesPrefix || !strings.HasSuffix(parts[2], ".json") {
			continue
		}
		entries = append(entries, Entry{
			Symbol: parts[1],
			Period: core.Period(strings.TrimSuffix(parts[2], ".json")),
		})
	}
	return entries, nil
}
