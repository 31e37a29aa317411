// Package yahoo is the primary free history source, backed by the
// finance-go chart client.
package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/core"
)

// barIterator is the subset of *chart.Iter the collector reads.
type barIterator interface {
	Next() bool
	Bar() *finance.ChartBar
	Meta() finance.ChartMeta
	Err() error
}

type chartFunc func(*chart.Params) barIterator

var setClientOnce sync.Once

// Yahoo implements the Yahoo Finance collector
type Yahoo struct {
	fetch chartFunc
	now   func() time.Time
}

// New creates a Yahoo collector. The finance-go client is process-wide, so
// the timeout of the first collector created wins.
func New(timeout time.Duration) *Yahoo {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	setClientOnce.Do(func() {
		finance.SetHTTPClient(&http.Client{Timeout: timeout})
	})
	return &Yahoo{
		fetch: func(p *chart.Params) barIterator { return chart.Get(p) },
		now:   time.Now,
	}
}

func (y *Yahoo) Name() string {
	return collector.SourceYahoo
}

func (y *Yahoo) Descriptor() core.Provider {
	return core.Provider{
		Name:        collector.SourceYahoo,
		Description: "Yahoo Finance",
	}
}

// FetchHistory fetches daily bars covering the period's lookback window.
func (y *Yahoo) FetchHistory(ctx context.Context, req collector.Request) (*core.Series, error) {
	if err := core.ValidateSymbol(req.Symbol); err != nil {
		return nil, err
	}

	start, end := req.Period.Window(y.now())
	params := &chart.Params{
		Symbol:   collector.ToYahooSymbol(req.Symbol),
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	type result struct {
		bars []core.Bar
		err  error
	}
	done := make(chan result, 1)
	go func() {
		bars, err := y.collect(params)
		done <- result{bars, err}
	}()

	// finance-go has no context support; abandon the call on cancellation
	// and let the client timeout reap it.
	select {
	case <-ctx.Done():
		return nil, collector.TransportError(y.Name(), ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if len(r.bars) == 0 {
			return nil, collector.NoData(y.Name(), req.Symbol, req.Period)
		}
		return core.NewSeries(req.Symbol, req.Period, y.Name(), r.bars), nil
	}
}

func (y *Yahoo) collect(params *chart.Params) ([]core.Bar, error) {
	iter := y.fetch(params)

	var bars []core.Bar
	var offset int64
	for first := true; iter.Next(); first = false {
		if first {
			// Meta is only populated once a page has been read.
			offset = int64(iter.Meta().Gmtoffset)
		}
		bar := iter.Bar()
		if bar == nil || bar.Close.IsZero() || bar.Open.IsZero() {
			continue // Skip missing data
		}
		bars = append(bars, core.Bar{
			Date:   collector.ExchangeDate(int64(bar.Timestamp), offset),
			Open:   bar.Open.InexactFloat64(),
			High:   bar.High.InexactFloat64(),
			Low:    bar.Low.InexactFloat64(),
			Close:  bar.Close.InexactFloat64(),
			Volume: float64(bar.Volume),
		})
	}

	if err := iter.Err(); err != nil {
		return nil, collector.TransportError(collector.SourceYahoo,
			fmt.Errorf("fetching history for %s: %w", params.Symbol, err))
	}
	return bars, nil
}
