// Package mock generates synthetic daily history for tests and offline use.
package mock

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/core"
)

const (
	basePrice   = 150.0
	dailyStdDev = 0.02
	minVolume   = 1_000_000
	maxVolume   = 5_000_000
)

// Mock produces a geometric random walk. With a non-zero seed every call
// returns the same walk for the same period.
type Mock struct {
	seed uint64
	now  func() time.Time
}

// New creates a mock collector. A zero seed draws a fresh walk per call.
func New(seed int64) *Mock {
	return &Mock{seed: uint64(seed), now: time.Now}
}

// WithClock sets the clock used to date the generated rows.
func (m *Mock) WithClock(now func() time.Time) *Mock {
	m.now = now
	return m
}

func (m *Mock) Name() string {
	return collector.SourceMock
}

func (m *Mock) Descriptor() core.Provider {
	return core.Provider{
		Name:        collector.SourceMock,
		Description: "Synthetic random walk (offline)",
	}
}

// FetchHistory returns one row per calendar day for the period's lookback,
// ending today. It never touches the network.
func (m *Mock) FetchHistory(ctx context.Context, req collector.Request) (*core.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, collector.TransportError(collector.SourceMock, err)
	}

	days := req.Period.Lookback()
	rng := m.rng()
	end := core.DateOf(m.now())

	bars := make([]core.Bar, days)
	logPrice := math.Log(basePrice)
	for i := range bars {
		logPrice += rng.NormFloat64() * dailyStdDev
		price := math.Exp(logPrice)
		bars[i] = core.Bar{
			Date:   end.AddDate(0, 0, i-days+1),
			Open:   price,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: float64(minVolume + rng.IntN(maxVolume-minVolume)),
		}
	}

	return core.NewSeries(req.Symbol, req.Period, collector.SourceMock, bars), nil
}

func (m *Mock) rng() *rand.Rand {
	if m.seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(m.seed, m.seed^0x9e3779b97f4a7c15))
}
