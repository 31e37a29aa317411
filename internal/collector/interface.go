package collector

import (
	"context"

	"github.com/newthinker/stonks/internal/core"
)

// Source names shared by adapters, the pipeline and the API.
const (
	SourceYahoo        = "yahoo"
	SourceYahooChart   = "yahoochart"
	SourceAlphaVantage = "alpha_vantage"
	SourceFinnhub      = "finnhub"
	SourcePolygon      = "polygon"
	SourceMock         = "mock"
	SourceSnapshot     = "snapshot"
)

// Request identifies the history to fetch.
type Request struct {
	Symbol string
	Period core.Period
	// APIKey overrides the adapter's configured key for this call.
	APIKey string
}

// Collector fetches daily history from exactly one provider.
//
// FetchHistory returns a normalized series or one of the acquisition
// errors: core.ErrSourceUnavailable, core.ErrNoData,
// core.ErrInvalidCredential, core.ErrRateLimited or core.ErrMalformedResponse.
type Collector interface {
	Name() string
	Descriptor() core.Provider
	FetchHistory(ctx context.Context, req Request) (*core.Series, error)
}

// KeyedCollector is implemented by adapters that hold a default API key.
type KeyedCollector interface {
	Collector
	HasKey() bool
}
