// Package finnhub reads daily candles from Finnhub.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/core"
)

const defaultBaseURL = "https://finnhub.io/api/v1"

// Finnhub implements the premium Finnhub collector
type Finnhub struct {
	client *resty.Client
	apiKey string
	now    func() time.Time
}

// candleResponse is the /stock/candle payload: parallel arrays plus a status.
type candleResponse struct {
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Time   []int64   `json:"t"`
	Volume []float64 `json:"v"`
	Status string    `json:"s"`
}

// New creates a Finnhub collector with a default key.
func New(baseURL, apiKey string, timeout time.Duration) *Finnhub {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)

	return &Finnhub{
		client: client,
		apiKey: apiKey,
		now:    time.Now,
	}
}

func (f *Finnhub) Name() string {
	return collector.SourceFinnhub
}

func (f *Finnhub) Descriptor() core.Provider {
	return core.Provider{
		Name:        collector.SourceFinnhub,
		RequiresKey: true,
		Description: "Finnhub stock candles",
	}
}

// HasKey reports whether a default key is configured.
func (f *Finnhub) HasKey() bool {
	return f.apiKey != ""
}

// FetchHistory fetches daily candles over the period's window.
func (f *Finnhub) FetchHistory(ctx context.Context, req collector.Request) (*core.Series, error) {
	if err := core.ValidateSymbol(req.Symbol); err != nil {
		return nil, err
	}
	key := req.APIKey
	if key == "" {
		key = f.apiKey
	}
	if key == "" {
		return nil, core.Errorf(core.ErrInvalidCredential, "finnhub: api key is required")
	}

	start, end := req.Period.Window(f.now())
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":     req.Symbol,
			"resolution": "D",
			"from":       strconv.FormatInt(start.Unix(), 10),
			"to":         strconv.FormatInt(end.Unix(), 10),
			"token":      key,
		}).
		Get("/stock/candle")
	if err != nil {
		return nil, collector.TransportError(f.Name(), fmt.Errorf("fetching candles: %w", err))
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, collector.StatusError(f.Name(), resp.StatusCode())
	}

	var candles candleResponse
	if err := json.Unmarshal(resp.Body(), &candles); err != nil {
		return nil, core.WrapError(core.ErrMalformedResponse, fmt.Errorf("finnhub: decoding candles: %w", err))
	}

	switch candles.Status {
	case "ok":
	case "no_data":
		return nil, collector.NoData(f.Name(), req.Symbol, req.Period)
	default:
		return nil, core.Errorf(core.ErrMalformedResponse, "finnhub: unexpected status %q", candles.Status)
	}

	n := len(candles.Time)
	if len(candles.Open) != n || len(candles.High) != n || len(candles.Low) != n ||
		len(candles.Close) != n || len(candles.Volume) != n {
		return nil, core.Errorf(core.ErrMalformedResponse, "finnhub: candle arrays differ in length")
	}
	if n == 0 {
		return nil, collector.NoData(f.Name(), req.Symbol, req.Period)
	}

	bars := make([]core.Bar, n)
	for i := range bars {
		bars[i] = core.Bar{
			Date:   time.Unix(candles.Time[i], 0).UTC(),
			Open:   candles.Open[i],
			High:   candles.High[i],
			Low:    candles.Low[i],
			Close:  candles.Close[i],
			Volume: candles.Volume[i],
		}
	}
	return core.NewSeries(req.Symbol, req.Period, f.Name(), bars), nil
}
