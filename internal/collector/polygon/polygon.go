// Package polygon reads daily aggregates from Polygon.io.
package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/core"
)

const defaultBaseURL = "https://api.polygon.io"

// Polygon implements the premium Polygon.io collector
type Polygon struct {
	client *resty.Client
	apiKey string
	now    func() time.Time
}

type aggsResponse struct {
	Status       string `json:"status"`
	ResultsCount int    `json:"resultsCount"`
	Results      []struct {
		Open      float64 `json:"o"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		Close     float64 `json:"c"`
		Volume    float64 `json:"v"`
		Timestamp int64   `json:"t"` // milliseconds
	} `json:"results"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// New creates a Polygon collector with a default key.
func New(baseURL, apiKey string, timeout time.Duration) *Polygon {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)

	return &Polygon{
		client: client,
		apiKey: apiKey,
		now:    time.Now,
	}
}

func (p *Polygon) Name() string {
	return collector.SourcePolygon
}

func (p *Polygon) Descriptor() core.Provider {
	return core.Provider{
		Name:        collector.SourcePolygon,
		RequiresKey: true,
		Description: "Polygon.io daily aggregates",
	}
}

// HasKey reports whether a default key is configured.
func (p *Polygon) HasKey() bool {
	return p.apiKey != ""
}

// FetchHistory fetches adjusted daily aggregates over the period's window.
func (p *Polygon) FetchHistory(ctx context.Context, req collector.Request) (*core.Series, error) {
	if err := core.ValidateSymbol(req.Symbol); err != nil {
		return nil, err
	}
	key := req.APIKey
	if key == "" {
		key = p.apiKey
	}
	if key == "" {
		return nil, core.Errorf(core.ErrInvalidCredential, "polygon: api key is required")
	}

	start, end := req.Period.Window(p.now())
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"ticker": req.Symbol,
			"from":   start.Format(core.DateLayout),
			"to":     end.Format(core.DateLayout),
		}).
		SetQueryParams(map[string]string{
			"adjusted": "true",
			"sort":     "asc",
			"limit":    "50000",
			"apiKey":   key,
		}).
		Get("/v2/aggs/ticker/{ticker}/range/1/day/{from}/{to}")
	if err != nil {
		return nil, collector.TransportError(p.Name(), fmt.Errorf("fetching aggregates: %w", err))
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, collector.StatusError(p.Name(), resp.StatusCode())
	}

	var aggs aggsResponse
	if err := json.Unmarshal(resp.Body(), &aggs); err != nil {
		return nil, core.WrapError(core.ErrMalformedResponse, fmt.Errorf("polygon: decoding aggregates: %w", err))
	}

	switch aggs.Status {
	case "OK", "DELAYED":
	case "NOT_AUTHORIZED":
		return nil, core.Errorf(core.ErrInvalidCredential, "polygon: %s", aggs.Message)
	case "":
		return nil, core.Errorf(core.ErrMalformedResponse, "polygon: response has no status")
	default:
		return nil, core.Errorf(core.ErrNoData, "polygon: status %s %s", aggs.Status, aggs.Error)
	}
	if len(aggs.Results) == 0 {
		return nil, collector.NoData(p.Name(), req.Symbol, req.Period)
	}

	bars := make([]core.Bar, len(aggs.Results))
	for i, r := range aggs.Results {
		bars[i] = core.Bar{
			Date:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return core.NewSeries(req.Symbol, req.Period, p.Name(), bars), nil
}
