// Package alphavantage reads daily bars from Alpha Vantage.
package alphavantage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/core"
)

const defaultBaseURL = "https://www.alphavantage.co"

// AlphaVantage implements the premium Alpha Vantage collector
type AlphaVantage struct {
	client *resty.Client
	apiKey string
	now    func() time.Time
}

// New creates an Alpha Vantage collector with a default key.
func New(baseURL, apiKey string, timeout time.Duration) *AlphaVantage {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)

	return &AlphaVantage{
		client: client,
		apiKey: apiKey,
		now:    time.Now,
	}
}

func (a *AlphaVantage) Name() string {
	return collector.SourceAlphaVantage
}

func (a *AlphaVantage) Descriptor() core.Provider {
	return core.Provider{
		Name:        collector.SourceAlphaVantage,
		RequiresKey: true,
		Description: "Alpha Vantage daily time series",
	}
}

// HasKey reports whether a default key is configured.
func (a *AlphaVantage) HasKey() bool {
	return a.apiKey != ""
}

// FetchHistory fetches TIME_SERIES_DAILY and trims it to the period.
func (a *AlphaVantage) FetchHistory(ctx context.Context, req collector.Request) (*core.Series, error) {
	if err := core.ValidateSymbol(req.Symbol); err != nil {
		return nil, err
	}
	key := req.APIKey
	if key == "" {
		key = a.apiKey
	}
	if key == "" {
		return nil, core.Errorf(core.ErrInvalidCredential, "alpha_vantage: api key is required")
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function":   "TIME_SERIES_DAILY",
			"symbol":     req.Symbol,
			"apikey":     key,
			"outputsize": outputSize(req.Period),
			"datatype":   "json",
		}).
		Get("/query")
	if err != nil {
		return nil, collector.TransportError(a.Name(), fmt.Errorf("fetching history: %w", err))
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, collector.StatusError(a.Name(), resp.StatusCode())
	}

	bars, err := parseDaily(resp.Body())
	if err != nil {
		return nil, err
	}

	cutoff, _ := req.Period.Window(a.now())
	series := core.NewSeries(req.Symbol, req.Period, a.Name(), bars).Since(cutoff)
	if series.Len() == 0 {
		return nil, collector.NoData(a.Name(), req.Symbol, req.Period)
	}
	return series, nil
}

// outputSize picks "full" (20+ years) only for long periods; "compact"
// returns the latest 100 rows.
func outputSize(p core.Period) string {
	switch p {
	case core.Period2Y, core.Period5Y, core.PeriodMax:
		return "full"
	default:
		return "compact"
	}
}

func parseDaily(body []byte) ([]core.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, core.Errorf(core.ErrMalformedResponse, "alpha_vantage: response is not JSON")
	}
	doc := gjson.ParseBytes(body)

	if msg := doc.Get("Error Message"); msg.Exists() {
		if strings.Contains(strings.ToLower(msg.String()), "apikey") {
			return nil, core.Errorf(core.ErrInvalidCredential, "alpha_vantage: %s", msg.String())
		}
		return nil, core.Errorf(core.ErrNoData, "alpha_vantage: %s", msg.String())
	}
	// Quota and premium-endpoint notices arrive as 200s.
	for _, field := range []string{"Note", "Information"} {
		if msg := doc.Get(field); msg.Exists() {
			return nil, core.Errorf(core.ErrRateLimited, "alpha_vantage: %s", msg.String())
		}
	}

	ts := doc.Get("Time Series (Daily)")
	if !ts.Exists() {
		return nil, core.Errorf(core.ErrNoData, "alpha_vantage: response has no daily series")
	}
	if !ts.IsObject() {
		return nil, core.Errorf(core.ErrMalformedResponse, "alpha_vantage: daily series is not an object")
	}

	var bars []core.Bar
	var parseErr error
	ts.ForEach(func(k, v gjson.Result) bool {
		date, err := time.Parse(core.DateLayout, k.String())
		if err != nil {
			parseErr = core.Errorf(core.ErrMalformedResponse, "alpha_vantage: bad date %q", k.String())
			return false
		}
		bars = append(bars, core.Bar{
			Date:   date,
			Open:   v.Get("1\\. open").Float(),
			High:   v.Get("2\\. high").Float(),
			Low:    v.Get("3\\. low").Float(),
			Close:  v.Get("4\\. close").Float(),
			Volume: v.Get("5\\. volume").Float(),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return bars, nil
}
