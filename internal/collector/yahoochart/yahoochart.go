// Package yahoochart reads daily bars straight from Yahoo's public chart
// endpoint. It is the low-level fallback for the yahoo collector.
package yahoochart

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/core"
	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBodyBytes   = 16 << 20
)

// YahooChart implements the raw chart collector
type YahooChart struct {
	client  *http.Client
	baseURL string
}

// New creates a chart collector. An empty baseURL uses Yahoo's public host.
func New(baseURL string, timeout time.Duration) *YahooChart {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YahooChart{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

func (y *YahooChart) Name() string {
	return collector.SourceYahooChart
}

func (y *YahooChart) Descriptor() core.Provider {
	return core.Provider{
		Name:        collector.SourceYahooChart,
		Description: "Yahoo Finance chart endpoint (direct HTTP)",
	}
}

// FetchHistory fetches daily OHLCV rows for the period.
func (y *YahooChart) FetchHistory(ctx context.Context, req collector.Request) (*core.Series, error) {
	if err := core.ValidateSymbol(req.Symbol); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s?interval=1d&range=%s",
		y.baseURL, url.PathEscape(collector.ToYahooSymbol(req.Symbol)), url.QueryEscape(string(req.Period)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, collector.TransportError(y.Name(), err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(httpReq)
	if err != nil {
		return nil, collector.TransportError(y.Name(), fmt.Errorf("fetching history: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, collector.TransportError(y.Name(), fmt.Errorf("reading response: %w", err))
	}

	// Yahoo answers unknown symbols with 404 and a chart.error payload.
	if resp.StatusCode != http.StatusOK {
		if desc := gjson.GetBytes(body, "chart.error.description"); desc.Exists() && resp.StatusCode == http.StatusNotFound {
			return nil, core.Errorf(core.ErrNoData, "yahoochart: %s", desc.String())
		}
		return nil, collector.StatusError(y.Name(), resp.StatusCode)
	}

	bars, err := parseChart(body)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, collector.NoData(y.Name(), req.Symbol, req.Period)
	}

	return core.NewSeries(req.Symbol, req.Period, y.Name(), bars), nil
}

func parseChart(body []byte) ([]core.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, core.Errorf(core.ErrMalformedResponse, "yahoochart: response is not JSON")
	}

	chart := gjson.GetBytes(body, "chart")
	if !chart.Exists() {
		return nil, core.Errorf(core.ErrMalformedResponse, "yahoochart: missing chart object")
	}
	if e := chart.Get("error"); e.Exists() && e.Type != gjson.Null {
		return nil, core.Errorf(core.ErrNoData, "yahoochart: %s", e.Get("description").String())
	}

	result := chart.Get("result.0")
	if !result.Exists() {
		return nil, nil
	}

	timestamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	if len(timestamps) > 0 && !quote.Exists() {
		return nil, core.Errorf(core.ErrMalformedResponse, "yahoochart: missing quote indicators")
	}

	offset := result.Get("meta.gmtoffset").Int()

	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	bars := make([]core.Bar, 0, len(timestamps))
	for i, ts := range timestamps {
		o, c := at(opens, i), at(closes, i)
		if o.Type != gjson.Number || c.Type != gjson.Number {
			continue // Skip missing data
		}
		bars = append(bars, core.Bar{
			Date:   collector.ExchangeDate(ts.Int(), offset),
			Open:   o.Float(),
			High:   orDefault(at(highs, i), c.Float()),
			Low:    orDefault(at(lows, i), c.Float()),
			Close:  c.Float(),
			Volume: at(volumes, i).Float(),
		})
	}
	return bars, nil
}

func at(values []gjson.Result, i int) gjson.Result {
	if i < len(values) {
		return values[i]
	}
	return gjson.Result{}
}

func orDefault(r gjson.Result, fallback float64) float64 {
	if r.Type == gjson.Number {
		return r.Float()
	}
	return fallback
}
