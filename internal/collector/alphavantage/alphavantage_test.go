package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/core"
)

const dailyBody = `{
  "Meta Data": {"2. Symbol": "IBM"},
  "Time Series (Daily)": {
    "2024-06-28": {"1. open": "170.00", "2. high": "172.50", "3. low": "169.10", "4. close": "171.20", "5. volume": "4100000"},
    "2024-06-27": {"1. open": "168.00", "2. high": "170.10", "3. low": "167.50", "4. close": "169.90", "5. volume": "3900000"},
    "2023-01-03": {"1. open": "141.10", "2. high": "141.90", "3. low": "139.77", "4. close": "141.55", "5. volume": "3338829"}
  }
}`

func newTestServer(t *testing.T, body string, seen *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = r.URL.Query()
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestCollector(baseURL, key string) *AlphaVantage {
	a := New(baseURL, key, time.Second)
	a.now = func() time.Time { return time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC) }
	return a
}

func TestAlphaVantage_ImplementsCollector(t *testing.T) {
	var _ collector.KeyedCollector = (*AlphaVantage)(nil)
}

func TestAlphaVantage_FetchHistory(t *testing.T) {
	var q url.Values
	srv := newTestServer(t, dailyBody, &q)

	s, err := newTestCollector(srv.URL, "demo").FetchHistory(context.Background(),
		collector.Request{Symbol: "IBM", Period: core.Period6Mo})
	require.NoError(t, err)

	assert.Equal(t, "TIME_SERIES_DAILY", q.Get("function"))
	assert.Equal(t, "compact", q.Get("outputsize"))
	assert.Equal(t, "demo", q.Get("apikey"))

	// the 2023 row is outside the six-month window
	require.Equal(t, 2, s.Len())
	assert.Equal(t, "alpha_vantage", s.Source)
	assert.Equal(t, time.Date(2024, 6, 27, 0, 0, 0, 0, time.UTC), s.Bars[0].Date)
	assert.Equal(t, 171.20, s.Bars[1].Close)
	assert.Equal(t, 4100000.0, s.Bars[1].Volume)
}

func TestAlphaVantage_RequestKeyOverridesDefault(t *testing.T) {
	var q url.Values
	srv := newTestServer(t, dailyBody, &q)

	_, err := newTestCollector(srv.URL, "default").FetchHistory(context.Background(),
		collector.Request{Symbol: "IBM", Period: core.Period5Y, APIKey: "caller"})
	require.NoError(t, err)

	assert.Equal(t, "caller", q.Get("apikey"))
	assert.Equal(t, "full", q.Get("outputsize"))
}

func TestAlphaVantage_MissingKey(t *testing.T) {
	a := newTestCollector("http://127.0.0.1:1", "")
	assert.False(t, a.HasKey())

	_, err := a.FetchHistory(context.Background(), collector.Request{Symbol: "IBM", Period: core.Period1Y})
	assert.ErrorIs(t, err, core.ErrInvalidCredential)
}

func TestAlphaVantage_ErrorPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *core.Error
	}{
		{"invalid symbol", `{"Error Message": "Invalid API call. Please retry or visit the documentation."}`, core.ErrNoData},
		{"invalid key", `{"Error Message": "the parameter apikey is invalid or missing."}`, core.ErrInvalidCredential},
		{"rate limit note", `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`, core.ErrRateLimited},
		{"information", `{"Information": "We have detected your API key and our standard API rate limit is 25 requests per day."}`, core.ErrRateLimited},
		{"no series", `{"Meta Data": {}}`, core.ErrNoData},
		{"series wrong type", `{"Time Series (Daily)": []}`, core.ErrMalformedResponse},
		{"bad date", `{"Time Series (Daily)": {"yesterday": {"4. close": "1"}}}`, core.ErrMalformedResponse},
		{"not json", `<!doctype html>`, core.ErrMalformedResponse},
		{"old rows only", `{"Time Series (Daily)": {"2001-01-02": {"1. open": "1", "4. close": "1"}}}`, core.ErrNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.body, nil)
			_, err := newTestCollector(srv.URL, "demo").FetchHistory(context.Background(),
				collector.Request{Symbol: "IBM", Period: core.Period1Y})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAlphaVantage_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestCollector(srv.URL, "demo").FetchHistory(context.Background(),
		collector.Request{Symbol: "IBM", Period: core.Period1Y})
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}
