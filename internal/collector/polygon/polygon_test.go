package polygon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/core"
)

func newTestCollector(baseURL, key string) *Polygon {
	p := New(baseURL, key, time.Second)
	p.now = func() time.Time { return time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC) }
	return p
}

func TestPolygon_ImplementsCollector(t *testing.T) {
	var _ collector.KeyedCollector = (*Polygon)(nil)
}

func TestPolygon_FetchHistory(t *testing.T) {
	var gotPath, gotKey, gotAdjusted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("apiKey")
		gotAdjusted = r.URL.Query().Get("adjusted")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ticker":"AAPL","status":"OK","resultsCount":2,"results":[
			{"o":190.1,"h":192.0,"l":189.5,"c":191.3,"v":5.1e7,"t":1719201600000},
			{"o":191.3,"h":193.2,"l":190.8,"c":192.9,"v":4.8e7,"t":1719288000000}]}`))
	}))
	defer srv.Close()

	s, err := newTestCollector(srv.URL, "pk").FetchHistory(context.Background(),
		collector.Request{Symbol: "AAPL", Period: core.Period1Mo})
	require.NoError(t, err)

	assert.Equal(t, "/v2/aggs/ticker/AAPL/range/1/day/2024-05-31/2024-06-30", gotPath)
	assert.Equal(t, "pk", gotKey)
	assert.Equal(t, "true", gotAdjusted)

	require.Equal(t, 2, s.Len())
	assert.Equal(t, time.Date(2024, 6, 24, 0, 0, 0, 0, time.UTC), s.Bars[0].Date)
	assert.Equal(t, 192.9, s.Bars[1].Close)
	assert.Equal(t, "polygon", s.Source)
}

func TestPolygon_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   *core.Error
	}{
		{"empty results", http.StatusOK, `{"status":"OK","resultsCount":0}`, core.ErrNoData},
		{"error status", http.StatusOK, `{"status":"ERROR","error":"Unknown ticker"}`, core.ErrNoData},
		{"not authorized", http.StatusOK, `{"status":"NOT_AUTHORIZED","message":"plan does not include this data"}`, core.ErrInvalidCredential},
		{"unauthorized status", http.StatusUnauthorized, `{"status":"ERROR"}`, core.ErrInvalidCredential},
		{"too many requests", http.StatusTooManyRequests, `{"status":"ERROR"}`, core.ErrRateLimited},
		{"missing status", http.StatusOK, `{"results":[]}`, core.ErrMalformedResponse},
		{"not json", http.StatusOK, `[[[`, core.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestCollector(srv.URL, "pk").FetchHistory(context.Background(),
				collector.Request{Symbol: "AAPL", Period: core.Period1Y})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPolygon_MissingKey(t *testing.T) {
	_, err := newTestCollector("http://127.0.0.1:1", "").FetchHistory(context.Background(),
		collector.Request{Symbol: "AAPL", Period: core.Period1Y})
	assert.ErrorIs(t, err, core.ErrInvalidCredential)
}
