// internal/api/server_test.go
package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newthinker/stonks/internal/api/job"
	"github.com/newthinker/stonks/internal/backtest"
	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/collector/mock"
	"github.com/newthinker/stonks/internal/metrics"
	"github.com/newthinker/stonks/internal/pipeline"
	"github.com/newthinker/stonks/internal/predictor"
	"github.com/newthinker/stonks/internal/predictor/montecarlo"
	"github.com/newthinker/stonks/internal/simulation"
	"github.com/newthinker/stonks/internal/strategy"
	"github.com/newthinker/stonks/internal/strategy/sma_crossover"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *metrics.Registry) {
	t.Helper()
	registry := collector.NewRegistry()
	registry.Register(mock.New(1))
	reg := metrics.NewRegistry()
	p := pipeline.New(registry, pipeline.Options{Metrics: reg})

	predictors := predictor.NewRegistry()
	predictors.Register(montecarlo.New(simulation.NewEngine(simulation.Options{}), 1))
	strategies := strategy.NewEngine()
	strategies.Register(sma_crossover.New())

	srv, err := NewServer(cfg, Dependencies{
		Market:     p,
		Predictors: predictors,
		Backtester: backtest.New(p, strategies, predictors, backtest.Options{Metrics: reg}),
		Jobs:       job.NewStore(10, time.Hour),
		Metrics:    reg,
	}, zap.NewNop())
	require.NoError(t, err)
	return srv, reg
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, Config{Host: "localhost", APIKey: "test-key"})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "online")
	assert.NotEmpty(t, w.Header().Get(metrics.RequestIDHeader))
}

func TestServer_IncompleteDependencies(t *testing.T) {
	_, err := NewServer(Config{}, Dependencies{}, zap.NewNop())
	assert.Error(t, err)
}

func TestServer_APIAuth(t *testing.T) {
	srv, _ := newTestServer(t, Config{APIKey: "test-key"})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/v1/sources", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sources", nil)
	req.Header.Set("X-API-Key", "test-key")
	w = serve(srv, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mock"`)
}

func TestServer_Routes(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodPost, "/api/v1/history", `{"ticker":"AAPL","period":"1mo","api_source":"mock"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/simulate", `{"ticker":"AAPL","period":"6mo","api_source":"mock","days":5}`, http.StatusOK},
		{http.MethodPost, "/api/v1/predict", `{"ticker":"AAPL","period":"6mo","api_source":"mock","days":5}`, http.StatusOK},
		{http.MethodPost, "/api/v1/backtest", `{"ticker":"AAPL","period":"6mo","api_source":"mock","strategy":"SMA_Crossover"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/backtest/jobs", `{"ticker":"AAPL","period":"6mo","api_source":"mock","strategy":"SMA_Crossover"}`, http.StatusAccepted},
		{http.MethodGet, "/api/v1/backtest/jobs/unknown", ``, http.StatusNotFound},
		{http.MethodGet, "/api/v1/history", ``, http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/nothing", ``, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			w := serve(srv, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, Config{APIKey: "test-key", AllowOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/simulate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := serve(srv, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t, Config{MetricsPath: "/metrics"})

	serve(srv, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	w := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="GET /api/health",status="2xx"} 1`)
}
