package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newthinker/stonks/internal/api/job"
	"github.com/newthinker/stonks/internal/backtest"
	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/collector/mock"
	"github.com/newthinker/stonks/internal/pipeline"
	"github.com/newthinker/stonks/internal/predictor"
	"github.com/newthinker/stonks/internal/predictor/montecarlo"
	"github.com/newthinker/stonks/internal/simulation"
	"github.com/newthinker/stonks/internal/strategy"
	"github.com/newthinker/stonks/internal/strategy/sma_crossover"
)

type fixture struct {
	pipeline   *pipeline.Pipeline
	predictors *predictor.Registry
	backtester *backtest.Backtester
	jobs       *job.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := collector.NewRegistry()
	registry.Register(mock.New(42))
	p := pipeline.New(registry, pipeline.Options{})

	predictors := predictor.NewRegistry()
	predictors.Register(montecarlo.New(simulation.NewEngine(simulation.Options{Workers: 2}), 7))

	strategies := strategy.NewEngine()
	strategies.Register(sma_crossover.New())

	return &fixture{
		pipeline:   p,
		predictors: predictors,
		backtester: backtest.New(p, strategies, predictors, backtest.Options{}),
		jobs:       job.NewStore(10, time.Hour),
	}
}

func post(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

// data decodes the envelope of a success response.
func data[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Error.Code
}
