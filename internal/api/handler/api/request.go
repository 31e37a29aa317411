// internal/api/handler/api/request.go
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/newthinker/stonks/internal/backtest"
	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/simulation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Request defaults shared by the prediction endpoints.
const (
	DefaultDays          = 30
	trainEpochs          = 20
	defaultVolatilityAdj = 1.0
)

// HistoryRequest is the body of POST /api/v1/history.
type HistoryRequest struct {
	Ticker    string `json:"ticker"`
	Period    string `json:"period"`
	APISource string `json:"api_source"`
	APIKey    string `json:"api_key"`
}

// PredictionRequest is the body of the simulate, predict and backtest
// endpoints. Omitted fields take the documented defaults.
type PredictionRequest struct {
	Ticker           string   `json:"ticker"`
	Days             int      `json:"days"`
	ModelType        string   `json:"model_type"`
	Period           string   `json:"period"`
	RunSimulation    bool     `json:"run_simulation"`
	SimulationMethod string   `json:"simulation_method"`
	APISource        string   `json:"api_source"`
	APIKey           string   `json:"api_key"`
	Strategy         string   `json:"strategy"`
	InitialCapital   *float64 `json:"initial_capital"`
	Commission       *float64 `json:"commission"`
	DriftAdj         float64  `json:"drift_adj"`
	VolatilityAdj    *float64 `json:"volatility_adj"`
	Seed             uint64   `json:"seed"`
}

// symbol validates and upper-cases the ticker.
func symbol(ticker string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(ticker))
	if err := core.ValidateSymbol(s); err != nil {
		return "", err
	}
	return s, nil
}

// period parses p, defaulting to two years when empty.
func period(p string) (core.Period, error) {
	if strings.TrimSpace(p) == "" {
		return core.DefaultPeriod, nil
	}
	return core.ParsePeriod(p)
}

func (r *PredictionRequest) days() (int, error) {
	if r.Days == 0 {
		return DefaultDays, nil
	}
	if r.Days < 0 {
		return 0, core.Errorf(core.ErrInvalidInput, "days must be positive, got %d", r.Days)
	}
	return r.Days, nil
}

func (r *PredictionRequest) simulationParams(days, iterations int) simulation.Params {
	method := strings.ToLower(strings.TrimSpace(r.SimulationMethod))
	if method == "" {
		method = simulation.MethodGBM
	}
	volAdj := defaultVolatilityAdj
	if r.VolatilityAdj != nil {
		volAdj = *r.VolatilityAdj
	}
	return simulation.Params{
		Days:          days,
		Iterations:    iterations,
		Method:        method,
		DriftAdj:      r.DriftAdj,
		VolatilityAdj: volAdj,
		Seed:          r.Seed,
	}
}

func (r *PredictionRequest) backtestConfig(base backtest.Config) backtest.Config {
	if r.InitialCapital != nil {
		base.InitialCapital = *r.InitialCapital
	}
	if r.Commission != nil {
		base.Commission = *r.Commission
	}
	return base
}

// decode reads a JSON body into dst. Unknown fields are rejected.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return core.Errorf(core.ErrInvalidInput, "request body is empty")
		}
		return core.WrapError(core.ErrInvalidInput, err)
	}
	return nil
}
