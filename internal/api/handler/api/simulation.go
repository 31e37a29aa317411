// internal/api/handler/api/simulation.go
package api

import (
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/newthinker/stonks/internal/api/response"
	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/indicator"
	"github.com/newthinker/stonks/internal/predictor"
	"github.com/newthinker/stonks/internal/simulation"
)

// DefaultHistoryRows is how many trailing rows accompany a forecast.
const DefaultHistoryRows = 45

// SimulationOptions sizes the simulate and predict responses.
type SimulationOptions struct {
	Iterations  int
	VisualPaths int
	Bins        int
	HistoryRows int
	Logger      *zap.Logger
}

// PricePoint is one forecast value.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// ModelForecast is one model's entry in a predict response.
type ModelForecast struct {
	Model       string             `json:"model"`
	Predictions []PricePoint       `json:"predictions"`
	Metrics     map[string]float64 `json:"metrics"`
}

// PredictResponse is the body returned by POST /api/v1/predict.
type PredictResponse struct {
	Ticker       string          `json:"ticker"`
	Source       string          `json:"source"`
	CurrentPrice float64         `json:"current_price"`
	Historical   []IndicatorRow  `json:"historical"`
	Results      []ModelForecast `json:"results"`
}

// SimulateResponse is the body returned by POST /api/v1/simulate.
type SimulateResponse struct {
	Ticker         string               `json:"ticker"`
	Source         string               `json:"source"`
	CurrentPrice   float64              `json:"current_price"`
	Historical     []IndicatorRow       `json:"historical"`
	Dates          []string             `json:"dates"`
	MeanPath       []float64            `json:"mean_path"`
	Paths          [][]float64          `json:"paths"`
	Distribution   simulation.Histogram `json:"distribution"`
	VaR95          float64              `json:"var_95"`
	ExpectedReturn float64              `json:"expected_return"`
	Drift          float64              `json:"drift"`
	Volatility     float64              `json:"volatility"`
	Seed           uint64               `json:"seed"`
}

// SimulationHandler serves Monte Carlo simulations and model forecasts.
type SimulationHandler struct {
	data       MarketData
	predictors *predictor.Registry
	opts       SimulationOptions
	logger     *zap.Logger
}

// NewSimulationHandler creates a new simulation handler.
func NewSimulationHandler(data MarketData, predictors *predictor.Registry, opts SimulationOptions) *SimulationHandler {
	if opts.Iterations <= 0 {
		opts.Iterations = 5000
	}
	if opts.HistoryRows <= 0 {
		opts.HistoryRows = DefaultHistoryRows
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulationHandler{
		data:       data,
		predictors: predictors,
		opts:       opts,
		logger:     logger,
	}
}

// Simulate runs the GBM engine and summarizes every path.
func (h *SimulationHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req PredictionRequest
	if err := decode(w, r, &req); err != nil {
		response.Fail(w, err)
		return
	}
	days, err := req.days()
	if err != nil {
		response.Fail(w, err)
		return
	}
	series, current, err := h.history(r, &req)
	if err != nil {
		response.Fail(w, err)
		return
	}

	mc, err := h.predictors.Get(predictor.MonteCarlo)
	if err != nil {
		response.Fail(w, err)
		return
	}
	res, err := mc.PredictPaths(r.Context(), series, req.simulationParams(days, h.opts.Iterations))
	if err != nil {
		response.Fail(w, err)
		return
	}
	summary, err := simulation.Summarize(res, current, simulation.SummaryOptions{
		VisualPaths: h.opts.VisualPaths,
		Bins:        h.opts.Bins,
	})
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, SimulateResponse{
		Ticker:         series.Symbol,
		Source:         series.Source,
		CurrentPrice:   current,
		Historical:     indicatorRows(series, h.opts.HistoryRows),
		Dates:          core.FormatDates(res.Dates),
		MeanPath:       res.Mean,
		Paths:          summary.Paths,
		Distribution:   summary.Distribution,
		VaR95:          summary.VaR95,
		ExpectedReturn: summary.ExpectedReturn,
		Drift:          res.Calibration.Drift,
		Volatility:     res.Calibration.Volatility,
		Seed:           res.Seed,
	})
}

// Predict trains each selected model and returns its point forecast.
func (h *SimulationHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictionRequest
	if err := decode(w, r, &req); err != nil {
		response.Fail(w, err)
		return
	}
	days, err := req.days()
	if err != nil {
		response.Fail(w, err)
		return
	}
	models, err := h.predictors.Resolve(req.ModelType)
	if err != nil {
		response.Fail(w, err)
		return
	}
	if req.RunSimulation && !slices.Contains(models, predictor.MonteCarlo) {
		models = append(models, predictor.MonteCarlo)
	}
	series, current, err := h.history(r, &req)
	if err != nil {
		response.Fail(w, err)
		return
	}

	results := make([]ModelForecast, 0, len(models))
	for _, name := range models {
		forecast, err := h.forecast(r, name, series, days)
		if err != nil {
			h.logger.Warn("prediction failed",
				zap.String("model", name),
				zap.String("symbol", series.Symbol),
				zap.Error(err),
			)
			response.Fail(w, err)
			return
		}
		results = append(results, forecast)
	}

	response.JSON(w, http.StatusOK, PredictResponse{
		Ticker:       series.Symbol,
		Source:       series.Source,
		CurrentPrice: current,
		Historical:   indicatorRows(series, h.opts.HistoryRows),
		Results:      results,
	})
}

func (h *SimulationHandler) forecast(r *http.Request, name string, series *core.Series, days int) (ModelForecast, error) {
	p, err := h.predictors.Get(name)
	if err != nil {
		return ModelForecast{}, err
	}
	training, err := p.Train(r.Context(), series, trainEpochs)
	if err != nil {
		return ModelForecast{}, err
	}
	fc, err := p.PredictFuture(r.Context(), series, days)
	if err != nil {
		return ModelForecast{}, err
	}

	points := make([]PricePoint, len(fc.Prices))
	for i, price := range fc.Prices {
		points[i] = PricePoint{Date: fc.Dates[i].Format(core.DateLayout), Price: price}
	}
	return ModelForecast{
		Model:       name,
		Predictions: points,
		Metrics:     map[string]float64{"loss": training.FinalLoss()},
	}, nil
}

// history fetches and enriches the request's series and returns its last
// close.
func (h *SimulationHandler) history(r *http.Request, req *PredictionRequest) (*core.Series, float64, error) {
	q, err := query(h.data, req.Ticker, req.Period, req.APISource, req.APIKey)
	if err != nil {
		return nil, 0, err
	}
	series, err := indicator.Enrich(h.data.GetHistory(r.Context(), q))
	if err != nil {
		return nil, 0, err
	}
	last, ok := series.Last()
	if !ok {
		return nil, 0, core.Errorf(core.ErrNoData, "no rows for %s", q.Symbol)
	}
	return series, last.Close, nil
}
