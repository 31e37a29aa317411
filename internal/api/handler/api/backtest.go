// internal/api/handler/api/backtest.go
package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stonks/internal/api/job"
	"github.com/newthinker/stonks/internal/api/response"
	"github.com/newthinker/stonks/internal/backtest"
	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/metrics"
)

const (
	backtestTimeout = 5 * time.Minute
	jobTypeBacktest = "backtest"
)

// Runner executes backtests.
type Runner interface {
	Run(ctx context.Context, req backtest.Request) ([]*backtest.Result, error)
}

// TradeView is one round trip on the wire.
type TradeView struct {
	EntryDate  string  `json:"entry_date"`
	ExitDate   string  `json:"exit_date"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Shares     float64 `json:"shares"`
	Return     float64 `json:"return"`
	Open       bool    `json:"open"`
}

// ModelBacktest is one model's entry in a model-mode response.
type ModelBacktest struct {
	Model       string             `json:"model"`
	Dates       []string           `json:"dates"`
	Actual      []float64          `json:"actual"`
	Predicted   []float64          `json:"predicted"`
	EquityCurve []float64          `json:"equity_curve"`
	TotalReturn float64            `json:"total_return"`
	FinalValue  float64            `json:"final_value"`
	SharpeRatio float64            `json:"sharpe_ratio"`
	MaxDrawdown float64            `json:"max_drawdown"`
	Metrics     map[string]float64 `json:"metrics"`
}

// BacktestResponse is the body returned by POST /api/v1/backtest. The
// top-level curve and figures belong to the strategy, or to the first model
// in model mode.
type BacktestResponse struct {
	Ticker           string          `json:"ticker"`
	Mode             string          `json:"mode"`
	Strategy         string          `json:"strategy,omitempty"`
	Results          []ModelBacktest `json:"results,omitempty"`
	Dates            []string        `json:"dates"`
	EquityCurve      []float64       `json:"equity_curve"`
	TotalReturn      float64         `json:"total_return"`
	FinalValue       float64         `json:"final_value"`
	LiquidationValue float64         `json:"liquidation_value"`
	SharpeRatio      float64         `json:"sharpe_ratio"`
	MaxDrawdown      float64         `json:"max_drawdown"`
	TotalTrades      int             `json:"total_trades"`
	WinRate          float64         `json:"win_rate"`
	Trades           []TradeView     `json:"trades"`
}

// BacktestOptions configures a BacktestHandler.
type BacktestOptions struct {
	// Defaults fills capital, commission and threshold a request omits.
	Defaults backtest.Config
	Metrics  *metrics.Registry
	Logger   *zap.Logger
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	data     MarketData
	runner   Runner
	jobStore *job.Store
	defaults backtest.Config
	metrics  *metrics.Registry
	logger   *zap.Logger
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(data MarketData, runner Runner, jobStore *job.Store, opts BacktestOptions) *BacktestHandler {
	if opts.Defaults == (backtest.Config{}) {
		opts.Defaults = backtest.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &BacktestHandler{
		data:     data,
		runner:   runner,
		jobStore: jobStore,
		defaults: opts.Defaults,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// Run executes a backtest and returns its result.
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	req, err := h.request(w, r)
	if err != nil {
		response.Fail(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), backtestTimeout)
	defer cancel()
	results, err := h.runner.Run(ctx, req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, NewBacktestResponse(req.Symbol, results))
}

// Create starts a new backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := h.request(w, r)
	if err != nil {
		response.Fail(w, err)
		return
	}

	j := h.jobStore.Create(jobTypeBacktest)
	h.metrics.SetJobsActive(jobTypeBacktest, h.jobStore.Active(jobTypeBacktest))

	// the job outlives the request
	go h.runJob(context.WithoutCancel(r.Context()), j.ID, req)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// runJob executes the backtest and updates job status.
func (h *BacktestHandler) runJob(ctx context.Context, jobID string, req backtest.Request) {
	defer func() {
		h.metrics.SetJobsActive(jobTypeBacktest, h.jobStore.Active(jobTypeBacktest))
	}()

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(ctx, backtestTimeout)
	defer cancel()
	results, err := h.runner.Run(ctx, req)
	if err != nil {
		h.logger.Warn("backtest job failed",
			zap.String("job_id", jobID),
			zap.String("symbol", req.Symbol),
			zap.Error(err),
		)
		h.jobStore.Fail(jobID, err)
		return
	}
	h.jobStore.Complete(jobID, NewBacktestResponse(req.Symbol, results))
}

// GetStatus returns the status of a backtest job.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobStore.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"status":   j.Status,
		"progress": j.Progress,
	}
	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
	}

	response.JSON(w, http.StatusOK, resp)
}

func (h *BacktestHandler) request(w http.ResponseWriter, r *http.Request) (backtest.Request, error) {
	var body PredictionRequest
	if err := decode(w, r, &body); err != nil {
		return backtest.Request{}, err
	}
	q, err := query(h.data, body.Ticker, body.Period, body.APISource, body.APIKey)
	if err != nil {
		return backtest.Request{}, err
	}
	req := backtest.Request{
		Symbol:   q.Symbol,
		Period:   q.Period,
		Source:   q.Source,
		APIKey:   q.APIKey,
		Strategy: body.Strategy,
		Model:    body.ModelType,
		Config:   body.backtestConfig(h.defaults),
	}
	if err := req.Config.Validate(); err != nil {
		return backtest.Request{}, err
	}
	return req, nil
}

// NewBacktestResponse flattens backtest results for the wire.
func NewBacktestResponse(symbol string, results []*backtest.Result) BacktestResponse {
	resp := BacktestResponse{Ticker: symbol}
	if len(results) == 0 {
		return resp
	}

	first := results[0]
	resp.Mode = first.Mode
	resp.Dates = core.FormatDates(first.Dates)
	resp.EquityCurve = first.Equity
	resp.TotalReturn = first.Stats.TotalReturn
	resp.FinalValue = first.Stats.FinalValue
	resp.LiquidationValue = first.Stats.LiquidationValue
	resp.SharpeRatio = first.Stats.SharpeRatio
	resp.MaxDrawdown = first.Stats.MaxDrawdown
	resp.TotalTrades = first.Stats.TotalTrades
	resp.WinRate = first.Stats.WinRate
	resp.Trades = tradeViews(first.Trades)

	if first.Mode == backtest.ModeStrategy {
		resp.Strategy = first.Name
		return resp
	}
	for _, res := range results {
		resp.Results = append(resp.Results, ModelBacktest{
			Model:       res.Name,
			Dates:       core.FormatDates(res.Dates),
			Actual:      res.Actual,
			Predicted:   res.Predicted,
			EquityCurve: res.Equity,
			TotalReturn: res.Stats.TotalReturn,
			FinalValue:  res.Stats.FinalValue,
			SharpeRatio: res.Stats.SharpeRatio,
			MaxDrawdown: res.Stats.MaxDrawdown,
			Metrics:     res.ModelMetrics,
		})
	}
	return resp
}

func tradeViews(trades []backtest.Trade) []TradeView {
	out := make([]TradeView, len(trades))
	for i, t := range trades {
		out[i] = TradeView{
			EntryDate:  t.EntryDate.Format(core.DateLayout),
			ExitDate:   t.ExitDate.Format(core.DateLayout),
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Shares:     t.Shares,
			Return:     t.Return,
			Open:       t.Open,
		}
	}
	return out
}
