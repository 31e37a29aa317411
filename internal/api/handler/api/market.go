// internal/api/handler/api/market.go
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/newthinker/stonks/internal/api/response"
	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/pipeline"
)

// MarketData is the acquisition pipeline as the handlers use it.
type MarketData interface {
	GetHistory(ctx context.Context, q pipeline.Query) *core.Series
	Sources() []core.Provider
	HasSource(name string) bool
}

// HistoryResponse is the body returned by POST /api/v1/history.
type HistoryResponse struct {
	Ticker  string     `json:"ticker"`
	Period  string     `json:"period"`
	Source  string     `json:"source"`
	History []PriceRow `json:"history"`
}

// MarketHandler serves raw market data.
type MarketHandler struct {
	data MarketData
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(data MarketData) *MarketHandler {
	return &MarketHandler{data: data}
}

// Sources lists the registered providers.
func (h *MarketHandler) Sources(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"sources": h.data.Sources(),
	})
}

// History returns daily bars for a ticker.
func (h *MarketHandler) History(w http.ResponseWriter, r *http.Request) {
	var req HistoryRequest
	if err := decode(w, r, &req); err != nil {
		response.Fail(w, err)
		return
	}
	q, err := query(h.data, req.Ticker, req.Period, req.APISource, req.APIKey)
	if err != nil {
		response.Fail(w, err)
		return
	}

	series := h.data.GetHistory(r.Context(), q)
	response.JSON(w, http.StatusOK, HistoryResponse{
		Ticker:  q.Symbol,
		Period:  string(q.Period),
		Source:  series.Source,
		History: priceRows(series),
	})
}

// query validates the shared acquisition fields.
func query(data MarketData, ticker, rawPeriod, source, apiKey string) (pipeline.Query, error) {
	sym, err := symbol(ticker)
	if err != nil {
		return pipeline.Query{}, err
	}
	p, err := period(rawPeriod)
	if err != nil {
		return pipeline.Query{}, err
	}
	source = strings.ToLower(strings.TrimSpace(source))
	if !data.HasSource(source) {
		return pipeline.Query{}, core.Errorf(core.ErrUnknownSource, "source %q", source)
	}
	return pipeline.Query{
		Symbol: sym,
		Period: p,
		Source: source,
		APIKey: strings.TrimSpace(apiKey),
	}, nil
}
