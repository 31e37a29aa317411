// Package report renders backtest and simulation results as standalone
// HTML pages.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/newthinker/stonks/internal/backtest"
	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/simulation"
)

const (
	colorEquity    = "#3b82f6"
	colorPrice     = "#9ca3af"
	colorPredicted = "#f472b6"
	colorMean      = "#fbbf24"
	colorPath      = "#34d399"
	colorBar       = "#a78bfa"

	chartWidth  = "1200px"
	chartHeight = "520px"

	// fanPaths is how many raw paths are drawn behind the mean.
	fanPaths = 20
)

func initOpts(pageTitle string) opts.Initialization {
	return opts.Initialization{
		PageTitle: pageTitle,
		Theme:     types.ThemeWesteros,
		Width:     chartWidth,
		Height:    chartHeight,
	}
}

// EquityChart plots the equity curve against the traded price.
func EquityChart(res *backtest.Result) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts("Backtest")),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s %s", res.Symbol, res.Name),
			Subtitle: statsLine(res.Stats),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Equity", Scale: opts.Bool(true)}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "Price", Scale: opts.Bool(true)})

	line.SetXAxis(core.FormatDates(res.Dates))
	line.AddSeries("Equity", lineData(res.Equity),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))
	line.AddSeries("Price", lineData(res.Prices),
		charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorPrice, Width: 1}))
	if len(res.Predicted) > 0 {
		line.AddSeries("Predicted", lineData(res.Predicted),
			charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorPredicted, Width: 1, Type: "dashed"}))
	}
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

// FanChart plots the mean path over the first simulated paths.
func FanChart(symbol string, res *simulation.Result, summary *simulation.Summary) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts("Simulation")),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s Monte Carlo (%d paths)", symbol, len(res.Paths)),
			Subtitle: fmt.Sprintf("VaR95 %.2f | expected return %.2f%% | drift %.5f | volatility %.5f",
				summary.VaR95, summary.ExpectedReturn*100, res.Calibration.Drift, res.Calibration.Volatility),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)

	line.SetXAxis(core.FormatDates(res.Dates))
	for i, path := range summary.Paths[:min(fanPaths, len(summary.Paths))] {
		line.AddSeries(fmt.Sprintf("path %d", i+1), lineData(path),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorPath, Width: 1, Opacity: opts.Float(0.3)}))
	}
	line.AddSeries("Mean", lineData(res.Mean),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorMean, Width: 3}))
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

// HistogramChart plots the terminal price distribution.
func HistogramChart(symbol string, h simulation.Histogram) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts("Distribution")),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s terminal price distribution", symbol)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)

	labels := make([]string, len(h.Bins))
	data := make([]opts.BarData, len(h.Counts))
	for i := range h.Counts {
		labels[i] = fmt.Sprintf("%.2f", h.Bins[i])
		data[i] = opts.BarData{Value: h.Counts[i]}
	}
	bar.SetXAxis(labels)
	bar.AddSeries("Paths", data, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBar}))
	return bar
}

// RenderBacktest writes one equity chart per result.
func RenderBacktest(w io.Writer, results []*backtest.Result) error {
	if len(results) == 0 {
		return fmt.Errorf("no backtest results to render")
	}
	page := components.NewPage()
	page.PageTitle = "Backtest " + results[0].Symbol
	for _, res := range results {
		page.AddCharts(EquityChart(res))
	}
	return page.Render(w)
}

// RenderSimulation writes the fan and distribution charts.
func RenderSimulation(w io.Writer, symbol string, res *simulation.Result, summary *simulation.Summary) error {
	if res == nil || summary == nil {
		return fmt.Errorf("no simulation to render")
	}
	page := components.NewPage()
	page.PageTitle = "Simulation " + symbol
	page.AddCharts(FanChart(symbol, res, summary), HistogramChart(symbol, summary.Distribution))
	return page.Render(w)
}

func statsLine(s backtest.Stats) string {
	parts := []string{
		fmt.Sprintf("return %.2f%%", s.TotalReturn),
		fmt.Sprintf("max drawdown %.2f%%", s.MaxDrawdown),
		fmt.Sprintf("sharpe %.2f", s.SharpeRatio),
		fmt.Sprintf("trades %d", s.TotalTrades),
	}
	return strings.Join(parts, " | ")
}

func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		out[i] = opts.LineData{Value: round(v, 4)}
	}
	return out
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
