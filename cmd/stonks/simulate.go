package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/pipeline"
	"github.com/newthinker/stonks/internal/report"
	"github.com/newthinker/stonks/internal/simulation"
)

var (
	simDays       int
	simIterations int
	simMethod     string
	simDriftAdj   float64
	simVolAdj     float64
	simSeed       uint64
	simHTML       string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [symbol]",
	Short: "Run a GBM Monte Carlo simulation",
	Long: `Calibrate drift and volatility on the symbol's history and simulate future
price paths. Prints the risk summary; --html writes a fan chart and the
terminal price distribution.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVarP(&period, "period", "p", string(core.DefaultPeriod), "history used for calibration")
	f.StringVarP(&source, "source", "s", "", "pin a data source")
	f.StringVar(&apiKey, "api-key", "", "provider API key")
	f.IntVar(&simDays, "days", 30, "business days to simulate")
	f.IntVar(&simIterations, "iterations", 0, "number of paths (default from config)")
	f.StringVar(&simMethod, "method", simulation.MethodGBM, "simulation method")
	f.Float64Var(&simDriftAdj, "drift-adj", 0, "added to the daily drift")
	f.Float64Var(&simVolAdj, "volatility-adj", 1, "multiplier on the daily volatility")
	f.Uint64Var(&simSeed, "seed", 0, "random seed (0 picks one)")
	f.StringVar(&simHTML, "html", "", "write an HTML chart to this file")

	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	a, log, err := loadApp()
	defer log.Sync()
	if err != nil {
		return err
	}
	cfg := a.Config().Simulation

	p, err := core.ParsePeriod(period)
	if err != nil {
		return err
	}
	symbol := strings.ToUpper(args[0])
	if err := core.ValidateSymbol(symbol); err != nil {
		return err
	}
	iterations := simIterations
	if iterations <= 0 {
		iterations = cfg.Iterations
	}

	ctx := cmd.Context()
	series := a.Pipeline().GetHistory(ctx, pipeline.Query{
		Symbol: symbol,
		Period: p,
		Source: sourceOrAuto(source),
		APIKey: apiKey,
	})
	warnIfFallback(source, series.Source)

	res, err := a.Simulation().Run(ctx, series, simulation.Params{
		Days:          simDays,
		Iterations:    iterations,
		Method:        simMethod,
		DriftAdj:      simDriftAdj,
		VolatilityAdj: simVolAdj,
		Seed:          simSeed,
	})
	if err != nil {
		return err
	}
	last, _ := series.Last()
	summary, err := simulation.Summarize(res, last.Close, simulation.SummaryOptions{
		VisualPaths: cfg.VisualPaths,
		Bins:        cfg.Bins,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s via %s, %d paths over %d days (seed %d)\n", symbol, series.Source, iterations, simDays, res.Seed)
	fmt.Fprintf(out, "  drift:            %.6f/day\n", res.Calibration.Drift)
	fmt.Fprintf(out, "  volatility:       %.6f/day\n", res.Calibration.Volatility)
	fmt.Fprintf(out, "  current price:    %.2f\n", last.Close)
	fmt.Fprintf(out, "  mean terminal:    %.2f\n", summary.MeanTerminal)
	fmt.Fprintf(out, "  expected return:  %.2f%%\n", summary.ExpectedReturn*100)
	fmt.Fprintf(out, "  VaR (95%%):        %.2f\n", summary.VaR95)

	if simHTML == "" {
		return nil
	}
	f, err := os.Create(simHTML)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := report.RenderSimulation(f, symbol, res, summary); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", simHTML)
	return nil
}
