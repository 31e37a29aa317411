package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/stonks/internal/backtest"
	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/report"
)

var (
	backtestPeriod     string
	backtestModel      string
	backtestCapital    float64
	backtestCommission float64
	backtestThreshold  float64
	backtestHTML       string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [symbol] [strategy]",
	Short: "Backtest a strategy or price model",
	Long: `Replay a rule strategy (SMA_Crossover, RSI_Strategy, Macd_Strategy,
BB_Squeeze) over the symbol's history, or omit the strategy to backtest a
price model selected with --model. Long/flat only.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBacktest,
}

func init() {
	f := backtestCmd.Flags()
	f.StringVarP(&backtestPeriod, "period", "p", "", "history to replay (default from config)")
	f.StringVarP(&source, "source", "s", "", "pin a data source")
	f.StringVar(&apiKey, "api-key", "", "provider API key")
	f.StringVar(&backtestModel, "model", "", "price model when no strategy is given (monte_carlo, all)")
	f.Float64Var(&backtestCapital, "capital", 0, "initial capital (default from config)")
	f.Float64Var(&backtestCommission, "commission", -1, "commission fraction per trade (default from config)")
	f.Float64Var(&backtestThreshold, "threshold", -1, "model signal threshold (default from config)")
	f.StringVar(&backtestHTML, "html", "", "write an HTML equity chart to this file")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	a, log, err := loadApp()
	defer log.Sync()
	if err != nil {
		return err
	}

	var p core.Period
	if backtestPeriod != "" {
		if p, err = core.ParsePeriod(backtestPeriod); err != nil {
			return err
		}
	}

	cfg := a.BacktestConfig()
	if backtestCapital > 0 {
		cfg.InitialCapital = backtestCapital
	}
	if backtestCommission >= 0 {
		cfg.Commission = backtestCommission
	}
	if backtestThreshold >= 0 {
		cfg.Threshold = backtestThreshold
	}

	req := backtest.Request{
		Symbol: args[0],
		Period: p,
		Source: sourceOrAuto(source),
		APIKey: apiKey,
		Model:  backtestModel,
		Config: cfg,
	}
	if len(args) == 2 {
		req.Strategy = args[1]
	}

	results, err := a.Backtester().Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== stonks backtest ===")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "name\tmode\trows\treturn %\tfinal\tsharpe\tmax dd %\ttrades\twin %")
	for _, res := range results {
		s := res.Stats
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%.1f\n",
			res.Name, res.Mode, len(res.Equity), s.TotalReturn, s.FinalValue,
			s.SharpeRatio, s.MaxDrawdown, s.TotalTrades, s.WinRate)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if backtestHTML == "" {
		return nil
	}
	f, err := os.Create(backtestHTML)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := report.RenderBacktest(f, results); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", backtestHTML)
	return nil
}
