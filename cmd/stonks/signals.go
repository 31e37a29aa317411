package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/indicator"
	"github.com/newthinker/stonks/internal/pipeline"
)

var signalsCmd = &cobra.Command{
	Use:   "signals [symbol] [strategy...]",
	Short: "Show the latest signal of each rule strategy",
	Long: `Evaluate rule strategies over the symbol's history and print the signal on
the most recent row. Without strategy names every registered rule runs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSignals,
}

func init() {
	signalsCmd.Flags().StringVarP(&period, "period", "p", string(core.DefaultPeriod), "lookback period")
	signalsCmd.Flags().StringVarP(&source, "source", "s", "", "pin a source")
	signalsCmd.Flags().StringVar(&apiKey, "api-key", "", "provider API key")

	rootCmd.AddCommand(signalsCmd)
}

func runSignals(cmd *cobra.Command, args []string) error {
	a, log, err := loadApp()
	defer log.Sync()
	if err != nil {
		return err
	}

	p, err := core.ParsePeriod(period)
	if err != nil {
		return err
	}
	symbol := strings.ToUpper(args[0])
	if err := core.ValidateSymbol(symbol); err != nil {
		return err
	}
	names := args[1:]
	for _, name := range names {
		if _, err := a.Strategies().Lookup(name); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	raw := a.Pipeline().GetHistory(ctx, pipeline.Query{
		Symbol: symbol,
		Period: p,
		Source: sourceOrAuto(source),
		APIKey: apiKey,
	})
	warnIfFallback(source, raw.Source)

	series, err := indicator.Enrich(raw)
	if err != nil {
		return err
	}
	results, err := a.Strategies().Analyze(ctx, series, names...)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		names = a.Strategies().Names()
	}

	last := series.Len() - 1
	fmt.Fprintf(cmd.OutOrStdout(), "%s as of %s via %s\n\n", symbol, series.Bars[last].Date.Format(core.DateLayout), series.Source)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "strategy\tsignal")
	for _, name := range names {
		signals, ok := results[name]
		if !ok {
			fmt.Fprintf(w, "%s\terror\n", name)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", name, signals[last])
	}
	return w.Flush()
}
