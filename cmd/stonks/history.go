package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/indicator"
	"github.com/newthinker/stonks/internal/pipeline"
)

var (
	historySave bool
	historyJSON bool
	historyRows int
)

var historyCmd = &cobra.Command{
	Use:   "history [symbol]",
	Short: "Fetch daily history for a symbol",
	Long: `Fetch daily bars through the provider chain and print the most recent rows
with their indicators. --save stores the full series in the archive so the
snapshot source can serve it offline.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&period, "period", "p", string(core.DefaultPeriod), "lookback period (1mo, 3mo, 6mo, 1y, 2y, 5y, max)")
	historyCmd.Flags().StringVarP(&source, "source", "s", "", "pin a source (yahoo, yahoochart, alpha_vantage, finnhub, polygon, snapshot, mock)")
	historyCmd.Flags().StringVar(&apiKey, "api-key", "", "provider API key")
	historyCmd.Flags().BoolVar(&historySave, "save", false, "save the series to the archive")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print every row as JSON")
	historyCmd.Flags().IntVarP(&historyRows, "rows", "n", 10, "number of recent rows to print")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	raw := a.Pipeline().GetHistory(ctx, pipeline.Query{
		Symbol: symbol,
		Period: p,
		Source: sourceOrAuto(source),
		APIKey: apiKey,
	})
	warnIfFallback(source, raw.Source)

	if historySave {
		if err := a.Archive().Save(ctx, raw); err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		fmt.Fprintf(os.Stderr, "saved %d rows of %s/%s\n", raw.Len(), symbol, p)
	}

	if historyJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(raw.Bars)
	}

	series, err := indicator.Enrich(raw)
	if err != nil {
		return err
	}
	tail := series.Tail(historyRows)
	ind := tail.Indicators

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s via %s (%d rows)\n\n", series.Symbol, p, series.Source, series.Len())
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "date\tclose\tvolume\tsma20\tsma50\trsi\tmacd\t")
	for i, b := range tail.Bars {
		fmt.Fprintf(w, "%s\t%.2f\t%.0f\t%.2f\t%.2f\t%.1f\t%.3f\t\n",
			b.Date.Format(core.DateLayout), b.Close, b.Volume,
			ind.SMA20[i], ind.SMA50[i], ind.RSI[i], ind.MACD[i])
	}
	return w.Flush()
}
