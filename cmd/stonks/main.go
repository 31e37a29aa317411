package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "stonks",
	Short: "stonks - market data, Monte Carlo forecasts and backtests",
	Long: `stonks fetches daily price history from free and keyed providers with
automatic fallback, runs GBM Monte Carlo simulations and backtests
indicator strategies or price models. Run "stonks serve" for the HTTP API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
