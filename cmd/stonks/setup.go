package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/newthinker/stonks/internal/app"
	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/config"
	"github.com/newthinker/stonks/internal/logger"
	"github.com/newthinker/stonks/internal/pipeline"
)

// shared acquisition flags
var (
	period string
	source string
	apiKey string
)

// loadApp reads and validates the config, then builds the app.
func loadApp() (*app.App, *zap.Logger, error) {
	log := logger.Must(debug)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, log, fmt.Errorf("loading config: %w", err)
	}
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
	}
	if err := cfg.Validate(); err != nil {
		return nil, log, fmt.Errorf("config validation failed: %w", err)
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return nil, log, err
	}
	return a, log, nil
}

// warnIfFallback tells the user when synthetic data stood in for a provider.
func warnIfFallback(requested, served string) {
	if served == collector.SourceMock && requested != collector.SourceMock {
		fmt.Fprintln(os.Stderr, "warning: every provider failed, showing synthetic data")
	}
}

func sourceOrAuto(s string) string {
	if s == "" {
		return pipeline.SourceAuto
	}
	return s
}
