package backtest

import (
	"time"

	"github.com/newthinker/stonks/internal/core"
)

// Modes
const (
	ModeStrategy = "strategy"
	ModeModel    = "model"
)

// Defaults
const (
	DefaultInitialCapital = 10000.0
	DefaultCommission     = 0.001
	DefaultThreshold      = 0.002
)

// Config holds the trading parameters shared by both modes.
type Config struct {
	InitialCapital float64
	Commission     float64
	// Threshold is the expected gain a model forecast must exceed to go long.
	Threshold float64
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return Config{
		InitialCapital: DefaultInitialCapital,
		Commission:     DefaultCommission,
		Threshold:      DefaultThreshold,
	}
}

// Validate checks the trading parameters.
func (c Config) Validate() error {
	if !(c.InitialCapital > 0) {
		return core.Errorf(core.ErrInvalidInput, "initial capital must be positive, got %v", c.InitialCapital)
	}
	if c.Commission < 0 || c.Commission >= 1 {
		return core.Errorf(core.ErrInvalidInput, "commission must be in [0, 1), got %v", c.Commission)
	}
	if c.Threshold < 0 {
		return core.Errorf(core.ErrInvalidInput, "threshold must not be negative, got %v", c.Threshold)
	}
	return nil
}

// Step is one row fed to the mechanics simulator. A transition into Desired
// executes at ExecPrice; equity is marked at MarkPrice.
type Step struct {
	Date      time.Time
	Desired   core.Position
	ExecPrice float64
	MarkPrice float64
}

// Trade represents a simulated round trip from entry to exit
type Trade struct {
	EntryDate  time.Time
	ExitDate   time.Time
	EntryPrice float64
	ExitPrice  float64
	Shares     float64
	// Return is the net fractional return including commissions.
	Return float64
	// Open marks a position still held at the end; its exit is the last mark.
	Open bool
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.Return > 0
}

// IsClosed returns true if the trade has an exit
func (t Trade) IsClosed() bool {
	return !t.Open
}

// Stats holds performance statistics
type Stats struct {
	TotalReturn      float64 // Percent
	MaxDrawdown      float64 // Percent, zero or negative
	SharpeRatio      float64 // Annualized
	FinalValue       float64
	LiquidationValue float64 // FinalValue net of the commission to exit
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64 // Percentage of profitable closed trades
}

// Ledger is the output of the mechanics simulator.
type Ledger struct {
	Equity    []float64
	Cash      []float64
	Shares    []float64
	Positions []core.Position
	Trades    []Trade
}

// Result holds the complete backtest output
type Result struct {
	Mode      string
	Name      string // strategy or model name
	Symbol    string
	Dates     []time.Time
	Prices    []float64
	Signals   []core.Signal
	Equity    []float64
	Positions []core.Position
	Trades    []Trade
	Stats     Stats

	// Model mode only
	Actual       []float64
	Predicted    []float64
	ModelMetrics map[string]float64
}
