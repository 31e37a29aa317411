// Package predictor defines the contract for price models and a registry to
// select them by name.
package predictor

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/simulation"
)

// Model names.
const (
	RandomForest     = "random_forest"
	SVR              = "svr"
	GradientBoosting = "gradient_boosting"
	MonteCarlo       = "monte_carlo"

	// All selects every known model.
	All = "all"
	// LSTM is accepted as an alias for RandomForest.
	LSTM = "lstm"
)

// Known lists the selectable models in the order "all" runs them.
var Known = []string{RandomForest, SVR, GradientBoosting, MonteCarlo}

// Training is what a fit produced. Loss has one entry per epoch for models
// that report it.
type Training struct {
	Loss   []float64
	Scaled []float64
	Params map[string]float64
}

// FinalLoss returns the last epoch's loss, or 0.
func (t *Training) FinalLoss() float64 {
	if t == nil || len(t.Loss) == 0 {
		return 0
	}
	return t.Loss[len(t.Loss)-1]
}

// Forecast is a point forecast for the business days after the series.
type Forecast struct {
	Dates  []time.Time
	Prices []float64
}

// Evaluation is a walk-forward evaluation. Predicted[i] forecasts Actual[i]
// using only rows before it.
type Evaluation struct {
	Dates     []time.Time
	Actual    []float64
	Predicted []float64
	Metrics   map[string]float64
}

// Predictor is a price model.
type Predictor interface {
	Name() string
	Train(ctx context.Context, series *core.Series, epochs int) (*Training, error)
	PredictFuture(ctx context.Context, series *core.Series, days int) (*Forecast, error)
	PredictPaths(ctx context.Context, series *core.Series, params simulation.Params) (*simulation.Result, error)
	Backtest(ctx context.Context, series *core.Series) (*Evaluation, error)
}

// Registry holds the available predictors.
type Registry struct {
	mu         sync.RWMutex
	predictors map[string]Predictor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{predictors: make(map[string]Predictor)}
}

// Register adds a predictor, replacing any with the same name.
func (r *Registry) Register(p Predictor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predictors[p.Name()] = p
}

// Get returns the named predictor.
func (r *Registry) Get(name string) (Predictor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predictors[name]
	if !ok {
		return nil, core.Errorf(core.ErrUnknownPredictor, "%q", name)
	}
	return p, nil
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.predictors))
	for name := range r.predictors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve expands a model selection into predictor names. "all" yields the
// registered subset of Known; an empty selection means MonteCarlo.
func (r *Registry) Resolve(model string) ([]string, error) {
	model = strings.ToLower(strings.TrimSpace(model))
	switch model {
	case "":
		model = MonteCarlo
	case LSTM:
		model = RandomForest
	case All:
		var names []string
		for _, name := range Known {
			if _, err := r.Get(name); err == nil {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return nil, core.Errorf(core.ErrUnknownPredictor, "no predictors registered")
		}
		return names, nil
	}

	if _, err := r.Get(model); err != nil {
		return nil, err
	}
	return []string{model}, nil
}
