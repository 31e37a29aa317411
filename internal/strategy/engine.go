package strategy

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/newthinker/stonks/internal/core"
)

// Engine manages and runs strategies
type Engine struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	logger     *zap.Logger
}

// NewEngine creates a new strategy engine
func NewEngine(logger ...*zap.Logger) *Engine {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Engine{
		strategies: make(map[string]Strategy),
		logger:     l,
	}
}

// Register adds a strategy to the engine
func (e *Engine) Register(s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[s.Name()] = s
}

// Get retrieves a strategy by name
func (e *Engine) Get(name string) (Strategy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.strategies[name]
	return s, ok
}

// Lookup is Get with an UNKNOWN_STRATEGY error.
func (e *Engine) Lookup(name string) (Strategy, error) {
	s, ok := e.Get(name)
	if !ok {
		return nil, core.Errorf(core.ErrUnknownStrategy, "%q", name)
	}
	return s, nil
}

// GetAll returns all registered strategies ordered by name
func (e *Engine) GetAll() []Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]Strategy, 0, len(e.strategies))
	for _, s := range e.strategies {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Names returns the registered strategy names in order.
func (e *Engine) Names() []string {
	all := e.GetAll()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name()
	}
	return names
}

// Signals runs one named strategy over the series.
func (e *Engine) Signals(name string, series *core.Series) ([]core.Signal, error) {
	s, err := e.Lookup(name)
	if err != nil {
		return nil, err
	}
	signals, err := s.Signals(series)
	if err != nil {
		return nil, err
	}
	if len(signals) != series.Len() {
		return nil, core.Errorf(core.ErrComputation, "strategy %s produced %d signals for %d rows", name, len(signals), series.Len())
	}
	return signals, nil
}

// Analyze runs the named strategies, or every strategy when names is empty.
// Failing strategies are logged and left out of the result.
func (e *Engine) Analyze(ctx context.Context, series *core.Series, names ...string) (map[string][]core.Signal, error) {
	if len(names) == 0 {
		names = e.Names()
	}

	out := make(map[string][]core.Signal, len(names))
	for _, name := range names {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		signals, err := e.Signals(name, series)
		if err != nil {
			e.logger.Warn("strategy analysis failed",
				zap.String("strategy", name),
				zap.String("symbol", series.Symbol),
				zap.Error(err),
			)
			continue
		}
		out[name] = signals
	}

	return out, nil
}
