package collector

import (
	"slices"
	"strings"
	"sync"

	"github.com/newthinker/stonks/internal/core"
)

// Registry holds the adapters available to the pipeline, keyed by source
// name. Names are matched case-insensitively.
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]Collector
}

func NewRegistry() *Registry {
	return &Registry{
		collectors: make(map[string]Collector),
	}
}

// Register adds c, replacing any adapter already registered under its name.
func (r *Registry) Register(c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors[strings.ToLower(c.Name())] = c
}

func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[strings.ToLower(name)]
	return c, ok
}

// Lookup is Get with an UNKNOWN_SOURCE error for missing names.
func (r *Registry) Lookup(name string) (Collector, error) {
	if c, ok := r.Get(name); ok {
		return c, nil
	}
	return nil, core.Errorf(core.ErrUnknownSource, "unknown source %q (available: %s)",
		name, strings.Join(r.Names(), ", "))
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Providers describes every registered adapter in name order. Descriptors
// without their own lookback mapping get the standard one.
func (r *Registry) Providers() []core.Provider {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Provider, 0, len(names))
	for _, name := range names {
		if c, ok := r.collectors[name]; ok {
			p := c.Descriptor()
			if p.Lookback == nil {
				p.Lookback = core.LookbackDays()
			}
			out = append(out, p)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collectors)
}
