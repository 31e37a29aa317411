// Package pipeline resolves history requests against an ordered chain of
// collectors, falling back to synthetic data when every source fails.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/newthinker/stonks/internal/cache"
	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/collector/mock"
	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/metrics"
)

// SourceAuto lets the pipeline choose the chain.
const SourceAuto = "auto"

// minFetchPeriod is the narrowest window fetched from network sources, so
// 50-row indicator windows are defined.
const minFetchPeriod = core.Period6Mo

// Query is a history request.
type Query struct {
	Symbol string
	Period core.Period
	// Source pins a collector by name. Empty, "auto" and "yahoo" mean the
	// default chain.
	Source string
	// APIKey is passed to the premium collector only.
	APIKey string
}

// Options configures a Pipeline.
type Options struct {
	// Premium names the keyed collector tried first when a key is known.
	Premium string
	Cache   cache.Cache
	Metrics *metrics.Registry
	Logger  *zap.Logger
}

// Pipeline is the acquisition entry point. It is safe for concurrent use.
type Pipeline struct {
	registry *collector.Registry
	premium  string
	cache    cache.Cache
	metrics  *metrics.Registry
	logger   *zap.Logger
	group    singleflight.Group
}

type link struct {
	collector collector.Collector
	period    core.Period
	apiKey    string
}

type outcome struct {
	series   *core.Series
	fallback bool
}

// New creates a pipeline over the registry. A mock collector is registered
// when the registry has none, since it is the last resort of every chain.
func New(registry *collector.Registry, opts Options) *Pipeline {
	if _, ok := registry.Get(collector.SourceMock); !ok {
		registry.Register(mock.New(0))
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Pipeline{
		registry: registry,
		premium:  opts.Premium,
		cache:    opts.Cache,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// GetHistory returns history for the query. It never fails: when every
// collector in the chain errors, a synthetic series is returned and the
// failures are only logged. The returned series must not be modified.
func (p *Pipeline) GetHistory(ctx context.Context, q Query) *core.Series {
	q = p.normalize(q)
	key := p.cacheKey(q)

	if s, ok := p.cache.Get(key); ok {
		p.metrics.RecordCacheLookup(true)
		return s
	}
	p.metrics.RecordCacheLookup(false)

	// The shared fetch outlives any single caller; adapters carry their own
	// timeouts and the result lands in the cache for the next request.
	shared := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (any, error) {
		out := p.resolve(shared, q)
		if !out.fallback {
			p.cache.Set(key, out.series)
		}
		return out.series, nil
	})

	select {
	case res := <-ch:
		return res.Val.(*core.Series)
	case <-ctx.Done():
		p.logger.Warn("history request abandoned",
			zap.String("symbol", q.Symbol),
			zap.String("period", string(q.Period)),
			zap.Error(ctx.Err()),
		)
		return p.lastResort(shared, q)
	}
}

// Purge drops expired cache entries.
func (p *Pipeline) Purge() int {
	return p.cache.Purge()
}

// Sources lists the registered collectors.
func (p *Pipeline) Sources() []core.Provider {
	return p.registry.Providers()
}

// HasSource reports whether name can be pinned in a query.
func (p *Pipeline) HasSource(name string) bool {
	if isAuto(name) {
		return true
	}
	_, ok := p.registry.Get(name)
	return ok
}

func (p *Pipeline) normalize(q Query) Query {
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	if !q.Period.Valid() {
		q.Period = core.DefaultPeriod
	}
	q.Source = strings.ToLower(strings.TrimSpace(q.Source))
	if isAuto(q.Source) {
		q.Source = SourceAuto
	}
	return q
}

func (p *Pipeline) cacheKey(q Query) string {
	key := "nokey"
	if p.keyAvailable(q) {
		key = "key"
	}
	return strings.Join([]string{q.Symbol, string(q.Period), q.Source, key}, "|")
}

// keyAvailable reports whether the premium collector the query would use
// has a key, either from the caller or from its own configuration.
func (p *Pipeline) keyAvailable(q Query) bool {
	if q.APIKey != "" {
		return true
	}
	name := p.premium
	if isPremium(q.Source) {
		name = q.Source
	}
	c, ok := p.registry.Get(name)
	if !ok {
		return false
	}
	keyed, ok := c.(collector.KeyedCollector)
	return ok && keyed.HasKey()
}

// chain builds the ordered collector list for q, excluding the final mock.
func (p *Pipeline) chain(q Query) []link {
	if q.Source == collector.SourceMock {
		return p.links(q.Period, "", collector.SourceMock)
	}

	fetchPeriod := q.Period
	if fetchPeriod.Lookback() < minFetchPeriod.Lookback() {
		fetchPeriod = minFetchPeriod
	}

	var out []link
	switch {
	case isPremium(q.Source):
		out = append(out, p.links(fetchPeriod, q.APIKey, q.Source)...)
	case q.Source == SourceAuto && p.premium != "" && p.keyAvailable(q):
		out = append(out, p.links(fetchPeriod, q.APIKey, p.premium)...)
	case q.Source == collector.SourceSnapshot:
		out = append(out, p.links(q.Period, "", collector.SourceSnapshot)...)
	case q.Source == collector.SourceYahooChart:
		out = append(out, p.links(fetchPeriod, "", collector.SourceYahooChart)...)
	case q.Source != SourceAuto:
		p.logger.Warn("unknown source requested, using default chain", zap.String("source", q.Source))
	}

	for _, name := range []string{collector.SourceYahoo, collector.SourceYahooChart} {
		if q.Source == name {
			continue
		}
		out = append(out, p.links(fetchPeriod, "", name)...)
	}
	return out
}

func (p *Pipeline) links(period core.Period, apiKey string, names ...string) []link {
	var out []link
	for _, name := range names {
		if c, ok := p.registry.Get(name); ok {
			out = append(out, link{collector: c, period: period, apiKey: apiKey})
		}
	}
	return out
}

func (p *Pipeline) resolve(ctx context.Context, q Query) outcome {
	for _, l := range p.chain(q) {
		name := l.collector.Name()
		start := time.Now()
		s, err := l.collector.FetchHistory(ctx, collector.Request{
			Symbol: q.Symbol,
			Period: l.period,
			APIKey: l.apiKey,
		})
		if err == nil && s.Len() == 0 {
			err = collector.NoData(name, q.Symbol, l.period)
		}
		p.metrics.RecordSourceAttempt(name, err == nil, time.Since(start).Seconds())

		if err != nil {
			p.logger.Warn("history source failed",
				zap.String("source", name),
				zap.String("symbol", q.Symbol),
				zap.String("period", string(l.period)),
				zap.Bool("recoverable", core.IsRecoverable(err)),
				zap.Error(err),
			)
			continue
		}

		// Widened fetches keep their extra rows; the caller sees its period.
		out := *s
		out.Period = q.Period
		out.Source = name
		return outcome{series: &out}
	}

	if q.Source == collector.SourceMock {
		// explicit mock request that itself failed
		return outcome{series: p.lastResort(ctx, q), fallback: true}
	}

	p.logger.Error("all history sources failed, serving synthetic data",
		zap.String("symbol", q.Symbol),
		zap.String("period", string(q.Period)),
		zap.String("source", q.Source),
	)
	p.metrics.RecordMockFallback()
	return outcome{series: p.lastResort(ctx, q), fallback: true}
}

// lastResort produces mock data, falling back to a fresh generator if the
// registered mock errors.
func (p *Pipeline) lastResort(ctx context.Context, q Query) *core.Series {
	req := collector.Request{Symbol: q.Symbol, Period: q.Period}
	ctx = context.WithoutCancel(ctx)

	if c, ok := p.registry.Get(collector.SourceMock); ok {
		if s, err := c.FetchHistory(ctx, req); err == nil && s.Len() > 0 {
			return s
		}
	}
	s, _ := mock.New(0).FetchHistory(ctx, req)
	return s
}

func isAuto(source string) bool {
	switch strings.ToLower(source) {
	case "", SourceAuto, collector.SourceYahoo:
		return true
	}
	return false
}

func isPremium(source string) bool {
	switch source {
	case collector.SourceAlphaVantage, collector.SourceFinnhub, collector.SourcePolygon:
		return true
	}
	return false
}
