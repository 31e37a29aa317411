package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/newthinker/stonks/internal/cache"
	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/collector/mock"
	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/metrics"
)

type stubCollector struct {
	name  string
	key   bool
	err   error
	rows  int
	block chan struct{}
	calls atomic.Int32
	mu    sync.Mutex
	seen  []collector.Request
}

func (s *stubCollector) Name() string { return s.name }
func (s *stubCollector) Descriptor() core.Provider {
	return core.Provider{Name: s.name, RequiresKey: s.key}
}
func (s *stubCollector) HasKey() bool { return s.key }

func (s *stubCollector) FetchHistory(ctx context.Context, req collector.Request) (*core.Series, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.seen = append(s.seen, req)
	s.mu.Unlock()

	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	rows := s.rows
	if rows == 0 {
		rows = 10
	}
	bars := make([]core.Bar, rows)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = core.Bar{Date: start.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100 + float64(i)}
	}
	return core.NewSeries(req.Symbol, req.Period, s.name, bars), nil
}

func (s *stubCollector) requests() []collector.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]collector.Request(nil), s.seen...)
}

func failing(name string) *stubCollector {
	return &stubCollector{name: name, err: core.WrapError(core.ErrSourceUnavailable, errors.New(name+" down"))}
}

func newPipeline(t *testing.T, opts Options, collectors ...collector.Collector) *Pipeline {
	t.Helper()
	reg := collector.NewRegistry()
	reg.Register(mock.New(7))
	for _, c := range collectors {
		reg.Register(c)
	}
	return New(reg, opts)
}

func TestGetHistory_YahooFirst(t *testing.T) {
	yahoo := &stubCollector{name: collector.SourceYahoo}
	chart := &stubCollector{name: collector.SourceYahooChart}
	p := newPipeline(t, Options{}, yahoo, chart)

	s := p.GetHistory(context.Background(), Query{Symbol: "aapl", Period: core.Period1Y})

	assert.Equal(t, collector.SourceYahoo, s.Source)
	assert.Equal(t, core.Period1Y, s.Period)
	assert.Equal(t, "AAPL", s.Symbol)
	assert.EqualValues(t, 1, yahoo.calls.Load())
	assert.EqualValues(t, 0, chart.calls.Load())
}

func TestGetHistory_WidensShortPeriods(t *testing.T) {
	yahoo := &stubCollector{name: collector.SourceYahoo, rows: 120}
	p := newPipeline(t, Options{}, yahoo)

	s := p.GetHistory(context.Background(), Query{Symbol: "MSFT", Period: core.Period1Mo})

	reqs := yahoo.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, core.Period6Mo, reqs[0].Period)
	assert.Equal(t, core.Period1Mo, s.Period, "caller sees the requested period")
	assert.Equal(t, 120, s.Len(), "widened rows are kept")
}

func TestGetHistory_FallsThroughChain(t *testing.T) {
	yahoo := failing(collector.SourceYahoo)
	chart := &stubCollector{name: collector.SourceYahooChart}
	p := newPipeline(t, Options{}, yahoo, chart)

	s := p.GetHistory(context.Background(), Query{Symbol: "AAPL", Period: core.Period2Y})

	assert.Equal(t, collector.SourceYahooChart, s.Source)
	assert.EqualValues(t, 1, yahoo.calls.Load())
}

func TestGetHistory_PremiumFirstWhenKeyed(t *testing.T) {
	tests := []struct {
		name      string
		configKey bool
		queryKey  string
		wantFirst string
	}{
		{"configured key", true, "", collector.SourceAlphaVantage},
		{"caller key", false, "demo", collector.SourceAlphaVantage},
		{"no key", false, "", collector.SourceYahoo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			av := &stubCollector{name: collector.SourceAlphaVantage, key: tt.configKey}
			yahoo := &stubCollector{name: collector.SourceYahoo}
			p := newPipeline(t, Options{Premium: collector.SourceAlphaVantage}, av, yahoo)

			s := p.GetHistory(context.Background(), Query{Symbol: "IBM", Period: core.Period1Y, APIKey: tt.queryKey})
			assert.Equal(t, tt.wantFirst, s.Source)

			if tt.queryKey != "" {
				reqs := av.requests()
				require.Len(t, reqs, 1)
				assert.Equal(t, tt.queryKey, reqs[0].APIKey)
			}
		})
	}
}

func TestGetHistory_PinnedPremium(t *testing.T) {
	polygon := &stubCollector{name: collector.SourcePolygon}
	yahoo := &stubCollector{name: collector.SourceYahoo}
	p := newPipeline(t, Options{Premium: collector.SourceAlphaVantage}, polygon, yahoo)

	s := p.GetHistory(context.Background(), Query{Symbol: "IBM", Period: core.Period1Y, Source: "polygon"})
	assert.Equal(t, collector.SourcePolygon, s.Source)
}

func TestGetHistory_KeyNotLeakedToFreeSources(t *testing.T) {
	av := failing(collector.SourceAlphaVantage)
	yahoo := &stubCollector{name: collector.SourceYahoo}
	p := newPipeline(t, Options{Premium: collector.SourceAlphaVantage}, av, yahoo)

	p.GetHistory(context.Background(), Query{Symbol: "IBM", Period: core.Period1Y, APIKey: "secret"})

	reqs := yahoo.requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].APIKey)
}

func TestGetHistory_ExplicitMock(t *testing.T) {
	yahoo := &stubCollector{name: collector.SourceYahoo}
	p := newPipeline(t, Options{}, yahoo)

	s := p.GetHistory(context.Background(), Query{Symbol: "AAPL", Period: core.Period3Mo, Source: "mock"})

	assert.Equal(t, collector.SourceMock, s.Source)
	assert.Equal(t, core.Period3Mo.Lookback(), s.Len(), "mock is not widened")
	assert.EqualValues(t, 0, yahoo.calls.Load())
}

func TestGetHistory_AllFailServesMock(t *testing.T) {
	obs, logs := observer.New(zapcore.WarnLevel)
	reg := metrics.NewRegistry()
	p := newPipeline(t, Options{Logger: zap.New(obs), Metrics: reg, Cache: cache.NewTTL(10, time.Minute)},
		failing(collector.SourceYahoo), failing(collector.SourceYahooChart))

	s := p.GetHistory(context.Background(), Query{Symbol: "AAPL", Period: core.Period1Y})

	require.NotNil(t, s)
	assert.Equal(t, collector.SourceMock, s.Source)
	assert.Equal(t, core.Period1Y.Lookback(), s.Len())
	assert.Equal(t, 2, logs.FilterMessage("history source failed").Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestGetHistory_FallbackNotCached(t *testing.T) {
	yahoo := failing(collector.SourceYahoo)
	p := newPipeline(t, Options{Cache: cache.NewTTL(10, time.Minute)}, yahoo)

	p.GetHistory(context.Background(), Query{Symbol: "AAPL", Period: core.Period1Y})
	p.GetHistory(context.Background(), Query{Symbol: "AAPL", Period: core.Period1Y})

	assert.EqualValues(t, 2, yahoo.calls.Load())
}

func TestGetHistory_CachesSuccess(t *testing.T) {
	yahoo := &stubCollector{name: collector.SourceYahoo}
	p := newPipeline(t, Options{Cache: cache.NewTTL(10, time.Minute)}, yahoo)

	first := p.GetHistory(context.Background(), Query{Symbol: "aapl", Period: core.Period1Y})
	second := p.GetHistory(context.Background(), Query{Symbol: "AAPL", Period: core.Period1Y, Source: "auto"})

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, yahoo.calls.Load())

	// a different period is a different key
	p.GetHistory(context.Background(), Query{Symbol: "AAPL", Period: core.Period2Y})
	assert.EqualValues(t, 2, yahoo.calls.Load())
}

func TestGetHistory_SharesConcurrentFetch(t *testing.T) {
	yahoo := &stubCollector{name: collector.SourceYahoo, block: make(chan struct{})}
	p := newPipeline(t, Options{Cache: cache.NewTTL(10, time.Minute)}, yahoo)

	const callers = 8
	results := make([]*core.Series, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.GetHistory(context.Background(), Query{Symbol: "AAPL", Period: core.Period1Y})
		}(i)
	}

	require.Eventually(t, func() bool { return yahoo.calls.Load() == 1 }, time.Second, time.Millisecond)
	// give the remaining callers time to join the in-flight fetch
	time.Sleep(20 * time.Millisecond)
	close(yahoo.block)
	wg.Wait()

	assert.EqualValues(t, 1, yahoo.calls.Load())
	for _, s := range results {
		require.NotNil(t, s)
		assert.Equal(t, collector.SourceYahoo, s.Source)
	}
}

func TestGetHistory_CancelledCaller(t *testing.T) {
	yahoo := &stubCollector{name: collector.SourceYahoo, block: make(chan struct{})}
	defer close(yahoo.block)
	p := newPipeline(t, Options{}, yahoo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := p.GetHistory(ctx, Query{Symbol: "AAPL", Period: core.Period1Y})
	require.NotNil(t, s)
	assert.Positive(t, s.Len())
}

func TestNew_RegistersMock(t *testing.T) {
	reg := collector.NewRegistry()
	p := New(reg, Options{})

	assert.True(t, p.HasSource(collector.SourceMock))
	assert.True(t, p.HasSource(""))
	assert.True(t, p.HasSource("yahoo"))
	assert.False(t, p.HasSource("bloomberg"))
}

func TestSources(t *testing.T) {
	p := newPipeline(t, Options{},
		&stubCollector{name: collector.SourceYahoo},
		&stubCollector{name: collector.SourceAlphaVantage, key: true})

	var names []string
	for _, d := range p.Sources() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{collector.SourceAlphaVantage, collector.SourceMock, collector.SourceYahoo}, names)
}
