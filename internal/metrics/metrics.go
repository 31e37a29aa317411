package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Source attempt outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Acquisition metrics
	sourceAttempts *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	mockFallbacks  prometheus.Counter

	// Engine metrics
	simulationsTotal   *prometheus.CounterVec
	simulationDuration prometheus.Histogram
	backtestsTotal     *prometheus.CounterVec
	backtestDuration   *prometheus.HistogramVec
	jobsActive         *prometheus.GaugeVec
	watchlistSymbols   prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.sourceAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stonks_source_attempts_total",
			Help: "History fetch attempts by source and outcome",
		},
		[]string{"source", "outcome"},
	)
	r.sourceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stonks_source_duration_seconds",
			Help:    "History fetch duration by source",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)
	r.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stonks_cache_lookups_total",
			Help: "History cache lookups by result",
		},
		[]string{"result"},
	)
	r.mockFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stonks_mock_fallbacks_total",
			Help: "Requests served synthetic data after every source failed",
		},
	)
	r.simulationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stonks_simulations_total",
			Help: "Total number of Monte Carlo simulations",
		},
		[]string{"status"},
	)
	r.simulationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stonks_simulation_duration_seconds",
			Help:    "Monte Carlo simulation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stonks_backtests_total",
			Help: "Total number of backtests",
		},
		[]string{"mode", "status"},
	)
	r.backtestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stonks_backtest_duration_seconds",
			Help:    "Backtest duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"mode"},
	)
	r.jobsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stonks_jobs_active",
			Help: "Number of active jobs",
		},
		[]string{"type"},
	)
	r.watchlistSymbols = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stonks_watchlist_symbols",
			Help: "Number of symbols in watchlist",
		},
	)

	reg.MustRegister(r.sourceAttempts)
	reg.MustRegister(r.sourceDuration)
	reg.MustRegister(r.cacheLookups)
	reg.MustRegister(r.mockFallbacks)
	reg.MustRegister(r.simulationsTotal)
	reg.MustRegister(r.simulationDuration)
	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.jobsActive)
	reg.MustRegister(r.watchlistSymbols)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	if r == nil {
		return
	}
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	if r == nil {
		return
	}
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	if r == nil {
		return
	}
	r.httpRequestsInFlight.Dec()
}

// RecordSourceAttempt records one adapter call. A nil registry is a no-op so
// components can run without metrics.
func (r *Registry) RecordSourceAttempt(source string, ok bool, duration float64) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailure
	}
	r.sourceAttempts.WithLabelValues(source, outcome).Inc()
	r.sourceDuration.WithLabelValues(source).Observe(duration)
}

// RecordCacheLookup records a cache hit or miss.
func (r *Registry) RecordCacheLookup(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		r.cacheLookups.WithLabelValues("miss").Inc()
	}
}

// RecordMockFallback records a request served by the last-resort generator.
func (r *Registry) RecordMockFallback() {
	if r == nil {
		return
	}
	r.mockFallbacks.Inc()
}

// RecordSimulation records a simulation run.
func (r *Registry) RecordSimulation(status string, duration float64) {
	if r == nil {
		return
	}
	r.simulationsTotal.WithLabelValues(status).Inc()
	r.simulationDuration.Observe(duration)
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(mode, status string, duration float64) {
	if r == nil {
		return
	}
	r.backtestsTotal.WithLabelValues(mode, status).Inc()
	r.backtestDuration.WithLabelValues(mode).Observe(duration)
}

// SetJobsActive sets the number of active jobs of a type.
func (r *Registry) SetJobsActive(jobType string, count int) {
	if r == nil {
		return
	}
	r.jobsActive.WithLabelValues(jobType).Set(float64(count))
}

// SetWatchlistSize sets the watchlist size.
func (r *Registry) SetWatchlistSize(size int) {
	if r == nil {
		return
	}
	r.watchlistSymbols.Set(float64(size))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
