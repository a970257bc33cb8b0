package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goliatone/go-fuel-stations/cache"
	"github.com/goliatone/go-fuel-stations/events"
)

// Metrics provides observability for the cache, the event bus and the HTTP
// API.
type Metrics struct {
	CacheLookups    *prometheus.CounterVec
	RemovedKeys     *prometheus.CounterVec
	CacheErrors     *prometheus.CounterVec
	HandlerRuns     *prometheus.CounterVec
	HandlerDuration *prometheus.HistogramVec
	RequestDuration *prometheus.HistogramVec
}

var (
	_ cache.MetricsRecorder = (*Metrics)(nil)
	_ events.Observer       = (*Metrics)(nil)
)

// New registers every metric with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelstations_cache_lookups_total",
			Help: "Cache lookups by result (hit, miss, bypass, decode_error)",
		}, []string{"result"}),
		RemovedKeys: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelstations_cache_removed_keys_total",
			Help: "Cache entries removed by invalidation",
		}, []string{"op"}),
		CacheErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelstations_cache_errors_total",
			Help: "Cache store failures by operation",
		}, []string{"op"}),
		HandlerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelstations_event_handler_runs_total",
			Help: "Event handler invocations by outcome",
		}, []string{"event", "handler", "outcome"}),
		HandlerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fuelstations_event_handler_duration_seconds",
			Help:    "Duration of event handler invocations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"event", "handler"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fuelstations_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and status",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"route", "status"}),
	}
}

// CacheLookup implements cache.MetricsRecorder.
func (m *Metrics) CacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}

// CacheRemoved implements cache.MetricsRecorder.
func (m *Metrics) CacheRemoved(op string, n int) {
	m.RemovedKeys.WithLabelValues(op).Add(float64(n))
}

// CacheError implements cache.MetricsRecorder.
func (m *Metrics) CacheError(op string) {
	m.CacheErrors.WithLabelValues(op).Inc()
}

// HandlerCompleted implements events.Observer.
func (m *Metrics) HandlerCompleted(event, handler string, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.HandlerRuns.WithLabelValues(event, handler, outcome).Inc()
	m.HandlerDuration.WithLabelValues(event, handler).Observe(took.Seconds())
}

// ObserveRequest records one HTTP request.
// Call with time.Now() at the start of the request.
func (m *Metrics) ObserveRequest(route, status string, start time.Time) {
	m.RequestDuration.WithLabelValues(route, status).Observe(time.Since(start).Seconds())
}
