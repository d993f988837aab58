// Package metrics defines the Prometheus collectors of the matcher service
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kuanb/gosm-matcher/markov"
	"kuanb/gosm-matcher/routing"
)

// Metrics holds all Prometheus collectors of the service.
type Metrics struct {
	SamplesTotal        prometheus.Counter
	BreaksTotal         *prometheus.CounterVec
	CandidatesPerSample prometheus.Histogram
	SampleLatency       prometheus.Histogram
	MatchLatency        prometheus.Histogram
	ActiveSessions      prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

var _ routing.Observer = (*Metrics)(nil)

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		SamplesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gosm_samples_total",
				Help: "Total number of samples pushed through the filter.",
			},
		),
		BreaksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gosm_hmm_breaks_total",
				Help: "Total number of HMM breaks by kind.",
			},
			[]string{"kind"},
		),
		CandidatesPerSample: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gosm_candidates_per_sample",
				Help:    "Number of filtered candidates per sample.",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
			},
		),
		SampleLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gosm_sample_latency_seconds",
				Help:    "Time to filter one sample in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		MatchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gosm_match_latency_seconds",
				Help:    "Time to match a whole trajectory in seconds.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gosm_active_sessions",
				Help: "Number of open online matching sessions.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.SamplesTotal,
		m.BreaksTotal,
		m.CandidatesPerSample,
		m.SampleLatency,
		m.MatchLatency,
		m.ActiveSessions,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

func (m *Metrics) ObserveSample(candidates int, elapsed time.Duration) {
	m.SamplesTotal.Inc()
	m.CandidatesPerSample.Observe(float64(candidates))
	m.SampleLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveBreak(kind markov.BreakKind) {
	m.BreaksTotal.WithLabelValues(breakLabel(kind)).Inc()
}

func breakLabel(kind markov.BreakKind) string {
	switch kind {
	case markov.NoEmissions:
		return "no_emissions"
	case markov.NoTransitions:
		return "no_transitions"
	default:
		return "unknown"
	}
}

// Handler returns the Prometheus scrape HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Instrument counts and times requests served by next under the route
// label path.
func (m *Metrics) Instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
