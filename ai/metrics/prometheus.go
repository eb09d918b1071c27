// Package metrics provides Prometheus metrics export for the matching core.
package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports matching core metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Search metrics
	searchLatency  *prometheus.HistogramVec
	searchRequests *prometheus.CounterVec

	// Re-ranking metrics
	rerankLatency prometheus.Histogram
	rerankBoosts  *prometheus.CounterVec

	// Recommendation pipeline metrics
	recommendLatency prometheus.Histogram
	recommendTotal   *prometheus.CounterVec

	// Profiling session metrics
	sessionsStarted prometheus.Counter
	sessionsClosed  *prometheus.CounterVec
	sessionsActive  prometheus.Gauge

	// Provider metrics
	providerLatency *prometheus.HistogramVec
	providerTokens  *prometheus.CounterVec
	providerErrors  *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// Slot search metrics
	slotLatency  prometheus.Histogram
	slotSearches *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{
		registry: registry,
	}

	// Search metrics
	e.searchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "search_latency_seconds",
			Help:      "Vector search latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"space"},
	)

	e.searchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "search_requests_total",
			Help:      "Total number of vector search requests",
		},
		[]string{"space", "status"},
	)

	// Re-ranking metrics
	e.rerankLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "rerank_latency_seconds",
			Help:      "Re-ranking latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	e.rerankBoosts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "rerank_boosts_total",
			Help:      "Total number of re-ranking boosts applied",
		},
		[]string{"reason"},
	)

	// Recommendation pipeline metrics
	e.recommendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "recommend_latency_seconds",
			Help:      "End-to-end recommendation latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	e.recommendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "recommend_requests_total",
			Help:      "Total number of recommendation requests",
		},
		[]string{"status"},
	)

	// Profiling session metrics
	e.sessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "profiling_sessions_started_total",
			Help:      "Total number of profiling sessions started",
		},
	)

	e.sessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "profiling_sessions_closed_total",
			Help:      "Total number of profiling sessions closed",
		},
		[]string{"outcome"},
	)

	e.sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "profiling_sessions_active",
			Help:      "Number of active profiling sessions",
		},
	)

	// Provider metrics
	e.providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "provider_latency_seconds",
			Help:      "AI provider call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"provider", "operation"},
	)

	e.providerTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "provider_tokens_total",
			Help:      "Total provider tokens consumed",
		},
		[]string{"model", "token_type"},
	)

	e.providerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "provider_errors_total",
			Help:      "Total number of provider errors",
		},
		[]string{"provider", "operation"},
	)

	// Cache metrics
	e.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	e.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Slot search metrics
	e.slotLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "slot_search_latency_seconds",
			Help:      "Session slot search latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	e.slotSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lightpath",
			Subsystem: "ai",
			Name:      "slot_searches_total",
			Help:      "Total number of slot searches",
		},
		[]string{"status"},
	)

	// Register all metrics
	registry.MustRegister(
		e.searchLatency,
		e.searchRequests,
		e.rerankLatency,
		e.rerankBoosts,
		e.recommendLatency,
		e.recommendTotal,
		e.sessionsStarted,
		e.sessionsClosed,
		e.sessionsActive,
		e.providerLatency,
		e.providerTokens,
		e.providerErrors,
		e.cacheHits,
		e.cacheMisses,
		e.slotLatency,
		e.slotSearches,
	)

	return e
}

// RecordSearch records a vector search against one space.
func (e *PrometheusExporter) RecordSearch(space string, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}

	e.searchRequests.WithLabelValues(space, status).Inc()
	e.searchLatency.WithLabelValues(space).Observe(latency.Seconds())
}

// RecordRerank records a re-ranking pass.
func (e *PrometheusExporter) RecordRerank(latency time.Duration) {
	e.rerankLatency.Observe(latency.Seconds())
}

// RecordBoost records one applied re-ranking boost.
func (e *PrometheusExporter) RecordBoost(reason string) {
	e.rerankBoosts.WithLabelValues(reason).Inc()
}

// RecordRecommendation records an end-to-end recommendation request.
func (e *PrometheusExporter) RecordRecommendation(latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}

	e.recommendTotal.WithLabelValues(status).Inc()
	e.recommendLatency.Observe(latency.Seconds())
}

// SessionStarted records a started profiling session.
func (e *PrometheusExporter) SessionStarted() {
	e.sessionsStarted.Inc()
}

// SessionClosed records a closed profiling session. Outcome is
// "completed" or "expired".
func (e *PrometheusExporter) SessionClosed(outcome string) {
	e.sessionsClosed.WithLabelValues(outcome).Inc()
}

// SetActiveSessions sets the number of active profiling sessions.
func (e *PrometheusExporter) SetActiveSessions(count int) {
	e.sessionsActive.Set(float64(count))
}

// RecordProviderCall records one generator or embedding provider call.
func (e *PrometheusExporter) RecordProviderCall(provider, operation string, latency time.Duration, success bool) {
	if !success {
		e.providerErrors.WithLabelValues(provider, operation).Inc()
	}
	e.providerLatency.WithLabelValues(provider, operation).Observe(latency.Seconds())
}

// RecordProviderTokens records provider token usage.
func (e *PrometheusExporter) RecordProviderTokens(model, tokenType string, count int) {
	e.providerTokens.WithLabelValues(model, tokenType).Add(float64(count))
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit(cacheType string) {
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss(cacheType string) {
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordSlotSearch records a slot search. Status is "found",
// "not_found" or "error".
func (e *PrometheusExporter) RecordSlotSearch(latency time.Duration, status string) {
	e.slotSearches.WithLabelValues(status).Inc()
	e.slotLatency.Observe(latency.Seconds())
}

// GetHandler returns the HTTP handler for Prometheus metrics.
func (e *PrometheusExporter) GetHandler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.GetHandler().ServeHTTP(w, r)
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}

// ExportText exports metrics in Prometheus text format.
func (e *PrometheusExporter) ExportText() (string, error) {
	var sb strings.Builder

	metrics, err := e.registry.Gather()
	if err != nil {
		return "", err
	}

	for _, mf := range metrics {
		sb.WriteString("# HELP ")
		sb.WriteString(mf.GetName())
		sb.WriteString(" ")
		sb.WriteString(mf.GetHelp())
		sb.WriteString("\n")

		sb.WriteString("# TYPE ")
		sb.WriteString(mf.GetName())
		sb.WriteString(" ")
		sb.WriteString(mf.GetType().String())
		sb.WriteString("\n")

		for _, m := range mf.GetMetric() {
			sb.WriteString(mf.GetName())

			// Labels
			if len(m.GetLabel()) > 0 {
				sb.WriteString("{")
				labels := make([]string, 0, len(m.GetLabel()))
				for _, label := range m.GetLabel() {
					labels = append(labels, label.GetName()+"=\""+label.GetValue()+"\"")
				}
				sort.Strings(labels)
				sb.WriteString(strings.Join(labels, ","))
				sb.WriteString("}")
			}

			sb.WriteString(" ")

			// Value based on type
			metricType := mf.GetType().String()
			switch metricType {
			case "COUNTER":
				if c := m.GetCounter(); c != nil {
					sb.WriteString(strconv.FormatFloat(c.GetValue(), 'f', -1, 64))
				}
			case "GAUGE":
				if g := m.GetGauge(); g != nil {
					sb.WriteString(strconv.FormatFloat(g.GetValue(), 'f', -1, 64))
				}
			case "HISTOGRAM":
				if h := m.GetHistogram(); h != nil {
					sb.WriteString(strconv.FormatFloat(h.GetSampleSum(), 'f', -1, 64))
					for _, b := range h.GetBucket() {
						sb.WriteString("\n")
						sb.WriteString(mf.GetName())
						sb.WriteString("_bucket{le=\"")
						sb.WriteString(strconv.FormatFloat(b.GetUpperBound(), 'f', -1, 64))
						sb.WriteString("\"}")
						sb.WriteString(strconv.FormatUint(b.GetCumulativeCount(), 10))
					}
				}
			default:
				// Unknown type, skip value
				sb.WriteString("\n")
				continue
			}

			sb.WriteString(" ")
			sb.WriteString(strconv.FormatInt(m.GetTimestampMs(), 10))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
