// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// API client metrics
	APICallsTotal  *prometheus.CounterVec
	APICallRetries prometheus.Counter
	RateLimitWaits prometheus.Counter
	APICallLatency *prometheus.HistogramVec

	// Discovery metrics
	DiscoveryCyclesTotal *prometheus.CounterVec
	DiscoveryDuration    prometheus.Histogram
	CandidatesExtracted  prometheus.Counter
	WhalesTracked        prometheus.Gauge

	// Refresh metrics
	UpdateCyclesTotal *prometheus.CounterVec
	UpdateDuration    prometheus.Histogram
	ProfilesRefreshed prometheus.Counter

	// Feed metrics
	FeedEventsTotal *prometheus.CounterVec
	FeedReconnects  prometheus.Counter
	FeedBlockHeight prometheus.Gauge

	// Broadcast metrics
	EventsPublished   prometheus.Counter
	SignificantAlerts prometheus.Counter
	SubscribersOnline prometheus.Gauge
	SubscriberDrops   prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulDiscovery prometheus.Gauge
	LastFeedHeartbeat       prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "whale_intel"
	}

	return &Metrics{
		// API client metrics
		APICallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "api_calls_total",
			Help:      "Total number of chain API calls by endpoint and status",
		}, []string{"endpoint", "status"}),
		APICallRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "api_call_retries_total",
			Help:      "Total number of chain API call retries",
		}),
		RateLimitWaits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rate_limit_waits_total",
			Help:      "Total number of 429 cooldown waits",
		}),
		APICallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "api_call_latency_seconds",
			Help:      "Chain API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		// Discovery metrics
		DiscoveryCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "cycles_total",
			Help:      "Total number of discovery cycles by status",
		}, []string{"status"}),
		DiscoveryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "duration_seconds",
			Help:      "Discovery cycle duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		CandidatesExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_extracted_total",
			Help:      "Total number of candidate addresses extracted from recent activity",
		}),
		WhalesTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "whales_tracked",
			Help:      "Current number of tracked whale profiles",
		}),

		// Refresh metrics
		UpdateCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "cycles_total",
			Help:      "Total number of profile update cycles by status",
		}, []string{"status"}),
		UpdateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Profile update cycle duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		ProfilesRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "profiles_refreshed_total",
			Help:      "Total number of profiles successfully refreshed",
		}),

		// Feed metrics
		FeedEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_total",
			Help:      "Total number of feed events received by kind",
		}, []string{"kind"}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnect attempts",
		}),
		FeedBlockHeight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "block_height",
			Help:      "Highest block height seen on the feed",
		}),

		// Broadcast metrics
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_published_total",
			Help:      "Total number of tracked transaction events published",
		}),
		SignificantAlerts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "significant_alerts_total",
			Help:      "Total number of events above the significance threshold",
		}),
		SubscribersOnline: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "subscribers_online",
			Help:      "Current number of event stream subscribers",
		}),
		SubscriberDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "subscriber_drops_total",
			Help:      "Total number of events dropped on slow subscribers",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulDiscovery: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_discovery_timestamp",
			Help:      "Unix timestamp of last successful discovery cycle",
		}),
		LastFeedHeartbeat: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_feed_heartbeat_timestamp",
			Help:      "Unix timestamp of last block received on the feed",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordAPICall records a chain API call outcome and latency.
func RecordAPICall(endpoint, status string, seconds float64) {
	DefaultMetrics.APICallsTotal.WithLabelValues(endpoint, status).Inc()
	DefaultMetrics.APICallLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordAPIRetry increments the retry counter.
func RecordAPIRetry() {
	DefaultMetrics.APICallRetries.Inc()
}

// RecordRateLimitWait increments the 429 cooldown counter.
func RecordRateLimitWait() {
	DefaultMetrics.RateLimitWaits.Inc()
}

// RecordDiscoveryCycle records a discovery cycle outcome.
func RecordDiscoveryCycle(status string, durationSeconds float64) {
	DefaultMetrics.DiscoveryCyclesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.DiscoveryDuration.Observe(durationSeconds)
}

// RecordUpdateCycle records a profile update cycle outcome.
func RecordUpdateCycle(status string, durationSeconds float64) {
	DefaultMetrics.UpdateCyclesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.UpdateDuration.Observe(durationSeconds)
}

// RecordFeedEvent increments the feed event counter for a kind.
func RecordFeedEvent(kind string) {
	DefaultMetrics.FeedEventsTotal.WithLabelValues(kind).Inc()
}

// RecordFeedReconnect increments the reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordEventPublished records a published event, counting significant
// ones separately.
func RecordEventPublished(significant bool) {
	DefaultMetrics.EventsPublished.Inc()
	if significant {
		DefaultMetrics.SignificantAlerts.Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
