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
	// Routing metrics
	QuoteRequests     *prometheus.CounterVec
	QuoteLatency      *prometheus.HistogramVec
	BestQuoteSelected *prometheus.CounterVec
	RoutingExhausted  prometheus.Counter
	Settlements       *prometheus.CounterVec

	// Processor metrics
	OrdersProcessed    *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	PipelineRetries    prometheus.Counter

	// Queue metrics
	OrdersSubmitted prometheus.Counter
	JobsByState     *prometheus.GaugeVec
	RateLimitWaits  prometheus.Counter

	// Broadcast metrics
	Subscribers     prometheus.Gauge
	EventsPublished prometheus.Counter
	EventsDropped   prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "swap_engine"
	}

	return &Metrics{
		QuoteRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "quote_requests_total",
			Help:      "Total number of quote requests by venue and outcome",
		}, []string{"venue", "status"}),
		QuoteLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "quote_latency_seconds",
			Help:      "Quote request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"venue"}),
		BestQuoteSelected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "best_quote_selected_total",
			Help:      "Total number of best-quote selections by venue",
		}, []string{"venue"}),
		RoutingExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "routing_exhausted_total",
			Help:      "Total number of routing passes where no venue produced a quote",
		}),
		Settlements: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "settlements_total",
			Help:      "Total number of settlement attempts by venue and outcome",
		}, []string{"venue", "status"}),

		OrdersProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "orders_processed_total",
			Help:      "Total number of orders processed by terminal status",
		}, []string{"status"}),
		ProcessingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "processing_duration_seconds",
			Help:      "End-to-end order processing duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		PipelineRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "pipeline_retries_total",
			Help:      "Total number of whole-pipeline retry attempts",
		}),

		OrdersSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "orders_submitted_total",
			Help:      "Total number of jobs accepted by the admission queue",
		}),
		JobsByState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs",
			Help:      "Current job counts by state",
		}, []string{"state"}),
		RateLimitWaits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "rate_limit_waits_total",
			Help:      "Total number of worker waits imposed by the throughput cap",
		}),

		Subscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "subscribers",
			Help:      "Current number of registered status subscribers",
		}),
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_published_total",
			Help:      "Total number of status events delivered to subscribers",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_dropped_total",
			Help:      "Total number of status events dropped (no subscriber or delivery error)",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordQuoteRequest records a quote request outcome and latency.
func RecordQuoteRequest(venue string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.QuoteRequests.WithLabelValues(venue, status).Inc()
	DefaultMetrics.QuoteLatency.WithLabelValues(venue).Observe(seconds)
}

// RecordBestQuote increments the best-quote counter for a venue.
func RecordBestQuote(venue string) {
	DefaultMetrics.BestQuoteSelected.WithLabelValues(venue).Inc()
}

// RecordRoutingExhausted increments the no-quote counter.
func RecordRoutingExhausted() {
	DefaultMetrics.RoutingExhausted.Inc()
}

// RecordSettlement records a settlement attempt outcome.
func RecordSettlement(venue string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.Settlements.WithLabelValues(venue, status).Inc()
}

// RecordOrderProcessed records a terminal order outcome and duration.
func RecordOrderProcessed(status string, seconds float64) {
	DefaultMetrics.OrdersProcessed.WithLabelValues(status).Inc()
	DefaultMetrics.ProcessingDuration.Observe(seconds)
}

// RecordPipelineRetry increments the retry counter.
func RecordPipelineRetry() {
	DefaultMetrics.PipelineRetries.Inc()
}

// RecordOrderSubmitted increments the submission counter.
func RecordOrderSubmitted() {
	DefaultMetrics.OrdersSubmitted.Inc()
}

// RecordRateLimitWait increments the throughput-cap wait counter.
func RecordRateLimitWait() {
	DefaultMetrics.RateLimitWaits.Inc()
}

// UpdateQueueStats updates the per-state job gauges.
func UpdateQueueStats(waiting, active, completed, failed int64) {
	DefaultMetrics.JobsByState.WithLabelValues("waiting").Set(float64(waiting))
	DefaultMetrics.JobsByState.WithLabelValues("active").Set(float64(active))
	DefaultMetrics.JobsByState.WithLabelValues("completed").Set(float64(completed))
	DefaultMetrics.JobsByState.WithLabelValues("failed").Set(float64(failed))
}

// SubscriberRegistered updates the subscriber gauge on register.
func SubscriberRegistered() {
	DefaultMetrics.Subscribers.Inc()
}

// SubscriberUnregistered updates the subscriber gauge on unregister.
func SubscriberUnregistered() {
	DefaultMetrics.Subscribers.Dec()
}

// RecordEventPublished increments the delivered-events counter.
func RecordEventPublished() {
	DefaultMetrics.EventsPublished.Inc()
}

// RecordEventDropped increments the dropped-events counter.
func RecordEventDropped() {
	DefaultMetrics.EventsDropped.Inc()
}
