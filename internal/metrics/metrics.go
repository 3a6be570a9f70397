package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the ingestion and referral pipeline
var (
	WebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Total number of webhook calls by outcome (ok, rejected, dropped)",
		},
		[]string{"outcome"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "processor_queue_depth",
			Help: "Number of events waiting in the background processor queue",
		},
	)

	EventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_processed_total",
			Help: "Total number of background events by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	DeliveryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Total number of outbound delivery attempts by method",
		},
		[]string{"method"},
	)

	DeliveryRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_retries_total",
			Help: "Total number of outbound attempts beyond the first, by method",
		},
		[]string{"method"},
	)

	DeliverySlowTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_slow_calls_total",
			Help: "Total number of outbound calls that took longer than the slow-call threshold",
		},
	)

	DeliveryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_failures_total",
			Help: "Total number of outbound deliveries that exhausted retries or failed fatally, by class",
		},
		[]string{"class"},
	)

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_duration_seconds",
			Help:    "Wall-clock duration of outbound deliveries including retries",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		},
		[]string{"method"},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(WebhooksTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(EventsProcessedTotal)
	prometheus.MustRegister(DeliveryAttemptsTotal)
	prometheus.MustRegister(DeliveryRetriesTotal)
	prometheus.MustRegister(DeliverySlowTotal)
	prometheus.MustRegister(DeliveryFailuresTotal)
	prometheus.MustRegister(DeliveryDuration)
}
