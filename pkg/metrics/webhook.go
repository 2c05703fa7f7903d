package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records webhook ingestion outcomes.
type WebhookMetrics struct {
	events        *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	lineItemFetch prometheus.Counter
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook events processed, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_event_duration_seconds",
		Help:    "Time spent applying one webhook event.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	lineItemFetch := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_line_item_fetches_total",
		Help: "Gateway line-item fetches performed for new session purchases.",
	})
	reg.MustRegister(events, duration, lineItemFetch)
	return &WebhookMetrics{
		events:        events,
		duration:      duration,
		lineItemFetch: lineItemFetch,
	}
}

// IncEvent increments the outcome counter for the event type.
func (w *WebhookMetrics) IncEvent(eventType, outcome string) {
	if w == nil || w.events == nil {
		return
	}
	w.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveDuration records how long applying the event took.
func (w *WebhookMetrics) ObserveDuration(eventType string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncLineItemFetch counts one gateway line-item fetch.
func (w *WebhookMetrics) IncLineItemFetch() {
	if w == nil || w.lineItemFetch == nil {
		return
	}
	w.lineItemFetch.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
