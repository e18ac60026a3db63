package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks how domain events leave the outbox.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	retried   *prometheus.CounterVec
	parked    *prometheus.CounterVec
	batch     prometheus.Histogram
}

// NewOutboxMetrics registers the relay metrics on reg. A nil registerer yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_published_total",
		Help:      "Outbox events delivered to the broker.",
	}, []string{"event_type"})
	retried := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_retries_total",
		Help:      "Publish attempts that failed and were left for retry.",
	}, []string{"event_type"})
	parked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_parked_total",
		Help:      "Outbox events that will not be retried.",
	}, []string{"reason"})
	batch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "outbox_batch_size",
		Help:      "Rows claimed per relay batch.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
	})
	reg.MustRegister(published, retried, parked, batch)
	return &OutboxMetrics{published: published, retried: retried, parked: parked, batch: batch}
}

func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (o *OutboxMetrics) IncRetried(eventType string) {
	if o == nil || o.retried == nil {
		return
	}
	o.retried.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (o *OutboxMetrics) IncParked(reason string) {
	if o == nil || o.parked == nil {
		return
	}
	o.parked.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveBatch records how many rows a batch claimed. Empty polls are skipped.
func (o *OutboxMetrics) ObserveBatch(n int) {
	if o == nil || o.batch == nil || n <= 0 {
		return
	}
	o.batch.Observe(float64(n))
}
