package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "tix"

// BookingMetrics tracks booking lifecycle outcomes.
type BookingMetrics struct {
	created              *prometheus.CounterVec
	transitions          *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec
}

// NewBookingMetrics registers booking metrics on reg. A nil registerer yields a no-op recorder.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	if reg == nil {
		return &BookingMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_created_total",
		Help:      "Bookings created, split by whether the offering was free.",
	}, []string{"pricing"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_transitions_total",
		Help:      "Committed booking status transitions.",
	}, []string{"from", "to"})
	notificationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_notification_failures_total",
		Help:      "Post-commit booking notifications that could not be delivered.",
	}, []string{"status"})
	reg.MustRegister(created, transitions, notificationFailures)
	return &BookingMetrics{
		created:              created,
		transitions:          transitions,
		notificationFailures: notificationFailures,
	}
}

// IncCreated counts a new booking.
func (b *BookingMetrics) IncCreated(free bool) {
	if b == nil || b.created == nil {
		return
	}
	label := "paid"
	if free {
		label = "free"
	}
	b.created.WithLabelValues(label).Inc()
}

// IncTransition counts a committed status change.
func (b *BookingMetrics) IncTransition(from, to string) {
	if b == nil || b.transitions == nil {
		return
	}
	b.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncNotificationFailure counts a failed post-commit notification.
func (b *BookingMetrics) IncNotificationFailure(status string) {
	if b == nil || b.notificationFailures == nil {
		return
	}
	b.notificationFailures.WithLabelValues(normalizeLabel(status)).Inc()
}
