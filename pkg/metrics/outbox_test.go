package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.IncPublished("booking_created")
	m.IncPublished("booking_created")
	m.IncRetried("booking_status_changed")
	m.IncParked("max_attempts")
	m.ObserveBatch(3)
	m.ObserveBatch(0)

	require.Equal(t, 2.0, testutil.ToFloat64(m.published.WithLabelValues("booking_created")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.retried.WithLabelValues("booking_status_changed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.parked.WithLabelValues("max_attempts")))
	require.Equal(t, 1, testutil.CollectAndCount(m.batch))
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.IncPublished("x")
	m.IncRetried("x")
	m.IncParked("x")
	m.ObserveBatch(1)

	NewOutboxMetrics(nil).IncPublished("x")
}
