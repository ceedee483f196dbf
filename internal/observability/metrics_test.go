package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.RecordTransition("REPORTED", "VERIFIED")
	m.RecordTransition("REPORTED", "VERIFIED")
	m.RecordAssignment("AUTO")
	m.RecordNotification("ISSUE_CREATED", true)
	m.RecordNotification("ISSUE_CREATED", false)
	m.RecordRequest("/issues", "GET", 200, 10*time.Millisecond)
	m.SetOutboxPending(7)

	require.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("REPORTED", "VERIFIED")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.assignments.WithLabelValues("AUTO")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("ISSUE_CREATED", "duplicate")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/issues", "200")))
	require.Equal(t, 7.0, testutil.ToFloat64(m.outboxPending))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordError("NOT_FOUND")
		m.RecordPushFailure()
		m.RecordOutboxEvent("issue.created", "dispatched")
		m.SetOutboxPending(1)
		_ = m.Handler()
	})
}
