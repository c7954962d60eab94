package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("payroll:run").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("payroll:run").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("payroll:run", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("payroll:run", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("payroll:run")))
}

func TestNilMetricsTrackerIsInert(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("x").End(nil))
}
