package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	for i := 0; i < 4; i++ {
		require.NoError(t, m.Track("inventory:low_stock_scan").End(nil))
	}
	boom := errors.New("redis timeout")
	assert.ErrorIs(t, m.Track("inventory:low_stock_scan").End(boom), boom)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.runs.WithLabelValues("inventory:low_stock_scan", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("inventory:low_stock_scan", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("inventory:low_stock_scan")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration, "scentstock_job_duration_seconds"))
}

func TestAddItemsIgnoresEmptyRuns(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddItems("maintenance:idempotency_cleanup", 0)
	m.AddItems("maintenance:idempotency_cleanup", 12)
	m.AddItems("maintenance:idempotency_cleanup", 3)
	assert.Equal(t, 15.0, testutil.ToFloat64(m.items.WithLabelValues("maintenance:idempotency_cleanup")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddItems("x", 1)
	err := errors.New("x")
	assert.Equal(t, err, m.Track("x").End(err))
}
