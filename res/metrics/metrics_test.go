package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDispatchMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics(reg)

	m.ObserveMove("committed")
	m.ObserveMove("conflict")
	m.ObserveMove("conflict")
	m.ObserveTransition("COMPLETED")
	m.ObserveInvoice("ONE_TIME")
	m.ObserveSweep(3, 1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.movesTotal.WithLabelValues("conflict")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.invoicesTotal.WithLabelValues("ONE_TIME")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.sweepProcessedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sweepFailedTotal))
}

func TestDispatchMetricsNilSafe(t *testing.T) {
	var m *DispatchMetrics
	m.ObserveMove("committed")
	m.ObserveTransition("CANCELLED")
	m.ObserveInvoice("WEEKLY")
	m.ObserveSweep(1, 0)
}
