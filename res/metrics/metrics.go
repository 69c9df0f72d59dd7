package metrics

import "github.com/prometheus/client_golang/prometheus"

// DispatchMetrics exposes counters for scheduling writes, billing and the auto-confirm sweep.
// A nil *DispatchMetrics is valid and records nothing.
type DispatchMetrics struct {
	movesTotal          *prometheus.CounterVec
	transitionsTotal    *prometheus.CounterVec
	invoicesTotal       *prometheus.CounterVec
	sweepProcessedTotal prometheus.Counter
	sweepFailedTotal    prometheus.Counter
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	m := &DispatchMetrics{
		movesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "moves_total",
			Help:      "Reschedule and reassignment attempts by result",
		}, []string{"result"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "transitions_total",
			Help:      "Committed appointment status transitions by target status",
		}, []string{"to"}),
		invoicesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "invoices_total",
			Help:      "Invoices issued on completion by customer billing frequency",
		}, []string{"frequency"}),
		sweepProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "sweep_processed_total",
			Help:      "Appointments auto-confirmed by the sweeper",
		}),
		sweepFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "sweep_failed_total",
			Help:      "Appointments the sweeper failed to complete",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.movesTotal, m.transitionsTotal, m.invoicesTotal, m.sweepProcessedTotal, m.sweepFailedTotal)
	return m
}

// ObserveMove records a move outcome: committed, conflict or rejected.
func (m *DispatchMetrics) ObserveMove(result string) {
	if m == nil {
		return
	}
	m.movesTotal.WithLabelValues(result).Inc()
}

func (m *DispatchMetrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to).Inc()
}

func (m *DispatchMetrics) ObserveInvoice(frequency string) {
	if m == nil {
		return
	}
	m.invoicesTotal.WithLabelValues(frequency).Inc()
}

func (m *DispatchMetrics) ObserveSweep(processed, failed int) {
	if m == nil {
		return
	}
	m.sweepProcessedTotal.Add(float64(processed))
	m.sweepFailedTotal.Add(float64(failed))
}
