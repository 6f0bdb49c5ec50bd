package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Operation outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// CommissionMetrics tracks lifecycle operations of the payment engine.
type CommissionMetrics struct {
	operations  *prometheus.CounterVec
	paidAmount  *prometheus.CounterVec
	batchAmount prometheus.Histogram
	lockWait    prometheus.Histogram
}

// NewCommissionMetrics registers the engine metrics on the provided registerer.
func NewCommissionMetrics(reg prometheus.Registerer) *CommissionMetrics {
	if reg == nil {
		return &CommissionMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_operations_total",
		Help: "Commission lifecycle operations by outcome.",
	}, []string{"operation", "outcome"})
	paidAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_paid_amount_total",
		Help: "Net commission amount marked as paid.",
	}, []string{"method"})
	batchAmount := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "commission_payout_batch_amount",
		Help:    "Total amount of created payout batches.",
		Buckets: prometheus.ExponentialBuckets(10, 4, 8),
	})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "commission_organizer_lock_wait_seconds",
		Help:    "Time spent waiting for the per-organizer lock.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(operations, paidAmount, batchAmount, lockWait)
	return &CommissionMetrics{
		operations:  operations,
		paidAmount:  paidAmount,
		batchAmount: batchAmount,
		lockWait:    lockWait,
	}
}

// IncOperation counts one operation attempt.
func (m *CommissionMetrics) IncOperation(operation, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// AddPaid accumulates settled net amounts per payment method.
func (m *CommissionMetrics) AddPaid(method string, amount decimal.Decimal) {
	if m == nil || m.paidAmount == nil {
		return
	}
	m.paidAmount.WithLabelValues(normalizeLabel(method)).Add(amount.InexactFloat64())
}

// ObserveBatch records the total of a freshly created batch.
func (m *CommissionMetrics) ObserveBatch(total decimal.Decimal) {
	if m == nil || m.batchAmount == nil {
		return
	}
	m.batchAmount.Observe(total.InexactFloat64())
}

// ObserveLockWait records how long a caller waited for an organizer lock.
func (m *CommissionMetrics) ObserveLockWait(seconds float64) {
	if m == nil || m.lockWait == nil {
		return
	}
	m.lockWait.Observe(seconds)
}

// Outcome classifies an operation error for metric labels.
func Outcome(err error, rejected func(error) bool) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case rejected != nil && rejected(err):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}
