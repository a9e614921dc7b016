package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the installment engine.
type Metrics struct {
	PlansCreated        prometheus.Counter
	InstallmentsPaid    prometheus.Counter
	PlansCompleted      prometheus.Counter
	InstallmentsOverdue prometheus.Counter
	UpcomingCacheHits   prometheus.Counter
	UpcomingCacheMisses prometheus.Counter
}

// New creates and registers all installment metrics.
func New() *Metrics {
	return &Metrics{
		PlansCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amanah_installment_plans_created_total",
			Help: "Total number of installment plans created",
		}),
		InstallmentsPaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amanah_installments_paid_total",
			Help: "Total number of installment payments recorded",
		}),
		PlansCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amanah_installment_plans_completed_total",
			Help: "Total number of installment plans fully paid",
		}),
		InstallmentsOverdue: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amanah_installments_overdue_total",
			Help: "Total number of installments marked overdue",
		}),
		UpcomingCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amanah_upcoming_cache_hits_total",
			Help: "Upcoming-installments cache hits",
		}),
		UpcomingCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amanah_upcoming_cache_misses_total",
			Help: "Upcoming-installments cache misses",
		}),
	}
}

func (m *Metrics) IncPlansCreated() {
	if m == nil {
		return
	}
	m.PlansCreated.Inc()
}

func (m *Metrics) IncInstallmentsPaid() {
	if m == nil {
		return
	}
	m.InstallmentsPaid.Inc()
}

func (m *Metrics) IncPlansCompleted() {
	if m == nil {
		return
	}
	m.PlansCompleted.Inc()
}

func (m *Metrics) AddInstallmentsOverdue(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.InstallmentsOverdue.Add(float64(n))
}

func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.UpcomingCacheHits.Inc()
}

func (m *Metrics) IncCacheMiss() {
	if m == nil {
		return
	}
	m.UpcomingCacheMisses.Inc()
}
