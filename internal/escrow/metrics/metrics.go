package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the escrow engine.
type Metrics struct {
	AccountsOpened   prometheus.Counter
	Deposits         prometheus.Counter
	ReleasesExecuted prometheus.Counter
	AccountsClosed   *prometheus.CounterVec
	ReleaseRejected  prometheus.Counter
}

// New creates and registers all escrow metrics.
func New() *Metrics {
	return &Metrics{
		AccountsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amanah_escrow_accounts_opened_total",
			Help: "Total number of escrow accounts opened",
		}),
		Deposits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amanah_escrow_deposits_total",
			Help: "Total number of deposits recorded against escrow accounts",
		}),
		ReleasesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amanah_escrow_releases_executed_total",
			Help: "Total number of executed escrow releases",
		}),
		AccountsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amanah_escrow_accounts_closed_total",
			Help: "Total number of escrow accounts closed, by outcome",
		}, []string{"outcome"}),
		ReleaseRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amanah_escrow_releases_rejected_total",
			Help: "Total number of release attempts rejected by balance or state checks",
		}),
	}
}

func (m *Metrics) IncAccountsOpened() {
	if m == nil {
		return
	}
	m.AccountsOpened.Inc()
}

func (m *Metrics) IncDeposits() {
	if m == nil {
		return
	}
	m.Deposits.Inc()
}

func (m *Metrics) IncReleasesExecuted() {
	if m == nil {
		return
	}
	m.ReleasesExecuted.Inc()
}

func (m *Metrics) IncAccountsClosed(outcome string) {
	if m == nil {
		return
	}
	m.AccountsClosed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncReleaseRejected() {
	if m == nil {
		return
	}
	m.ReleaseRejected.Inc()
}
