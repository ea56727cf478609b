package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "payment_relay"

// Metrics groups relay collectors.
type Metrics struct {
	payoutsSent prometheus.Counter
	resolved    *prometheus.CounterVec
	errors      *prometheus.CounterVec
	pending     prometheus.Gauge
	journaled   prometheus.Gauge
}

// NewMetrics creates relay collectors and registers them in reg. Nil reg
// leaves collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		payoutsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "payouts_sent_total",
			Help:      "Number of payout transactions sent to the network",
		}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "withdrawals_resolved_total",
			Help:      "Number of withdrawals resolved on chain by outcome",
		}, []string{"outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Number of relay errors by stage",
		}, []string{"stage"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_withdrawals",
			Help:      "Number of pending withdrawals seen on the last pass",
		}),
		journaled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "journaled_payouts",
			Help:      "Number of payouts in progress according to the journal",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.payoutsSent, m.resolved, m.errors, m.pending, m.journaled)
	}

	return m
}

func outcomeLabel(success bool) string {
	if success {
		return "settled"
	}
	return "reverted"
}
