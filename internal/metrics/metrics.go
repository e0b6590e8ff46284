// Package metrics exposes Prometheus counters for redemption outcomes and ledger contention.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "discount"

// OutcomeAllowed labels a redemption that consumed a use.
const OutcomeAllowed = "ALLOWED"

// Metrics groups the service's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	redemptions     *prometheus.CounterVec
	previews        *prometheus.CounterVec
	ledgerConflicts prometheus.Counter
	resets          prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Redemption attempts by outcome.",
		}, []string{"outcome"}),
		previews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemption_previews_total",
			Help:      "Redemption previews by outcome.",
		}, []string{"outcome"}),
		ledgerConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_conflicts_total",
			Help:      "Optimistic version conflicts retried by the usage ledger.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_resets_total",
			Help:      "Administrative usage resets.",
		}),
	}

	reg.MustRegister(m.redemptions, m.previews, m.ledgerConflicts, m.resets)
	return m
}

// Redemption counts one evaluated redemption. An empty outcome means allowed.
func (m *Metrics) Redemption(outcome string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(label(outcome)).Inc()
}

// Preview counts one peeked redemption.
func (m *Metrics) Preview(outcome string) {
	if m == nil {
		return
	}
	m.previews.WithLabelValues(label(outcome)).Inc()
}

// LedgerConflict counts one lost optimistic write.
func (m *Metrics) LedgerConflict() {
	if m == nil {
		return
	}
	m.ledgerConflicts.Inc()
}

// Reset counts one administrative reset.
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}

func label(outcome string) string {
	if outcome == "" {
		return OutcomeAllowed
	}
	return outcome
}
