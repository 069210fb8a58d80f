package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the jury panel lifecycle.
type Metrics struct {
	PanelsFinalized      prometheus.Counter
	ProvisioningFailures prometheus.Counter
	AccountsProvisioned  prometheus.Counter
	FinalizeDuration     prometheus.Histogram
}

// New registers the jury metrics.
func New() *Metrics {
	return &Metrics{
		PanelsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hackgate_panels_finalized_total",
			Help: "Panels transitioned from draft to active",
		}),
		ProvisioningFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hackgate_jury_provisioning_failures_total",
			Help: "Finalize or replace attempts that failed on account provisioning",
		}),
		AccountsProvisioned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hackgate_jury_accounts_provisioned_total",
			Help: "External jury accounts created",
		}),
		FinalizeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "hackgate_panel_finalize_duration_seconds",
			Help:    "Duration of panel finalize including upstream provisioning",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) IncrementFinalized() { m.PanelsFinalized.Inc() }

func (m *Metrics) IncrementProvisioningFailures() { m.ProvisioningFailures.Inc() }

func (m *Metrics) IncrementAccountsProvisioned() { m.AccountsProvisioned.Inc() }

// ObserveFinalize records the duration of a finalize attempt.
func (m *Metrics) ObserveFinalize(start time.Time) {
	m.FinalizeDuration.Observe(time.Since(start).Seconds())
}
