package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the invite token service.
type Metrics struct {
	InvitesIssued  prometheus.Counter
	TokenConflicts prometheus.Counter
	JoinDuration   prometheus.Histogram
}

// New registers the invite metrics.
func New() *Metrics {
	return &Metrics{
		InvitesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hackgate_invites_issued_total",
			Help: "Total number of invite tokens issued",
		}),
		TokenConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hackgate_invite_token_conflicts_total",
			Help: "Consume attempts that lost the single-use race",
		}),
		JoinDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "hackgate_join_duration_seconds",
			Help:    "Duration of consume-and-join operations (join critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementInvitesIssued() { m.InvitesIssued.Inc() }

func (m *Metrics) IncrementTokenConflicts() { m.TokenConflicts.Inc() }

// ObserveJoin records the duration of a consume-and-join operation.
func (m *Metrics) ObserveJoin(start time.Time) {
	m.JoinDuration.Observe(time.Since(start).Seconds())
}
