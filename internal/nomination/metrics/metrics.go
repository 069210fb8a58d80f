package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the nomination quota manager.
type Metrics struct {
	NominationsAccepted *prometheus.CounterVec
	QuotaRejections     *prometheus.CounterVec
	Withdrawals         prometheus.Counter
	NominateDuration    prometheus.Histogram
}

// New registers the nomination metrics. Counters are labeled by quota bucket
// so software and hardware ceilings can be watched separately.
func New() *Metrics {
	return &Metrics{
		NominationsAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hackgate_nominations_accepted_total",
			Help: "Nominations that passed the quota check",
		}, []string{"bucket"}),
		QuotaRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hackgate_nomination_quota_rejections_total",
			Help: "Nominations rejected because the institute quota was full",
		}, []string{"bucket"}),
		Withdrawals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hackgate_nomination_withdrawals_total",
			Help: "Nominations withdrawn by institute coordinators",
		}),
		NominateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "hackgate_nominate_duration_seconds",
			Help:    "Duration of nominate operations including the quota critical section",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementAccepted(bucket string) { m.NominationsAccepted.WithLabelValues(bucket).Inc() }

func (m *Metrics) IncrementQuotaRejection(bucket string) {
	m.QuotaRejections.WithLabelValues(bucket).Inc()
}

func (m *Metrics) IncrementWithdrawals() { m.Withdrawals.Inc() }

// ObserveNominate records the duration of a nominate operation.
func (m *Metrics) ObserveNominate(start time.Time) {
	m.NominateDuration.Observe(time.Since(start).Seconds())
}
