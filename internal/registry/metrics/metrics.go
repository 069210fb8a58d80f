package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the team registry.
type Metrics struct {
	TeamsCreated       prometheus.Counter
	MembersJoined      prometheus.Counter
	CreateTeamDuration prometheus.Histogram
}

// New registers the registry metrics.
func New() *Metrics {
	return &Metrics{
		TeamsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hackgate_teams_created_total",
			Help: "Total number of teams registered",
		}),
		MembersJoined: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hackgate_members_joined_total",
			Help: "Total number of successful roster joins",
		}),
		CreateTeamDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "hackgate_create_team_duration_seconds",
			Help:    "Duration of CreateTeam operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementTeamsCreated() { m.TeamsCreated.Inc() }

func (m *Metrics) IncrementMembersJoined() { m.MembersJoined.Inc() }

// ObserveCreateTeam records the duration of a CreateTeam operation. Call with
// time.Now() captured at the start of the operation.
func (m *Metrics) ObserveCreateTeam(start time.Time) {
	m.CreateTeamDuration.Observe(time.Since(start).Seconds())
}
