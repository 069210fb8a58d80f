// Package eligibility computes whether a team is fully registered.
//
// This is the single canonical implementation of the registration predicate.
// Every caller, from SPOC nomination to the eligibility endpoint, imports
// this function; nobody re-derives the rules locally.
package eligibility

import (
	"hackgate/internal/profile"
	"hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
)

// MinSameInstitute is how many roster members must share the team's institute.
const MinSameInstitute = 3

// Report is the per-predicate breakdown behind the registration boolean,
// consumed by dashboards that explain what a team still lacks.
type Report struct {
	RosterComplete      bool `json:"roster_complete"`
	HasFemaleMember     bool `json:"has_female_member"`
	InstituteMajority   bool `json:"institute_majority"`
	ProblemStatementSet bool `json:"problem_statement_set"`
	Registered          bool `json:"registered"`
}

// Evaluate computes the full report from a team snapshot and the member
// profiles. Pure: no I/O, no clock, deterministic for identical inputs.
//
// Profiles are keyed by user ID; a roster identity missing from the map (a
// dangling reference) simply does not count toward the gender or institute
// predicates.
func Evaluate(team *models.Team, profiles map[id.UserID]profile.Profile) Report {
	report := Report{
		RosterComplete:      team.RosterSize() == models.MaxRosterSize,
		ProblemStatementSet: team.ProblemID != nil,
	}

	sameInstitute := 0
	for _, userID := range team.MemberIDs() {
		p, ok := profiles[userID]
		if !ok {
			continue
		}
		if p.Gender == id.GenderFemale {
			report.HasFemaleMember = true
		}
		if p.Institute == team.Institute {
			sameInstitute++
		}
	}
	report.InstituteMajority = sameInstitute >= MinSameInstitute

	report.Registered = report.RosterComplete &&
		report.HasFemaleMember &&
		report.InstituteMajority &&
		report.ProblemStatementSet
	return report
}

// IsRegistered is the registration predicate used by the nomination flow.
func IsRegistered(team *models.Team, profiles map[id.UserID]profile.Profile) bool {
	return Evaluate(team, profiles).Registered
}
