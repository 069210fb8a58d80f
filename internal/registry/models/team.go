package models

import (
	"time"

	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
)

// MaxRosterSize caps leader plus members.
const MaxRosterSize = 6

// MemberRef is the denormalized snapshot of a member copied into the team at
// join time. The member's own profile edits do not rewrite it; the profile
// store stays authoritative for contact and display data on read paths.
type MemberRef struct {
	UserID       id.UserID `json:"user_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	EnrollmentNo string    `json:"enrollment_no"`
	ContactNo    string    `json:"contact_no"`
	Gender       id.Gender `json:"gender"`
	YearOfStudy  int       `json:"year_of_study"`
	Semester     int       `json:"semester"`
}

// Team is the aggregate root for a hackathon team.
//
// Invariants:
//   - Leader is always present and never appears in Members
//   - No duplicate identities across leader and members
//   - RosterSize is in [1, MaxRosterSize]
//   - Category never silently changes once the team is nominated
//
// Registration eligibility is deliberately NOT a field: it is recomputed live
// by the eligibility evaluator on every read so there is no cached boolean to
// keep in sync with roster changes.
type Team struct {
	ID        id.TeamID   `json:"id"`
	Name      string      `json:"name"`
	Institute string      `json:"institute"`
	Category  id.Category `json:"category"`
	Leader    MemberRef   `json:"leader"`
	Members   []MemberRef `json:"members"`

	ProblemID        *id.ProblemID      `json:"problem_id,omitempty"`
	Nominated        bool               `json:"nominated"`
	PanelID          *id.PanelID        `json:"panel_id,omitempty"`
	UniversityTeamID *string            `json:"university_team_id,omitempty"`
	SelectionStatus  id.SelectionStatus `json:"selection_status,omitempty"`

	// Version guards optimistic-concurrency updates in the stores.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTeam constructs a team with the leader as its only roster entry.
func NewTeam(teamID id.TeamID, name, institute string, leader MemberRef, now time.Time) (*Team, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "team name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "team name must be 128 characters or less")
	}
	if institute == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "team institute cannot be empty")
	}
	if leader.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "team leader is required")
	}
	return &Team{
		ID:        teamID,
		Name:      name,
		Institute: institute,
		Leader:    leader,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RosterSize counts leader plus members.
func (t *Team) RosterSize() int {
	return 1 + len(t.Members)
}

// HasMember reports whether the identity already appears on the roster,
// leader included.
func (t *Team) HasMember(userID id.UserID) bool {
	if t.Leader.UserID == userID {
		return true
	}
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberIDs returns every roster identity, leader first.
func (t *Team) MemberIDs() []id.UserID {
	ids := make([]id.UserID, 0, t.RosterSize())
	ids = append(ids, t.Leader.UserID)
	for _, m := range t.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// CanAddMember checks the roster invariants without mutating.
func (t *Team) CanAddMember(member MemberRef) error {
	if member.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "member identity is required")
	}
	if t.HasMember(member.UserID) {
		return dErrors.New(dErrors.CodeDuplicateMembership, "identity already on this team")
	}
	if t.RosterSize() >= MaxRosterSize {
		return dErrors.New(dErrors.CodeTeamFull, "team roster is full")
	}
	return nil
}

// AddMember appends a roster entry after validating invariants.
func (t *Team) AddMember(member MemberRef, now time.Time) error {
	if err := t.CanAddMember(member); err != nil {
		return err
	}
	t.Members = append(t.Members, member)
	t.UpdatedAt = now
	return nil
}

// RemoveMember drops a roster entry. The leader cannot be removed; a team
// without its leader violates the aggregate invariant.
func (t *Team) RemoveMember(userID id.UserID, now time.Time) error {
	if t.Leader.UserID == userID {
		return dErrors.New(dErrors.CodeInvariantViolation, "leader cannot be removed from the roster")
	}
	for i, m := range t.Members {
		if m.UserID == userID {
			t.Members = append(t.Members[:i], t.Members[i+1:]...)
			t.UpdatedAt = now
			return nil
		}
	}
	return dErrors.New(dErrors.CodeNotFound, "member not on this team")
}

// SetProblemStatement records the problem selection and derives the category.
// Nominated teams are locked: changing category out from under an institute's
// quota accounting is rejected rather than silently absorbed.
func (t *Team) SetProblemStatement(problemID id.ProblemID, category id.Category, now time.Time) error {
	if t.Nominated {
		return dErrors.New(dErrors.CodeNominationLocked, "problem statement cannot change after nomination")
	}
	if problemID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "problem statement id is required")
	}
	if !category.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "problem statement category is required")
	}
	pid := problemID
	t.ProblemID = &pid
	t.Category = category
	t.UpdatedAt = now
	return nil
}

// Rename updates the display name.
func (t *Team) Rename(name string, now time.Time) error {
	if name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "team name cannot be empty")
	}
	if len(name) > 128 {
		return dErrors.New(dErrors.CodeInvariantViolation, "team name must be 128 characters or less")
	}
	t.Name = name
	t.UpdatedAt = now
	return nil
}

// MarkNominated flags the team as holding a quota reservation. The quota
// check itself lives in the nomination service under its keyed lock.
func (t *Team) MarkNominated(now time.Time) {
	t.Nominated = true
	t.UpdatedAt = now
}

// ClearNomination releases the reservation and any selection outcome.
func (t *Team) ClearNomination(now time.Time) {
	t.Nominated = false
	t.SelectionStatus = id.SelectionUnset
	t.UpdatedAt = now
}

// AssignPanel points the team at a jury panel, overwriting any previous
// assignment.
func (t *Team) AssignPanel(panelID id.PanelID, now time.Time) {
	pid := panelID
	t.PanelID = &pid
	t.UpdatedAt = now
}

// ClearPanel detaches the team from its panel.
func (t *Team) ClearPanel(now time.Time) {
	t.PanelID = nil
	t.UpdatedAt = now
}

// SetSelectionStatus records the terminal selection outcome. Overwrites are
// idempotent; the date gate lives in the selection service.
func (t *Team) SetSelectionStatus(status id.SelectionStatus, now time.Time) error {
	if !status.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown selection status")
	}
	if !t.Nominated {
		return dErrors.New(dErrors.CodeInvariantViolation, "only nominated teams receive a selection status")
	}
	t.SelectionStatus = status
	t.UpdatedAt = now
	return nil
}

// Clone returns a deep copy so stores can hand out values without aliasing
// internal state.
func (t *Team) Clone() *Team {
	clone := *t
	clone.Members = append([]MemberRef(nil), t.Members...)
	if t.ProblemID != nil {
		pid := *t.ProblemID
		clone.ProblemID = &pid
	}
	if t.PanelID != nil {
		pid := *t.PanelID
		clone.PanelID = &pid
	}
	if t.UniversityTeamID != nil {
		uid := *t.UniversityTeamID
		clone.UniversityTeamID = &uid
	}
	return &clone
}
