// Package models holds the jury panel aggregate and its state machine.
package models

import (
	"strings"
	"time"

	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
)

// Panel size bounds.
const (
	MinPanelSize = 2
	MaxPanelSize = 4
)

// Status of a panel. Draft panels are freely editable; active panels have
// provisioned accounts and a frozen member count.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusActive Status = "active"
)

// Member is one evaluator on a panel. IdentityID is nil until the panel is
// finalized and an external account exists for the member.
type Member struct {
	IdentityID *id.IdentityID `json:"identity_id,omitempty"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Institute  string         `json:"institute"`
	ContactNo  string         `json:"contact_no"`
	Department string         `json:"department"`
}

// Provisioned reports whether the member already has an external account.
func (m Member) Provisioned() bool { return m.IdentityID != nil }

// Panel is the aggregate root for a jury panel.
//
// State machine: draft --finalize--> active, one way. Draft panels may
// add, remove, and replace members freely; active panels may only replace an
// existing member, keeping the count frozen.
type Panel struct {
	ID      id.PanelID `json:"id"`
	Name    string     `json:"name"`
	Status  Status     `json:"status"`
	Members []Member   `json:"members"`

	StudentCoordinator *string `json:"student_coordinator,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPanel constructs a draft panel.
func NewPanel(panelID id.PanelID, name string, members []Member, now time.Time) (*Panel, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "panel name cannot be empty")
	}
	if err := validateMembers(members); err != nil {
		return nil, err
	}
	return &Panel{
		ID:        panelID,
		Name:      name,
		Status:    StatusDraft,
		Members:   append([]Member(nil), members...),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func validateMembers(members []Member) error {
	if len(members) < MinPanelSize || len(members) > MaxPanelSize {
		return dErrors.New(dErrors.CodeInvalidMemberCount, "panel needs between 2 and 4 members")
	}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		email := strings.ToLower(m.Email)
		if m.Name == "" || email == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "panel member needs a name and email")
		}
		if seen[email] {
			return dErrors.New(dErrors.CodeInvalidInput, "panel members must have distinct emails")
		}
		seen[email] = true
	}
	return nil
}

// SetMembers replaces the whole member list. Draft only.
func (p *Panel) SetMembers(members []Member, now time.Time) error {
	if p.Status != StatusDraft {
		return dErrors.New(dErrors.CodeInvariantViolation, "active panels only replace individual members")
	}
	if err := validateMembers(members); err != nil {
		return err
	}
	p.Members = append([]Member(nil), members...)
	p.UpdatedAt = now
	return nil
}

// SetStudentCoordinator records the optional coordinating student.
func (p *Panel) SetStudentCoordinator(coordinator *string, now time.Time) {
	p.StudentCoordinator = coordinator
	p.UpdatedAt = now
}

// MarkActive transitions the panel out of draft. Every member must carry a
// provisioned identity by then.
func (p *Panel) MarkActive(now time.Time) error {
	if p.Status == StatusActive {
		return nil
	}
	for _, m := range p.Members {
		if !m.Provisioned() {
			return dErrors.New(dErrors.CodeInvariantViolation, "cannot activate a panel with unprovisioned members")
		}
	}
	p.Status = StatusActive
	p.UpdatedAt = now
	return nil
}

// ReplaceMember swaps the member at index for a new one. Active only; the
// member count is frozen once a panel is active. Returns the outgoing member
// so the caller can invalidate their account.
func (p *Panel) ReplaceMember(index int, member Member, now time.Time) (Member, error) {
	if p.Status != StatusActive {
		return Member{}, dErrors.New(dErrors.CodeInvariantViolation, "draft panels edit members through the draft update")
	}
	if index < 0 || index >= len(p.Members) {
		return Member{}, dErrors.New(dErrors.CodeNotFound, "no panel member at that position")
	}
	if member.Name == "" || member.Email == "" {
		return Member{}, dErrors.New(dErrors.CodeInvalidInput, "panel member needs a name and email")
	}
	for n, existing := range p.Members {
		if n != index && strings.EqualFold(existing.Email, member.Email) {
			return Member{}, dErrors.New(dErrors.CodeInvalidInput, "panel members must have distinct emails")
		}
	}
	outgoing := p.Members[index]
	p.Members[index] = member
	p.UpdatedAt = now
	return outgoing, nil
}

// IdentityIDs returns the provisioned identities on the panel.
func (p *Panel) IdentityIDs() []id.IdentityID {
	ids := make([]id.IdentityID, 0, len(p.Members))
	for _, m := range p.Members {
		if m.IdentityID != nil {
			ids = append(ids, *m.IdentityID)
		}
	}
	return ids
}

// Clone returns a deep copy for stores handing out values.
func (p *Panel) Clone() *Panel {
	clone := *p
	clone.Members = make([]Member, len(p.Members))
	for n, m := range p.Members {
		if m.IdentityID != nil {
			identityID := *m.IdentityID
			m.IdentityID = &identityID
		}
		clone.Members[n] = m
	}
	if p.StudentCoordinator != nil {
		coordinator := *p.StudentCoordinator
		clone.StudentCoordinator = &coordinator
	}
	return &clone
}
