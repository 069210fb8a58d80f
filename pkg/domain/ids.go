// Package domain holds typed identifiers and shared enums used across modules.
//
// IDs wrap uuid.UUID in distinct named types so the compiler rejects passing a
// TeamID where a PanelID is expected. Parse functions enforce the invariant
// that IDs are valid, non-empty, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "hackgate/pkg/domain-errors"
)

type (
	// UserID identifies a participant or coordinator in the profile store.
	UserID uuid.UUID
	// TeamID identifies a team aggregate.
	TeamID uuid.UUID
	// InviteID identifies a single-use join token.
	InviteID uuid.UUID
	// InstituteID identifies an institute with its own quotas and schedule.
	InstituteID uuid.UUID
	// PanelID identifies a jury panel.
	PanelID uuid.UUID
	// ProblemID identifies a problem statement.
	ProblemID uuid.UUID
	// IdentityID identifies an externally provisioned jury account.
	IdentityID uuid.UUID
)

func (id UserID) String() string      { return uuid.UUID(id).String() }
func (id TeamID) String() string      { return uuid.UUID(id).String() }
func (id InviteID) String() string    { return uuid.UUID(id).String() }
func (id InstituteID) String() string { return uuid.UUID(id).String() }
func (id PanelID) String() string     { return uuid.UUID(id).String() }
func (id ProblemID) String() string   { return uuid.UUID(id).String() }
func (id IdentityID) String() string  { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id TeamID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id InviteID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id InstituteID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PanelID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ProblemID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id IdentityID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func NewUserID() UserID           { return UserID(uuid.New()) }
func NewTeamID() TeamID           { return TeamID(uuid.New()) }
func NewInviteID() InviteID       { return InviteID(uuid.New()) }
func NewInstituteID() InstituteID { return InstituteID(uuid.New()) }
func NewPanelID() PanelID         { return PanelID(uuid.New()) }
func NewProblemID() ProblemID     { return ProblemID(uuid.New()) }
func NewIdentityID() IdentityID   { return IdentityID(uuid.New()) }

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return parsed, nil
}

func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID(raw)
	return UserID(u), err
}

func ParseTeamID(raw string) (TeamID, error) {
	u, err := parseUUID(raw)
	return TeamID(u), err
}

func ParseInviteID(raw string) (InviteID, error) {
	u, err := parseUUID(raw)
	return InviteID(u), err
}

func ParseInstituteID(raw string) (InstituteID, error) {
	u, err := parseUUID(raw)
	return InstituteID(u), err
}

func ParsePanelID(raw string) (PanelID, error) {
	u, err := parseUUID(raw)
	return PanelID(u), err
}

func ParseProblemID(raw string) (ProblemID, error) {
	u, err := parseUUID(raw)
	return ProblemID(u), err
}

func ParseIdentityID(raw string) (IdentityID, error) {
	u, err := parseUUID(raw)
	return IdentityID(u), err
}
