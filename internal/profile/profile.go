// Package profile is the port onto the external identity & profile store.
//
// The engine reads a narrow projection of a user record and writes team
// membership linkage back. Team documents keep their own denormalized member
// snapshots taken at join time; when both copies exist, the profile store is
// authoritative for contact and display data; the snapshot is allowed to
// drift until the member's next edit.
package profile

import (
	"context"

	id "hackgate/pkg/domain"
)

// Profile is the projection of a user record this engine consumes.
type Profile struct {
	ID        id.UserID
	Name      string
	Email     string
	Gender    id.Gender
	Institute string
	Role      string
	// TeamID is the membership linkage maintained by this engine. Nil when
	// the user belongs to no team.
	TeamID *id.TeamID
}

// Store is the external collaborator interface.
type Store interface {
	GetProfile(ctx context.Context, userID id.UserID) (Profile, error)
	// SetTeamLink writes membership linkage back. A nil teamID detaches.
	SetTeamLink(ctx context.Context, userID id.UserID, teamID *id.TeamID) error
}
