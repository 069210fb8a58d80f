package models

import (
	"time"

	id "hackgate/pkg/domain"
)

// Token is a single-use join credential bound to one team. The URL segment a
// leader shares is "<id>.<secret>"; only the secret's hash is stored, so a
// leaked store dump cannot be replayed into joins.
//
// Lifecycle: Unconsumed -> Consumed, exactly once. A consumed token never
// grants a second join.
type Token struct {
	ID         id.InviteID
	TeamID     id.TeamID
	SecretHash string
	CreatedAt  time.Time
	ConsumedAt *time.Time
	ConsumedBy *id.UserID
}

// Consumed reports whether the token has been spent.
func (t *Token) Consumed() bool {
	return t.ConsumedAt != nil
}

// Clone returns a copy safe to hand out of a store.
func (t *Token) Clone() *Token {
	clone := *t
	if t.ConsumedAt != nil {
		at := *t.ConsumedAt
		clone.ConsumedAt = &at
	}
	if t.ConsumedBy != nil {
		by := *t.ConsumedBy
		clone.ConsumedBy = &by
	}
	return &clone
}
