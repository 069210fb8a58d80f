package handler

import (
	"time"

	"hackgate/internal/invite/models"
)

// IssueResponse carries the one-time raw invite token.
type IssueResponse struct {
	Token string `json:"token"`
}

// TokenResponse is the listing projection of an invite. The secret hash never
// leaves the store.
type TokenResponse struct {
	ID         string     `json:"id"`
	TeamID     string     `json:"team_id"`
	CreatedAt  time.Time  `json:"created_at"`
	Consumed   bool       `json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	ConsumedBy *string    `json:"consumed_by,omitempty"`
}

// FromTokens converts stored invites to their listing projection.
func FromTokens(tokens []*models.Token) []TokenResponse {
	out := make([]TokenResponse, 0, len(tokens))
	for _, t := range tokens {
		resp := TokenResponse{
			ID:         t.ID.String(),
			TeamID:     t.TeamID.String(),
			CreatedAt:  t.CreatedAt,
			Consumed:   t.Consumed(),
			ConsumedAt: t.ConsumedAt,
		}
		if t.ConsumedBy != nil {
			by := t.ConsumedBy.String()
			resp.ConsumedBy = &by
		}
		out = append(out, resp)
	}
	return out
}
