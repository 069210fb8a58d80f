// Package audit captures key lifecycle actions for later review. Events are
// transport-agnostic so stores and sinks can fan out: an in-memory store for
// tests, a channel worker for async persistence, and a Kafka publisher for the
// shared audit pipeline.
package audit

import (
	"context"
	"log/slog"
	"time"

	id "hackgate/pkg/domain"
)

// Action names the audited lifecycle event.
type Action string

const (
	ActionTeamCreated         Action = "team_created"
	ActionTeamDeleted         Action = "team_deleted"
	ActionMemberJoined        Action = "member_joined"
	ActionMemberRemoved       Action = "member_removed"
	ActionInviteIssued        Action = "invite_issued"
	ActionInviteRevoked       Action = "invite_revoked"
	ActionTeamNominated       Action = "team_nominated"
	ActionNominationWithdrawn Action = "nomination_withdrawn"
	ActionEvaluationDatesSet  Action = "evaluation_dates_set"
	ActionPanelCreated        Action = "panel_created"
	ActionPanelFinalized      Action = "panel_finalized"
	ActionPanelMemberReplaced Action = "panel_member_replaced"
	ActionPanelDeleted        Action = "panel_deleted"
	ActionTeamAssignedToPanel Action = "team_assigned_to_panel"
	ActionSelectionStatusSet  Action = "selection_status_set"
)

// Event is emitted from domain logic to capture key actions.
type Event struct {
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	// ActorID is who performed the action: a leader, a joining member, a SPOC
	// or an admin.
	ActorID id.UserID `json:"actor_id"`
	TeamID  string    `json:"team_id,omitempty"`
	Subject string    `json:"subject,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string `json:"request_id,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Publisher delivers events to a sink. Emission is best effort: domain
// operations never fail because the audit pipeline is down.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists events for retrieval.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emit publishes an event, logging instead of failing when no publisher is
// configured or emission errors out.
func Emit(ctx context.Context, logger *slog.Logger, publisher Publisher, event Event) {
	if publisher == nil {
		if logger != nil {
			logger.InfoContext(ctx, "audit", "action", event.Action, "team_id", event.TeamID, "actor_id", event.ActorID)
		}
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
