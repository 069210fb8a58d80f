// Package notify is the fire-and-forget notification port. The engine hands
// events off and never waits on delivery; the actual channel (email, in-app)
// lives behind the Notifier interface.
package notify

import "context"

// Kind names the notification template.
type Kind string

const (
	KindMemberJoined      Kind = "member_joined"
	KindTeamNominated     Kind = "team_nominated"
	KindPanelActivated    Kind = "panel_activated"
	KindSelectionRecorded Kind = "selection_recorded"
)

// Message is one notification to one recipient.
type Message struct {
	Recipient string         `json:"recipient"`
	Kind      Kind           `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Notifier delivers a message. Implementations must be safe for concurrent
// use.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Enqueuer accepts messages for asynchronous delivery. The Dispatcher
// implements it; services hold it so they never block on a channel.
type Enqueuer interface {
	Enqueue(msg Message)
}
