package worker

import (
	"context"

	audit "hackgate/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them, keeping
// emission off the request path.
type Worker struct {
	store audit.Store
	inbox <-chan audit.Event
}

func NewWorker(store audit.Store, inbox <-chan audit.Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}

// ChannelPublisher bridges Publisher emission onto a worker inbox. Emission
// drops events rather than blocking when the inbox is full.
type ChannelPublisher struct {
	inbox chan<- audit.Event
}

func NewChannelPublisher(inbox chan<- audit.Event) *ChannelPublisher {
	return &ChannelPublisher{inbox: inbox}
}

func (p *ChannelPublisher) Emit(ctx context.Context, event audit.Event) error {
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
