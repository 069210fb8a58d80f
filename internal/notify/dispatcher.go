package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Dispatcher decouples notification senders from delivery. Enqueue never
// blocks; when the buffer is full the message is dropped and counted, because
// a slow mail relay must never back-pressure a roster write.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
	inbox    chan Message

	mu      sync.Mutex
	dropped int64
}

// NewDispatcher builds a dispatcher with the given buffer size.
func NewDispatcher(notifier Notifier, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		notifier: notifier,
		logger:   logger,
		inbox:    make(chan Message, buffer),
	}
}

// Enqueue hands a message to the dispatch worker without blocking.
func (d *Dispatcher) Enqueue(msg Message) {
	select {
	case d.inbox <- msg:
	default:
		d.mu.Lock()
		d.dropped++
		dropped := d.dropped
		d.mu.Unlock()
		if d.logger != nil {
			d.logger.Warn("notification dropped, dispatch buffer full",
				"kind", msg.Kind, "dropped_total", dropped)
		}
	}
}

// Dropped reports how many messages were discarded on a full buffer.
func (d *Dispatcher) Dropped() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Run delivers queued messages until ctx is cancelled, then drains what is
// already buffered.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case msg := <-d.inbox:
					d.deliver(context.Background(), msg)
				default:
					return
				}
			}
		case msg := <-d.inbox:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	if err := d.notifier.Notify(ctx, msg); err != nil && d.logger != nil {
		d.logger.WarnContext(ctx, "notification delivery failed",
			"kind", msg.Kind, "recipient", msg.Recipient, "error", err)
	}
}

// SlogNotifier logs notifications instead of delivering them. It is the
// development and test implementation of the port.
type SlogNotifier struct {
	Logger *slog.Logger
}

func (n *SlogNotifier) Notify(ctx context.Context, msg Message) error {
	if n.Logger != nil {
		n.Logger.InfoContext(ctx, "notify",
			"kind", msg.Kind, "recipient", msg.Recipient)
	}
	return nil
}
