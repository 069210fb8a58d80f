// Package kafka publishes audit events to the shared audit topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "hackgate/pkg/platform/audit"
)

// Publisher delivers audit events to Kafka. Production is asynchronous; a
// failed delivery is reported through the completion callback and logged by
// the caller via audit.Emit, never surfaced to domain operations.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and ensures the audit topic exists.
func New(ctx context.Context, brokers []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopics(ctx, 1, 1, nil, topic); err != nil {
		// Topic may already exist; only fail on connectivity problems.
		if ctx.Err() != nil {
			client.Close()
			return nil, fmt.Errorf("ensure audit topic: %w", err)
		}
	}

	return &Publisher{client: client, topic: topic}, nil
}

func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.TeamID),
		Value: value,
	}
	p.client.Produce(ctx, record, nil)
	return nil
}

// Flush drains pending records, used on shutdown.
func (p *Publisher) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}

func (p *Publisher) Close() {
	p.client.Close()
}
