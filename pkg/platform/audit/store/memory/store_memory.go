package memory

import (
	"context"
	"sync"

	audit "hackgate/pkg/platform/audit"
)

// InMemoryStore keeps audit events for tests and development.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Emit lets the store double as a synchronous Publisher in tests.
func (s *InMemoryStore) Emit(ctx context.Context, event audit.Event) error {
	return s.Append(ctx, event)
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...), nil
}

// ListByTeam returns events touching the given team.
func (s *InMemoryStore) ListByTeam(_ context.Context, teamID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.TeamID == teamID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
