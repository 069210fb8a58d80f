// Package store provides invite token persistence. Consume is the one
// operation that must be atomic across concurrent callers: exactly one
// consumer of a token observes success.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hackgate/internal/invite/models"
	id "hackgate/pkg/domain"
	"hackgate/pkg/platform/sentinel"
)

// InMemoryStore keeps invite tokens for development and tests.
type InMemoryStore struct {
	mu     sync.Mutex
	tokens map[id.InviteID]*models.Token
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tokens: make(map[id.InviteID]*models.Token)}
}

func (s *InMemoryStore) Create(_ context.Context, token *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[token.ID]; exists {
		return fmt.Errorf("invite %s: %w", token.ID, sentinel.ErrConflict)
	}
	s.tokens[token.ID] = token.Clone()
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, inviteID id.InviteID) (*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[inviteID]; ok {
		return t.Clone(), nil
	}
	return nil, fmt.Errorf("invite %s: %w", inviteID, sentinel.ErrNotFound)
}

// Consume transitions the token to consumed under the store lock. Exactly one
// caller succeeds; the rest observe ErrAlreadyUsed.
func (s *InMemoryStore) Consume(_ context.Context, inviteID id.InviteID, userID id.UserID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[inviteID]
	if !ok {
		return fmt.Errorf("invite %s: %w", inviteID, sentinel.ErrNotFound)
	}
	if token.Consumed() {
		return fmt.Errorf("invite %s: %w", inviteID, sentinel.ErrAlreadyUsed)
	}
	token.ConsumedAt = &now
	token.ConsumedBy = &userID
	return nil
}

// Unconsume rolls a consumption back when the join it authorized could not
// complete, restoring the token for a later attempt.
func (s *InMemoryStore) Unconsume(_ context.Context, inviteID id.InviteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[inviteID]
	if !ok {
		return fmt.Errorf("invite %s: %w", inviteID, sentinel.ErrNotFound)
	}
	token.ConsumedAt = nil
	token.ConsumedBy = nil
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, inviteID id.InviteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[inviteID]; !ok {
		return fmt.Errorf("invite %s: %w", inviteID, sentinel.ErrNotFound)
	}
	delete(s.tokens, inviteID)
	return nil
}

func (s *InMemoryStore) ListByTeam(_ context.Context, teamID id.TeamID) ([]*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Token
	for _, t := range s.tokens {
		if t.TeamID == teamID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

// DeleteByTeam removes every token bound to the team, consumed or not.
func (s *InMemoryStore) DeleteByTeam(_ context.Context, teamID id.TeamID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for inviteID, t := range s.tokens {
		if t.TeamID == teamID {
			delete(s.tokens, inviteID)
		}
	}
	return nil
}
