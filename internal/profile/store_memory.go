package profile

import (
	"context"
	"fmt"
	"sync"

	id "hackgate/pkg/domain"
	"hackgate/pkg/platform/sentinel"
)

// InMemoryStore backs the profile port for development and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.UserID]Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.UserID]Profile)}
}

// Seed inserts or replaces a profile.
func (s *InMemoryStore) Seed(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *InMemoryStore) GetProfile(_ context.Context, userID id.UserID) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return Profile{}, fmt.Errorf("profile %s: %w", userID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) SetTeamLink(_ context.Context, userID id.UserID, teamID *id.TeamID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return fmt.Errorf("profile %s: %w", userID, sentinel.ErrNotFound)
	}
	p.TeamID = teamID
	s.profiles[userID] = p
	return nil
}
