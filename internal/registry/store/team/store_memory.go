package team

import (
	"context"
	"fmt"
	"sync"

	id "hackgate/pkg/domain"
	"hackgate/internal/registry/models"
	"hackgate/pkg/platform/sentinel"
)

// Error contract: stores return sentinel errors (optionally wrapped); the
// service translates them into coded domain errors.

// InMemoryStore keeps teams in memory for development and tests. Updates are
// guarded by the aggregate version so concurrent writers detect lost updates
// the same way the Postgres store does.
type InMemoryStore struct {
	mu    sync.RWMutex
	teams map[id.TeamID]*models.Team
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{teams: make(map[id.TeamID]*models.Team)}
}

func (s *InMemoryStore) Create(_ context.Context, team *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.teams[team.ID]; exists {
		return fmt.Errorf("team %s: %w", team.ID, sentinel.ErrConflict)
	}
	stored := team.Clone()
	stored.Version = 1
	s.teams[team.ID] = stored
	team.Version = 1
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, teamID id.TeamID) (*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.teams[teamID]; ok {
		return t.Clone(), nil
	}
	return nil, fmt.Errorf("team %s: %w", teamID, sentinel.ErrNotFound)
}

// FindByMember returns the team whose roster contains the identity. At most
// one team may hold a given identity; the service enforces that on join.
func (s *InMemoryStore) FindByMember(_ context.Context, userID id.UserID) (*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.teams {
		if t.HasMember(userID) {
			return t.Clone(), nil
		}
	}
	return nil, fmt.Errorf("no team for member %s: %w", userID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByInstitute(_ context.Context, institute string) ([]*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Team
	for _, t := range s.teams {
		if t.Institute == institute {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

// Update writes the team back iff its version still matches, then bumps the
// version. A mismatch means a concurrent writer won; callers re-read and
// retry.
func (s *InMemoryStore) Update(_ context.Context, team *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.teams[team.ID]
	if !ok {
		return fmt.Errorf("team %s: %w", team.ID, sentinel.ErrNotFound)
	}
	if current.Version != team.Version {
		return fmt.Errorf("team %s version %d: %w", team.ID, team.Version, sentinel.ErrConflict)
	}
	stored := team.Clone()
	stored.Version = current.Version + 1
	s.teams[team.ID] = stored
	team.Version = stored.Version
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, teamID id.TeamID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[teamID]; !ok {
		return fmt.Errorf("team %s: %w", teamID, sentinel.ErrNotFound)
	}
	delete(s.teams, teamID)
	return nil
}

// CountNominated is the live quota counter: nominated teams of the institute
// whose category falls in the given quota bucket. Never cached.
func (s *InMemoryStore) CountNominated(_ context.Context, institute string, bucket id.Category) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, t := range s.teams {
		if t.Nominated && t.Institute == institute && t.Category.QuotaBucket() == bucket {
			count++
		}
	}
	return count, nil
}
