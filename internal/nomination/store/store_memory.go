// Package store persists institutes for the nomination quota manager.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"hackgate/internal/nomination/models"
	id "hackgate/pkg/domain"
	"hackgate/pkg/platform/sentinel"
)

// InMemoryStore backs the institute store for development and tests.
type InMemoryStore struct {
	mu         sync.RWMutex
	institutes map[id.InstituteID]*models.Institute
	byName     map[string]id.InstituteID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		institutes: make(map[id.InstituteID]*models.Institute),
		byName:     make(map[string]id.InstituteID),
	}
}

func nameKey(name string) string { return strings.ToLower(name) }

func (s *InMemoryStore) Create(_ context.Context, institute *models.Institute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.institutes[institute.ID]; exists {
		return fmt.Errorf("institute %s: %w", institute.ID, sentinel.ErrConflict)
	}
	if _, exists := s.byName[nameKey(institute.Name)]; exists {
		return fmt.Errorf("institute %q: %w", institute.Name, sentinel.ErrConflict)
	}
	stored := institute.Clone()
	stored.Version = 1
	s.institutes[institute.ID] = stored
	s.byName[nameKey(institute.Name)] = institute.ID
	institute.Version = stored.Version
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, instituteID id.InstituteID) (*models.Institute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if institute, ok := s.institutes[instituteID]; ok {
		return institute.Clone(), nil
	}
	return nil, fmt.Errorf("institute %s: %w", instituteID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByName(_ context.Context, name string) (*models.Institute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if instituteID, ok := s.byName[nameKey(name)]; ok {
		return s.institutes[instituteID].Clone(), nil
	}
	return nil, fmt.Errorf("institute %q: %w", name, sentinel.ErrNotFound)
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Institute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	institutes := make([]*models.Institute, 0, len(s.institutes))
	for _, institute := range s.institutes {
		institutes = append(institutes, institute.Clone())
	}
	sort.Slice(institutes, func(a, b int) bool { return institutes[a].Name < institutes[b].Name })
	return institutes, nil
}

// Update writes the institute back, failing with ErrConflict when the stored
// version moved since the caller's read.
func (s *InMemoryStore) Update(_ context.Context, institute *models.Institute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.institutes[institute.ID]
	if !ok {
		return fmt.Errorf("institute %s: %w", institute.ID, sentinel.ErrNotFound)
	}
	if current.Version != institute.Version {
		return fmt.Errorf("institute %s version %d: %w", institute.ID, institute.Version, sentinel.ErrConflict)
	}
	stored := institute.Clone()
	stored.Version = current.Version + 1
	if nameKey(current.Name) != nameKey(stored.Name) {
		delete(s.byName, nameKey(current.Name))
		s.byName[nameKey(stored.Name)] = stored.ID
	}
	s.institutes[institute.ID] = stored
	institute.Version = stored.Version
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, instituteID id.InstituteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	institute, ok := s.institutes[instituteID]
	if !ok {
		return fmt.Errorf("institute %s: %w", instituteID, sentinel.ErrNotFound)
	}
	delete(s.byName, nameKey(institute.Name))
	delete(s.institutes, instituteID)
	return nil
}
