// Package store persists jury panels.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"hackgate/internal/jury/models"
	id "hackgate/pkg/domain"
	"hackgate/pkg/platform/sentinel"
)

// InMemoryStore backs the panel store for development and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	panels map[id.PanelID]*models.Panel
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{panels: make(map[id.PanelID]*models.Panel)}
}

func (s *InMemoryStore) Create(_ context.Context, panel *models.Panel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.panels[panel.ID]; exists {
		return fmt.Errorf("panel %s: %w", panel.ID, sentinel.ErrConflict)
	}
	stored := panel.Clone()
	stored.Version = 1
	s.panels[panel.ID] = stored
	panel.Version = stored.Version
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, panelID id.PanelID) (*models.Panel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if panel, ok := s.panels[panelID]; ok {
		return panel.Clone(), nil
	}
	return nil, fmt.Errorf("panel %s: %w", panelID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Panel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	panels := make([]*models.Panel, 0, len(s.panels))
	for _, panel := range s.panels {
		panels = append(panels, panel.Clone())
	}
	sort.Slice(panels, func(a, b int) bool { return panels[a].CreatedAt.Before(panels[b].CreatedAt) })
	return panels, nil
}

// Update writes the panel back, failing with ErrConflict when the stored
// version moved since the caller's read.
func (s *InMemoryStore) Update(_ context.Context, panel *models.Panel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.panels[panel.ID]
	if !ok {
		return fmt.Errorf("panel %s: %w", panel.ID, sentinel.ErrNotFound)
	}
	if current.Version != panel.Version {
		return fmt.Errorf("panel %s version %d: %w", panel.ID, panel.Version, sentinel.ErrConflict)
	}
	stored := panel.Clone()
	stored.Version = current.Version + 1
	s.panels[panel.ID] = stored
	panel.Version = stored.Version
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, panelID id.PanelID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.panels[panelID]; !ok {
		return fmt.Errorf("panel %s: %w", panelID, sentinel.ErrNotFound)
	}
	delete(s.panels, panelID)
	return nil
}
