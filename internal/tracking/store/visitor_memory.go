package store

import (
	"context"
	"sync"

	"caskhouse/internal/tracking/models"
	"caskhouse/pkg/platform/sentinel"
)

// InMemoryVisitorStore keeps the latest snapshot per visitor.
type InMemoryVisitorStore struct {
	mu       sync.RWMutex
	visitors map[string]*models.Visitor
}

func NewVisitorStore() *InMemoryVisitorStore {
	return &InMemoryVisitorStore{visitors: make(map[string]*models.Visitor)}
}

// Upsert replaces the stored snapshot. The earliest known first visit is kept.
func (s *InMemoryVisitorStore) Upsert(_ context.Context, v *models.Visitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := v.Clone()
	if prev, ok := s.visitors[v.VisitorID]; ok {
		next.FirstVisit = earliest(prev.FirstVisit, next.FirstVisit)
	}
	s.visitors[v.VisitorID] = next
	return nil
}

func (s *InMemoryVisitorStore) Get(_ context.Context, visitorID string) (*models.Visitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.visitors[visitorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return v.Clone(), nil
}

func (s *InMemoryVisitorStore) Delete(_ context.Context, visitorID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visitors[visitorID]; !ok {
		return 0, nil
	}
	delete(s.visitors, visitorID)
	return 1, nil
}
