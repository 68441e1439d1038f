package store

import (
	"context"
	"sync"

	"caskhouse/internal/tracking/models"
	"caskhouse/pkg/platform/sentinel"
)

// InMemoryEventStore keeps events per visitor in arrival order.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[string][]models.Event
	ids    map[string]struct{}
}

func NewEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		events: make(map[string][]models.Event),
		ids:    make(map[string]struct{}),
	}
}

func (s *InMemoryEventStore) Append(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := e.ID.String()
	if _, dup := s.ids[key]; dup {
		return sentinel.ErrConflict
	}
	s.ids[key] = struct{}{}
	s.events[e.VisitorID] = append(s.events[e.VisitorID], *e)
	return nil
}

func (s *InMemoryEventStore) CountByVisitor(_ context.Context, visitorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events[visitorID]), nil
}

func (s *InMemoryEventStore) DeleteByVisitor(_ context.Context, visitorID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.events[visitorID]
	for _, e := range removed {
		delete(s.ids, e.ID.String())
	}
	delete(s.events, visitorID)
	return len(removed), nil
}

// ListByVisitor returns up to limit events, newest first.
func (s *InMemoryEventStore) ListByVisitor(_ context.Context, visitorID string, limit int) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.events[visitorID]
	out := make([]*models.Event, 0, min(limit, len(stored)))
	for i := len(stored) - 1; i >= 0 && len(out) < limit; i-- {
		e := stored[i]
		out = append(out, &e)
	}
	return out, nil
}
