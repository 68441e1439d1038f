package store

import (
	"context"
	"slices"
	"sync"

	"caskhouse/internal/consentlog/models"
	"caskhouse/pkg/platform/sentinel"
)

// InMemoryStore keeps consent entries per visitor, in arrival order.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]models.Entry
	ids     map[string]struct{}
}

func New() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string][]models.Entry),
		ids:     make(map[string]struct{}),
	}
}

func (s *InMemoryStore) Append(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entry.ID.String()
	if _, dup := s.ids[key]; dup {
		return sentinel.ErrConflict
	}
	s.ids[key] = struct{}{}
	s.entries[entry.VisitorID] = append(s.entries[entry.VisitorID], *entry)
	return nil
}

// ListByVisitor returns the newest entries first.
func (s *InMemoryStore) ListByVisitor(_ context.Context, visitorID string, filter models.Filter) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.entries[visitorID]
	out := make([]*models.Entry, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		e := stored[i]
		if !filter.Since.IsZero() && e.ReceivedAt.Before(filter.Since) {
			continue
		}
		out = append(out, &e)
		if len(out) == filter.EffectiveLimit() {
			break
		}
	}
	slices.SortStableFunc(out, func(a, b *models.Entry) int {
		return b.ReceivedAt.Compare(a.ReceivedAt)
	})
	return out, nil
}

func (s *InMemoryStore) CountByVisitor(_ context.Context, visitorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[visitorID]), nil
}
