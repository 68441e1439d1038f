package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"caskhouse/internal/tracking/models"
)

// InMemoryCaptureStore keeps the latest value per visitor/form/field.
// Expired captures are hidden from reads and removed by DeleteExpired.
type InMemoryCaptureStore struct {
	mu       sync.RWMutex
	captures map[string]models.CapturedField
	now      func() time.Time
}

func NewCaptureStore() *InMemoryCaptureStore {
	return &InMemoryCaptureStore{
		captures: make(map[string]models.CapturedField),
		now:      time.Now,
	}
}

func (s *InMemoryCaptureStore) Put(_ context.Context, c *models.CapturedField) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures[c.Key()] = *c
	return nil
}

// ListByVisitor returns live captures ordered by capture time.
func (s *InMemoryCaptureStore) ListByVisitor(_ context.Context, visitorID string) ([]*models.CapturedField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var out []*models.CapturedField
	for _, c := range s.captures {
		if c.VisitorID != visitorID || c.Expired(now) {
			continue
		}
		out = append(out, &c)
	}
	sortCaptures(out)
	return out, nil
}

func (s *InMemoryCaptureStore) DeleteByVisitor(_ context.Context, visitorID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, c := range s.captures {
		if c.VisitorID == visitorID {
			delete(s.captures, key)
			n++
		}
	}
	return n, nil
}

// DeleteExpired removes captures whose expiry is at or before now.
func (s *InMemoryCaptureStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, c := range s.captures {
		if c.Expired(now) {
			delete(s.captures, key)
			n++
		}
	}
	return n, nil
}

func sortCaptures(cs []*models.CapturedField) {
	slices.SortFunc(cs, func(a, b *models.CapturedField) int {
		if c := a.CapturedAt.Compare(b.CapturedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Key(), b.Key())
	})
}
