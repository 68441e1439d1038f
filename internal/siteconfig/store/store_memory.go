package store

import (
	"context"
	"sync"

	"caskhouse/internal/siteconfig/models"
	"caskhouse/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	configs map[string]*models.Config
}

func New() *InMemoryStore {
	return &InMemoryStore{configs: make(map[string]*models.Config)}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*models.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *InMemoryStore) Put(_ context.Context, c *models.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[c.Key] = c.Clone()
	return nil
}

// Create stores c only if the key is absent; it returns sentinel.ErrConflict otherwise.
func (s *InMemoryStore) Create(_ context.Context, c *models.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[c.Key]; ok {
		return sentinel.ErrConflict
	}
	s.configs[c.Key] = c.Clone()
	return nil
}
