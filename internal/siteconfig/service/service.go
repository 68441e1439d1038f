package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"caskhouse/internal/audit"
	"caskhouse/internal/siteconfig/models"
	dErrors "caskhouse/pkg/domain-errors"
	"caskhouse/pkg/platform/sentinel"
	"caskhouse/pkg/requestcontext"
)

// Store persists settings documents.
// Error contract: Get returns sentinel.ErrNotFound for an absent key;
// Create returns sentinel.ErrConflict when the key already exists.
type Store interface {
	Get(ctx context.Context, key string) (*models.Config, error)
	Put(ctx context.Context, c *models.Config) error
	Create(ctx context.Context, c *models.Config) error
}

type Option func(*Service)

// Service serves site settings from the persisted store. There is no
// built-in fallback document: an absent key is reported as not found.
type Service struct {
	store   Store
	auditor *audit.Publisher
	logger  *slog.Logger
}

func NewService(store Store, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{store: store, auditor: auditor, logger: logger}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func (s *Service) Get(ctx context.Context, key string) (*models.Config, error) {
	if key == "" {
		key = models.DefaultKey
	}
	c, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "site config not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load site config")
	}
	return c, nil
}

// Update replaces the whole document for req.Key. The admin subject on the
// context is recorded as the author.
func (s *Service) Update(ctx context.Context, req *models.UpdateRequest) (*models.Config, error) {
	if req == nil || req.Settings == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "settings is required")
	}
	settings, err := json.Marshal(req.Settings)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "settings must be a JSON object")
	}
	key := req.Key
	if key == "" {
		key = models.DefaultKey
	}
	c := &models.Config{
		Key:       key,
		Settings:  settings,
		UpdatedBy: requestcontext.AdminSubject(ctx),
		UpdatedAt: requestcontext.Now(ctx).UTC(),
	}
	if err := s.store.Put(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store site config")
	}

	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Action: string(audit.ActionSiteConfigUpdated),
			Reason: "key=" + key,
		}); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to emit site config audit event",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	return c, nil
}

// SeedFile loads a YAML document mapping keys to settings and creates every
// key that is not stored yet. Existing documents are never overwritten.
func (s *Service) SeedFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open site config seed: %w", err)
	}
	defer f.Close()
	return s.Seed(ctx, f)
}

func (s *Service) Seed(ctx context.Context, r io.Reader) (int, error) {
	var docs map[string]map[string]any
	if err := yaml.NewDecoder(r).Decode(&docs); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("decode site config seed: %w", err)
	}

	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	created := 0
	for _, key := range keys {
		settings, err := json.Marshal(docs[key])
		if err != nil {
			return created, fmt.Errorf("encode seed %q: %w", key, err)
		}
		err = s.store.Create(ctx, &models.Config{
			Key:       key,
			Settings:  settings,
			UpdatedBy: "seed",
			UpdatedAt: requestcontext.Now(ctx).UTC(),
		})
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			continue
		case err != nil:
			return created, fmt.Errorf("create seed %q: %w", key, err)
		}
		created++
		if s.logger != nil {
			s.logger.InfoContext(ctx, "seeded site config", "key", key)
		}
	}
	return created, nil
}
