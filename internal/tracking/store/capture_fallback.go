package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"caskhouse/internal/tracking/models"
	"caskhouse/pkg/platform/circuit"
)

// CapturePrimary is the shared capture backend, in practice Redis.
type CapturePrimary interface {
	Put(ctx context.Context, c *models.CapturedField) error
	ListByVisitor(ctx context.Context, visitorID string) ([]*models.CapturedField, error)
	DeleteByVisitor(ctx context.Context, visitorID string) (int, error)
}

// FallbackCaptureStore writes to the primary and, once the breaker opens,
// keeps captures in process memory until the primary recovers. Reads merge
// both sides and erasure always clears both.
type FallbackCaptureStore struct {
	primary  CapturePrimary
	fallback *InMemoryCaptureStore
	breaker  *circuit.Breaker
}

func NewFallbackCaptureStore(primary CapturePrimary, fallback *InMemoryCaptureStore, logger *slog.Logger) *FallbackCaptureStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackCaptureStore{
		primary:  primary,
		fallback: fallback,
		breaker: circuit.New("capture_store",
			circuit.WithStateListener(func(name string, to circuit.State) {
				logger.Warn("capture store circuit changed", "breaker", name, "state", to.String())
			}),
		),
	}
}

func (s *FallbackCaptureStore) Breaker() *circuit.Breaker {
	return s.breaker
}

func (s *FallbackCaptureStore) Put(ctx context.Context, c *models.CapturedField) error {
	return s.breaker.Execute(ctx,
		func(ctx context.Context) error { return s.primary.Put(ctx, c) },
		func(ctx context.Context) error { return s.fallback.Put(ctx, c) },
	)
}

// ListByVisitor prefers the newer capture when both sides hold the same key.
func (s *FallbackCaptureStore) ListByVisitor(ctx context.Context, visitorID string) ([]*models.CapturedField, error) {
	local, err := s.fallback.ListByVisitor(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	remote, err := s.primary.ListByVisitor(ctx, visitorID)
	if err != nil {
		if len(local) > 0 {
			return local, nil
		}
		return nil, err
	}
	if len(local) == 0 {
		return remote, nil
	}

	byKey := make(map[string]*models.CapturedField, len(remote)+len(local))
	for _, c := range remote {
		byKey[c.Key()] = c
	}
	for _, c := range local {
		if prev, ok := byKey[c.Key()]; !ok || c.CapturedAt.After(prev.CapturedAt) {
			byKey[c.Key()] = c
		}
	}
	out := make([]*models.CapturedField, 0, len(byKey))
	for _, c := range byKey {
		out = append(out, c)
	}
	sortCaptures(out)
	return out, nil
}

// DeleteByVisitor reports a primary failure even when the fallback was
// cleared, so the erasure can be retried.
func (s *FallbackCaptureStore) DeleteByVisitor(ctx context.Context, visitorID string) (int, error) {
	local, localErr := s.fallback.DeleteByVisitor(ctx, visitorID)
	remote, remoteErr := s.primary.DeleteByVisitor(ctx, visitorID)
	return local + remote, errors.Join(localErr, remoteErr)
}

// DeleteExpired sweeps the in-memory side; the primary expires by TTL.
func (s *FallbackCaptureStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return s.fallback.DeleteExpired(ctx, now)
}
