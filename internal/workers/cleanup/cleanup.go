package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval is how often expired captures are swept.
const DefaultInterval = 5 * time.Minute

// Expirer removes records whose expiry is at or before now.
type Expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Target names an Expirer for logging and error reporting.
type Target struct {
	Name  string
	Store Expirer
}

// Result maps a target name to the number of rows removed in one run.
type Result map[string]int

// Total returns the number of records removed across all targets.
func (r Result) Total() int {
	n := 0
	for _, v := range r {
		n += v
	}
	return n
}

// Service periodically removes expired transient records.
type Service struct {
	targets  []Target
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used for expiry comparisons.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(targets []Target, opts ...Option) (*Service, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("at least one cleanup target is required")
	}
	for _, t := range targets {
		if t.Name == "" || t.Store == nil {
			return nil, fmt.Errorf("cleanup target requires a name and a store")
		}
	}
	svc := &Service{
		targets:  targets,
		interval: DefaultInterval,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "capture cleanup failed", "error", err)
			}
			if n := res.Total(); n > 0 {
				s.logger.InfoContext(ctx, "expired captures removed", "removed", n)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce sweeps every target once. A failing target does not stop the
// others; errors are joined.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	now := s.now()
	res := make(Result, len(s.targets))
	var errs []error

	for _, t := range s.targets {
		n, err := t.Store.DeleteExpired(ctx, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("delete expired %s: %w", t.Name, err))
			continue
		}
		res[t.Name] = n
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}
