package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	consent "caskhouse/contracts/consent"
	"caskhouse/internal/audit"
	"caskhouse/internal/consentlog/metrics"
	"caskhouse/internal/consentlog/models"
	dErrors "caskhouse/pkg/domain-errors"
	"caskhouse/pkg/platform/privacy"
	"caskhouse/pkg/platform/sentinel"
	"caskhouse/pkg/requestcontext"
)

// Store persists consent entries.
// Error contract: Append returns sentinel.ErrConflict for a duplicate id;
// other failures are wrapped infrastructure errors.
type Store interface {
	Append(ctx context.Context, entry *models.Entry) error
	ListByVisitor(ctx context.Context, visitorID string, filter models.Filter) ([]*models.Entry, error)
}

type Option func(*Service)

// Service records consent decisions reported by browsers and serves the
// per-visitor history to operators.
type Service struct {
	store   Store
	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	newID   func() uuid.UUID
}

func NewService(store Store, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		auditor: auditor,
		logger:  logger,
		newID:   uuid.New,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Log stores one decision. The client IP is truncated before it is stored
// and the server's receive time is authoritative for ordering.
func (s *Service) Log(ctx context.Context, req *consent.LogRequest) (*models.Entry, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if !req.Method.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "method must be one of: banner preferences api implied")
	}
	start := time.Now()

	now := requestcontext.Now(ctx)
	clientTS := req.Timestamp
	if clientTS.IsZero() {
		clientTS = req.Preferences.Timestamp
	}
	if clientTS.IsZero() {
		clientTS = now
	}
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = requestcontext.UserAgent(ctx)
	}

	entry := &models.Entry{
		ID:              s.newID(),
		VisitorID:       req.VisitorID,
		Necessary:       true,
		Analytics:       req.Preferences.Analytics,
		Marketing:       req.Preferences.Marketing,
		Functional:      req.Preferences.Functional,
		Version:         req.Preferences.Version,
		Method:          req.Method,
		PageURL:         req.URL,
		UserAgent:       userAgent,
		IPPrefix:        privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		ClientTimestamp: clientTS.UTC(),
		ReceivedAt:      now.UTC(),
	}
	if entry.Version == "" {
		entry.Version = consent.PreferencesVersion
	}

	if err := s.store.Append(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "consent entry already recorded")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record consent")
	}

	decision := string(entry.Decision())
	if req.Action != "" {
		decision = string(req.Action)
	}
	s.emitAudit(ctx, audit.Event{
		VisitorID: entry.VisitorID,
		Action:    string(audit.ActionConsentLogged),
		Method:    string(entry.Method),
		Decision:  decision,
		Reason:    "visitor_initiated",
		Timestamp: entry.ReceivedAt,
	})
	s.observe(entry, start)

	return entry, nil
}

// History returns a visitor's decisions, newest first.
func (s *Service) History(ctx context.Context, visitorID string, filter models.Filter) ([]*models.Entry, error) {
	if visitorID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "visitor_id is required")
	}
	entries, err := s.store.ListByVisitor(ctx, visitorID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consent entries")
	}
	return entries, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit consent audit event",
			"error", err,
			"action", event.Action,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) observe(entry *models.Entry, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncrementDecision(string(entry.Method), string(entry.Decision()))
	for _, c := range consent.OptionalCategories {
		if entry.Allows(c) {
			s.metrics.IncrementCategory(string(c))
		}
	}
	s.metrics.ObserveLogLatency(time.Since(start).Seconds())
}
