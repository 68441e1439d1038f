package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	consent "caskhouse/contracts/consent"
	"caskhouse/internal/audit"
	"caskhouse/internal/gdpr/metrics"
	dErrors "caskhouse/pkg/domain-errors"
	"caskhouse/pkg/platform/tracer"
	"caskhouse/pkg/requestcontext"
)

// Eraser removes one visitor's data from each tracking store and reports
// how many records went.
type Eraser interface {
	EraseVisitor(ctx context.Context, visitorID string) (int, error)
	EraseEvents(ctx context.Context, visitorID string) (int, error)
	EraseCaptures(ctx context.Context, visitorID string) (int, error)
}

// Result is the outcome of a completed erasure.
type Result struct {
	VisitorID      string
	Visitors       int
	Events         int
	CapturedFields int
}

func (r *Result) Response() consent.ErasureResponse {
	return consent.ErasureResponse{
		VisitorID:      r.VisitorID,
		Status:         "erased",
		Visitors:       r.Visitors,
		Events:         r.Events,
		CapturedFields: r.CapturedFields,
	}
}

type Option func(*Service)

// Service handles right-to-erasure requests. Consent logs are kept: they are
// the record that consent was given or withdrawn.
type Service struct {
	eraser  Eraser
	auditor *audit.Publisher
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	logger  *slog.Logger
}

func NewService(eraser Eraser, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		eraser:  eraser,
		auditor: auditor,
		logger:  logger,
		tracer:  tracer.NewNoop(),
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

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// Erase removes the visitor from every tracking store concurrently. The
// first failing store cancels the others; the request may be retried since
// each step is idempotent.
func (s *Service) Erase(ctx context.Context, req *consent.ErasureRequest) (_ *Result, err error) {
	if req == nil || req.VisitorID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "visitorId is required")
	}
	visitorID := req.VisitorID
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, tracer.SpanErasure,
		tracer.String(tracer.AttrVisitorHash, tracer.HashVisitorID(visitorID)),
	)
	defer func() { span.End(err) }()

	s.emitAudit(ctx, audit.Event{
		VisitorID: visitorID,
		Action:    string(audit.ActionErasureRequested),
		Reason:    "data_subject_request",
	})

	result := &Result{VisitorID: visitorID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.step(gctx, "visitors", visitorID, s.eraser.EraseVisitor, &result.Visitors)
	})
	g.Go(func() error {
		return s.step(gctx, "events", visitorID, s.eraser.EraseEvents, &result.Events)
	})
	g.Go(func() error {
		return s.step(gctx, "captured_fields", visitorID, s.eraser.EraseCaptures, &result.CapturedFields)
	})

	if err := g.Wait(); err != nil {
		s.emitAudit(ctx, audit.Event{
			VisitorID: visitorID,
			Action:    string(audit.ActionErasureFailed),
			Reason:    "store_error",
		})
		s.observe(false, nil, start)
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "erasure failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to erase visitor data")
	}

	s.emitAudit(ctx, audit.Event{
		VisitorID: visitorID,
		Action:    string(audit.ActionErasureCompleted),
		Reason:    "data_subject_request",
	})
	s.observe(true, result, start)
	return result, nil
}

// step writes into its own counter; errgroup.Wait orders the writes before
// the caller reads result.
func (s *Service) step(ctx context.Context, name, visitorID string, erase func(context.Context, string) (int, error), into *int) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanErasureStep, tracer.String(tracer.AttrStep, name))
	defer func() { span.End(err) }()

	n, err := erase(ctx, visitorID)
	if err != nil {
		return err
	}
	*into = n
	span.SetAttributes(tracer.Int64(tracer.AttrRemoved, int64(n)))
	return nil
}

func (s *Service) observe(ok bool, result *Result, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncrementErasure(ok)
	s.metrics.ObserveDuration(time.Since(start).Seconds())
	if result != nil {
		s.metrics.AddRecords("visitors", result.Visitors)
		s.metrics.AddRecords("events", result.Events)
		s.metrics.AddRecords("captured_fields", result.CapturedFields)
	}
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit erasure audit event",
			"error", err,
			"action", event.Action,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
