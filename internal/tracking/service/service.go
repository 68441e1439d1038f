package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	tracking "caskhouse/contracts/tracking"
	"caskhouse/internal/audit"
	"caskhouse/internal/platform/kafka/producer"
	"caskhouse/internal/tracking/metrics"
	"caskhouse/internal/tracking/models"
	dErrors "caskhouse/pkg/domain-errors"
	"caskhouse/pkg/platform/privacy"
	"caskhouse/pkg/platform/sentinel"
	platformstrings "caskhouse/pkg/platform/strings"
	platformsync "caskhouse/pkg/platform/sync"
	"caskhouse/pkg/platform/tracer"
	"caskhouse/pkg/requestcontext"
)

// DefaultCaptureTTL is how long a captured field stays readable.
const DefaultCaptureTTL = 24 * time.Hour

// VisitorStore persists the latest snapshot per visitor.
// Error contract: Get returns sentinel.ErrNotFound for an unknown visitor.
type VisitorStore interface {
	Upsert(ctx context.Context, v *models.Visitor) error
	Get(ctx context.Context, visitorID string) (*models.Visitor, error)
	Delete(ctx context.Context, visitorID string) (int, error)
}

// EventStore archives tracking events.
type EventStore interface {
	Append(ctx context.Context, e *models.Event) error
	CountByVisitor(ctx context.Context, visitorID string) (int, error)
	ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*models.Event, error)
	DeleteByVisitor(ctx context.Context, visitorID string) (int, error)
}

// CaptureStore holds transient form-field captures.
type CaptureStore interface {
	Put(ctx context.Context, c *models.CapturedField) error
	ListByVisitor(ctx context.Context, visitorID string) ([]*models.CapturedField, error)
	DeleteByVisitor(ctx context.Context, visitorID string) (int, error)
}

type Option func(*Service)

// Service ingests visitor snapshots, events and field captures, and builds
// the operator lead view.
type Service struct {
	visitors   VisitorStore
	events     EventStore
	captures   CaptureStore
	auditor    *audit.Publisher
	publisher  producer.Publisher
	topic      string
	metrics    *metrics.Metrics
	tracer     tracer.Tracer
	logger     *slog.Logger
	captureTTL time.Duration
	newID      func() uuid.UUID

	// visitorLocks keeps writes for one visitor from interleaving with its
	// erasure.
	visitorLocks *platformsync.ShardedMutex
}

func NewService(visitors VisitorStore, events EventStore, captures CaptureStore, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		visitors:   visitors,
		events:     events,
		captures:   captures,
		auditor:    auditor,
		logger:     logger,
		tracer:     tracer.NewNoop(),
		captureTTL: DefaultCaptureTTL,
		newID:      uuid.New,

		visitorLocks: platformsync.NewShardedMutex(),
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

// WithPublisher forwards stored events to topic.
func WithPublisher(p producer.Publisher, topic string) Option {
	return func(s *Service) {
		s.publisher = p
		s.topic = topic
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithCaptureTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.captureTTL = ttl
		}
	}
}

// RecordVisitor stores the latest snapshot. Device fields come from the
// server's own User-Agent parse; the client IP is truncated.
func (s *Service) RecordVisitor(ctx context.Context, snap *tracking.VisitorSnapshot) (err error) {
	if snap == nil || snap.VisitorID == "" {
		return dErrors.New(dErrors.CodeValidation, "visitorId is required")
	}
	ctx, span := s.tracer.Start(ctx, tracer.SpanVisitorUpsert,
		tracer.String(tracer.AttrVisitorHash, tracer.HashVisitorID(snap.VisitorID)),
		tracer.String(tracer.AttrTrigger, string(snap.Trigger)),
	)
	defer func() { span.End(err) }()

	stored := snap.Clone()
	stored.EngagementScore = min(max(stored.EngagementScore, 0), 100)
	stored.Interests = platformstrings.DedupeAndTrimLower(stored.Interests)

	device := parseDevice(requestcontext.UserAgent(ctx), stored.Device)
	v := &models.Visitor{
		VisitorID:       stored.VisitorID,
		SessionID:       stored.SessionID,
		FirstVisit:      stored.FirstVisit.UTC(),
		Device:          device,
		IPPrefix:        privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		Email:           stored.Email,
		Name:            stored.Name,
		Phone:           stored.Phone,
		EngagementScore: stored.EngagementScore,
		PageViews:       stored.PageViews,
		Interests:       stored.Interests,
		Snapshot:        stored,
		UpdatedAt:       requestcontext.Now(ctx).UTC(),
	}

	s.visitorLocks.Lock(v.VisitorID)
	defer s.visitorLocks.Unlock(v.VisitorID)

	start := time.Now()
	if err := s.visitors.Upsert(ctx, v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store visitor")
	}
	if s.metrics != nil {
		s.metrics.IncrementSnapshot(string(snap.Trigger), device.Bot)
		s.metrics.ObserveStoreLatency("visitor_upsert", time.Since(start).Seconds())
	}
	return nil
}

// RecordEvent stores the event and, when a publisher is configured, forwards
// it to the events topic. Publishing failures are logged, not returned: the
// event is already stored.
func (s *Service) RecordEvent(ctx context.Context, req *tracking.EventRequest) (_ *models.Event, err error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	ctx, span := s.tracer.Start(ctx, tracer.SpanEventRecord,
		tracer.String(tracer.AttrVisitorHash, tracer.HashVisitorID(req.VisitorID)),
		tracer.String(tracer.AttrCategory, req.Category),
	)
	defer func() { span.End(err) }()

	now := requestcontext.Now(ctx).UTC()
	clientTS := req.Timestamp
	if clientTS.IsZero() {
		clientTS = now
	}
	event := &models.Event{
		ID:              s.newID(),
		VisitorID:       req.VisitorID,
		SessionID:       req.SessionID,
		Category:        req.Category,
		Action:          req.Action,
		Label:           req.Label,
		Value:           req.Value,
		PageURL:         req.PageURL,
		IPPrefix:        privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		ClientTimestamp: clientTS.UTC(),
		ReceivedAt:      now,
	}

	start := time.Now()
	s.visitorLocks.Lock(event.VisitorID)
	err = s.events.Append(ctx, event)
	s.visitorLocks.Unlock(event.VisitorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "event already recorded")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store event")
	}
	if s.metrics != nil {
		s.metrics.IncrementEvent(event.Category)
		s.metrics.ObserveStoreLatency("event_append", time.Since(start).Seconds())
	}

	published := s.publish(ctx, event)
	span.SetAttributes(tracer.Bool(tracer.AttrPublished, published))
	return event, nil
}

func (s *Service) publish(ctx context.Context, event *models.Event) bool {
	if s.publisher == nil || s.topic == "" {
		return false
	}
	ctx, span := s.tracer.Start(ctx, tracer.SpanEventPublish)
	payload, err := json.Marshal(tracking.EventRecord{
		ID:              event.ID.String(),
		VisitorID:       event.VisitorID,
		SessionID:       event.SessionID,
		Category:        event.Category,
		Action:          event.Action,
		Label:           event.Label,
		Value:           event.Value,
		PageURL:         event.PageURL,
		ClientTimestamp: event.ClientTimestamp,
		ReceivedAt:      event.ReceivedAt,
	})
	if err == nil {
		err = s.publisher.Produce(ctx, &producer.Message{
			Topic:   s.topic,
			Key:     []byte(event.VisitorID),
			Value:   payload,
			Headers: map[string]string{"content-type": "application/json", "event-id": event.ID.String()},
		})
	}
	span.End(err)
	if s.metrics != nil {
		s.metrics.IncrementPublished(err == nil)
	}
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to publish tracking event",
				"error", err,
				"event_id", event.ID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return false
	}
	return true
}

// CaptureField stores the latest value of one form field until the capture
// TTL elapses.
func (s *Service) CaptureField(ctx context.Context, req *tracking.CaptureFieldRequest) (_ *models.CapturedField, err error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if req.FieldValue == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "fieldValue is required")
	}
	ctx, span := s.tracer.Start(ctx, tracer.SpanCaptureField,
		tracer.String(tracer.AttrVisitorHash, tracer.HashVisitorID(req.VisitorID)),
		tracer.String(tracer.AttrFormType, req.FormType),
		tracer.String(tracer.AttrFieldName, req.FieldName),
	)
	defer func() { span.End(err) }()

	now := requestcontext.Now(ctx).UTC()
	capture := &models.CapturedField{
		VisitorID:  req.VisitorID,
		FormType:   req.FormType,
		FieldName:  req.FieldName,
		FieldValue: req.FieldValue,
		PageURL:    req.PageURL,
		CapturedAt: now,
		ExpiresAt:  now.Add(s.captureTTL),
	}

	start := time.Now()
	s.visitorLocks.Lock(capture.VisitorID)
	err = s.captures.Put(ctx, capture)
	s.visitorLocks.Unlock(capture.VisitorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store captured field")
	}
	if s.metrics != nil {
		s.metrics.IncrementCapture(capture.FormType)
		s.metrics.ObserveStoreLatency("capture_put", time.Since(start).Seconds())
	}
	return capture, nil
}

// Lead assembles the operator view of one visitor. Each lookup is audited
// since the view exposes contact details.
func (s *Service) Lead(ctx context.Context, visitorID string) (_ *models.Lead, err error) {
	if visitorID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "visitorID is required")
	}
	ctx, span := s.tracer.Start(ctx, tracer.SpanLeadView,
		tracer.String(tracer.AttrVisitorHash, tracer.HashVisitorID(visitorID)),
	)
	defer func() { span.End(err) }()

	v, err := s.visitors.Get(ctx, visitorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "visitor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load visitor")
	}
	fields, err := s.captures.ListByVisitor(ctx, visitorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load captured fields")
	}
	count, err := s.events.CountByVisitor(ctx, visitorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count events")
	}
	recent, err := s.events.ListByVisitor(ctx, visitorID, models.RecentEventLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events")
	}

	s.emitAudit(ctx, audit.Event{
		VisitorID: visitorID,
		Action:    string(audit.ActionLeadViewed),
		Reason:    "operator_lookup",
	})
	return &models.Lead{Visitor: v, Fields: fields, EventCount: count, RecentEvents: recent}, nil
}

// EraseVisitor removes the stored snapshot.
func (s *Service) EraseVisitor(ctx context.Context, visitorID string) (int, error) {
	s.visitorLocks.Lock(visitorID)
	n, err := s.visitors.Delete(ctx, visitorID)
	s.visitorLocks.Unlock(visitorID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to erase visitor")
	}
	return n, nil
}

// EraseEvents removes every archived event of the visitor.
func (s *Service) EraseEvents(ctx context.Context, visitorID string) (int, error) {
	s.visitorLocks.Lock(visitorID)
	n, err := s.events.DeleteByVisitor(ctx, visitorID)
	s.visitorLocks.Unlock(visitorID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to erase events")
	}
	return n, nil
}

// EraseCaptures removes every captured field of the visitor.
func (s *Service) EraseCaptures(ctx context.Context, visitorID string) (int, error) {
	s.visitorLocks.Lock(visitorID)
	n, err := s.captures.DeleteByVisitor(ctx, visitorID)
	s.visitorLocks.Unlock(visitorID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to erase captured fields")
	}
	return n, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit tracking audit event",
			"error", err,
			"action", event.Action,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// parseDevice prefers the server's parse of the User-Agent header and falls
// back to the client's claims for fields the header does not yield.
func parseDevice(header string, claimed tracking.Device) models.DeviceInfo {
	info := models.DeviceInfo{
		Browser:        claimed.Browser,
		BrowserVersion: claimed.BrowserVersion,
		OS:             claimed.OS,
		Mobile:         claimed.Mobile,
		Bot:            claimed.Bot,
	}
	if header == "" {
		return info
	}
	ua := useragent.New(header)
	if name, version := ua.Browser(); name != "" {
		info.Browser = name
		info.BrowserVersion = version
	}
	if os := ua.OS(); os != "" {
		info.OS = os
	}
	info.Mobile = ua.Mobile()
	info.Bot = ua.Bot()
	return info
}
