package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks VisitorStore,EventStore,CaptureStore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	tracking "caskhouse/contracts/tracking"
	"caskhouse/internal/audit"
	"caskhouse/internal/platform/kafka/producer"
	"caskhouse/internal/tracking/metrics"
	"caskhouse/internal/tracking/models"
	"caskhouse/internal/tracking/service/mocks"
	dErrors "caskhouse/pkg/domain-errors"
	"caskhouse/pkg/platform/sentinel"
	"caskhouse/pkg/requestcontext"
)

const chromeOnWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type recordingPublisher struct {
	mu       sync.Mutex
	messages []*producer.Message
	err      error
}

func (p *recordingPublisher) Produce(_ context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) Healthy(context.Context) error { return nil }

func (p *recordingPublisher) Close() error { return nil }

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	visitors   *mocks.MockVisitorStore
	events     *mocks.MockEventStore
	captures   *mocks.MockCaptureStore
	auditStore *audit.InMemoryStore
	publisher  *recordingPublisher
	metrics    *metrics.Metrics
	service    *Service
	now        time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.visitors = mocks.NewMockVisitorStore(s.ctrl)
	s.events = mocks.NewMockEventStore(s.ctrl)
	s.captures = mocks.NewMockCaptureStore(s.ctrl)
	s.auditStore = audit.NewInMemoryStore()
	s.publisher = &recordingPublisher{}
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.now = time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC)
	s.service = NewService(
		s.visitors, s.events, s.captures,
		audit.NewPublisher(s.auditStore),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithMetrics(s.metrics),
		WithPublisher(s.publisher, "tracking.events"),
		WithCaptureTTL(2*time.Hour),
	)
}

func (s *ServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithClientMetadata(ctx, "81.2.69.160", chromeOnWindows)
	return requestcontext.WithRequestID(ctx, "req-7")
}

func (s *ServiceSuite) TestRecordVisitor() {
	var stored *models.Visitor
	s.visitors.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, v *models.Visitor) error {
			stored = v
			return nil
		})

	snap := &tracking.VisitorSnapshot{
		VisitorID:       "v_0123456789abcdef_lq2x3",
		SessionID:       "s_1",
		FirstVisit:      s.now.Add(-48 * time.Hour),
		Device:          tracking.Device{Browser: "Claimed", OS: "Claimed OS", Mobile: true},
		PageViews:       4,
		Interests:       []string{"premium", "investment", "premium", " "},
		EngagementScore: 140,
		Email:           "lead@example.com",
		Trigger:         tracking.TriggerPageView,
	}
	s.Require().NoError(s.service.RecordVisitor(s.ctx(), snap))
	s.Require().NotNil(stored)

	s.Equal("Chrome", stored.Device.Browser, "server-side parse wins over client claims")
	s.Equal("Windows 10", stored.Device.OS)
	s.False(stored.Device.Mobile)
	s.False(stored.Device.Bot)
	s.Equal("81.2.69.0", stored.IPPrefix)
	s.Equal(100, stored.EngagementScore)
	s.Equal([]string{"premium", "investment"}, stored.Interests)
	s.Equal(s.now, stored.UpdatedAt)
	s.Equal("lead@example.com", stored.Email)
	s.Equal(140, snap.EngagementScore, "caller's snapshot is not mutated")

	s.Equal(1.0, testutil.ToFloat64(s.metrics.SnapshotsReceived.WithLabelValues("page_view", "false")))
}

func (s *ServiceSuite) TestRecordVisitorFlagsBots() {
	var stored *models.Visitor
	s.visitors.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, v *models.Visitor) error {
			stored = v
			return nil
		})

	ctx := requestcontext.WithClientMetadata(s.ctx(), "81.2.69.160",
		"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	s.Require().NoError(s.service.RecordVisitor(ctx, &tracking.VisitorSnapshot{VisitorID: "v_bot"}))
	s.True(stored.Device.Bot)
}

func (s *ServiceSuite) TestRecordVisitorErrors() {
	s.Run("missing id", func() {
		err := s.service.RecordVisitor(s.ctx(), &tracking.VisitorSnapshot{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("store failure", func() {
		s.visitors.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))
		err := s.service.RecordVisitor(s.ctx(), &tracking.VisitorSnapshot{VisitorID: "v_x"})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestRecordEventStoresAndPublishes() {
	var stored *models.Event
	s.events.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e *models.Event) error {
			stored = e
			return nil
		})

	value := 2.5
	event, err := s.service.RecordEvent(s.ctx(), &tracking.EventRequest{
		VisitorID: "v_evt",
		Category:  "cta",
		Action:    "click",
		Label:     "Book a consultation",
		Value:     &value,
	})
	s.Require().NoError(err)
	s.Equal(stored, event)
	s.NotEqual(uuid.Nil, event.ID)
	s.Equal(s.now, event.ReceivedAt)
	s.Equal(s.now, event.ClientTimestamp)
	s.Equal("81.2.69.0", event.IPPrefix)

	s.Require().Len(s.publisher.messages, 1)
	msg := s.publisher.messages[0]
	s.Equal("tracking.events", msg.Topic)
	s.Equal("v_evt", string(msg.Key))
	s.Equal(event.ID.String(), msg.Headers["event-id"])

	var record tracking.EventRecord
	s.Require().NoError(json.Unmarshal(msg.Value, &record))
	s.Equal("cta", record.Category)
	s.Equal("click", record.Action)
	s.Require().NotNil(record.Value)
	s.InDelta(2.5, *record.Value, 0.0001)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.EventsRecorded.WithLabelValues("cta")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.EventsPublished.WithLabelValues("ok")))
}

func (s *ServiceSuite) TestRecordEventPublishFailureIsNotReturned() {
	s.publisher.err = errors.New("broker unreachable")
	s.events.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	event, err := s.service.RecordEvent(s.ctx(), &tracking.EventRequest{VisitorID: "v_evt", Category: "form", Action: "submit"})
	s.Require().NoError(err)
	s.NotNil(event)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.EventsPublished.WithLabelValues("error")))
}

func (s *ServiceSuite) TestRecordEventWithoutPublisher() {
	svc := NewService(s.visitors, s.events, s.captures, nil, nil)
	s.events.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	_, err := svc.RecordEvent(s.ctx(), &tracking.EventRequest{VisitorID: "v_evt", Category: "cta", Action: "click"})
	s.Require().NoError(err)
	s.Empty(s.publisher.messages)
}

func (s *ServiceSuite) TestRecordEventStoreErrors() {
	s.Run("duplicate", func() {
		s.events.EXPECT().Append(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		_, err := s.service.RecordEvent(s.ctx(), &tracking.EventRequest{VisitorID: "v", Category: "c", Action: "a"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("failure is not published", func() {
		s.events.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("mongo down"))
		_, err := s.service.RecordEvent(s.ctx(), &tracking.EventRequest{VisitorID: "v", Category: "c", Action: "a"})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Empty(s.publisher.messages)
	})
}

func (s *ServiceSuite) TestCaptureField() {
	var stored *models.CapturedField
	s.captures.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c *models.CapturedField) error {
			stored = c
			return nil
		})

	capture, err := s.service.CaptureField(s.ctx(), &tracking.CaptureFieldRequest{
		VisitorID:  "v_cap",
		FieldName:  "email",
		FieldValue: "lead@example.com",
		FormType:   "consultation",
	})
	s.Require().NoError(err)
	s.Equal(stored, capture)
	s.Equal(s.now, capture.CapturedAt)
	s.Equal(s.now.Add(2*time.Hour), capture.ExpiresAt)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.FieldsCaptured.WithLabelValues("consultation")))
}

func (s *ServiceSuite) TestCaptureFieldErrors() {
	s.Run("empty value", func() {
		_, err := s.service.CaptureField(s.ctx(), &tracking.CaptureFieldRequest{VisitorID: "v", FieldName: "name", FormType: "contact"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("store failure", func() {
		s.captures.EXPECT().Put(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
		_, err := s.service.CaptureField(s.ctx(), &tracking.CaptureFieldRequest{
			VisitorID: "v", FieldName: "name", FieldValue: "Ada", FormType: "contact",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestLead() {
	visitor := &models.Visitor{VisitorID: "v_lead", Email: "lead@example.com"}
	fields := []*models.CapturedField{{VisitorID: "v_lead", FieldName: "phone", FieldValue: "+44 20 7946 0000"}}
	recent := []*models.Event{{VisitorID: "v_lead", Category: "cta"}}

	s.visitors.EXPECT().Get(gomock.Any(), "v_lead").Return(visitor, nil)
	s.captures.EXPECT().ListByVisitor(gomock.Any(), "v_lead").Return(fields, nil)
	s.events.EXPECT().CountByVisitor(gomock.Any(), "v_lead").Return(12, nil)
	s.events.EXPECT().ListByVisitor(gomock.Any(), "v_lead", models.RecentEventLimit).Return(recent, nil)

	ctx := requestcontext.WithAdminSubject(s.ctx(), "ops@caskhouse")
	lead, err := s.service.Lead(ctx, "v_lead")
	s.Require().NoError(err)
	s.Equal(visitor, lead.Visitor)
	s.Equal(fields, lead.Fields)
	s.Equal(12, lead.EventCount)
	s.Equal(recent, lead.RecentEvents)

	events, err := s.auditStore.ListByVisitor(context.Background(), "v_lead")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.ActionLeadViewed), events[0].Action)
	s.Equal("ops@caskhouse", events[0].Actor)
}

func (s *ServiceSuite) TestLeadErrors() {
	s.Run("unknown visitor", func() {
		s.visitors.EXPECT().Get(gomock.Any(), "v_none").Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Lead(s.ctx(), "v_none")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("capture store failure", func() {
		s.visitors.EXPECT().Get(gomock.Any(), "v_lead").Return(&models.Visitor{VisitorID: "v_lead"}, nil)
		s.captures.EXPECT().ListByVisitor(gomock.Any(), "v_lead").Return(nil, errors.New("redis down"))
		_, err := s.service.Lead(s.ctx(), "v_lead")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("missing id", func() {
		_, err := s.service.Lead(s.ctx(), "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestErase() {
	s.visitors.EXPECT().Delete(gomock.Any(), "v_gone").Return(1, nil)
	s.events.EXPECT().DeleteByVisitor(gomock.Any(), "v_gone").Return(7, nil)
	s.captures.EXPECT().DeleteByVisitor(gomock.Any(), "v_gone").Return(0, errors.New("redis down"))

	n, err := s.service.EraseVisitor(s.ctx(), "v_gone")
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.service.EraseEvents(s.ctx(), "v_gone")
	s.Require().NoError(err)
	s.Equal(7, n)

	_, err = s.service.EraseCaptures(s.ctx(), "v_gone")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestEraseWaitsForInFlightWrite() {
	entered := make(chan struct{})
	release := make(chan struct{})
	var order []string
	var mu sync.Mutex
	record := func(step string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, step)
	}

	s.visitors.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *models.Visitor) error {
			close(entered)
			<-release
			record("upsert")
			return nil
		})
	s.visitors.EXPECT().Delete(gomock.Any(), "v_race").DoAndReturn(
		func(context.Context, string) (int, error) {
			record("delete")
			return 1, nil
		})

	var wg sync.WaitGroup
	wg.Go(func() {
		s.NoError(s.service.RecordVisitor(s.ctx(), &tracking.VisitorSnapshot{VisitorID: "v_race"}))
	})
	<-entered
	wg.Go(func() {
		_, err := s.service.EraseVisitor(s.ctx(), "v_race")
		s.NoError(err)
	})
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	s.Equal([]string{"upsert", "delete"}, order)
}
