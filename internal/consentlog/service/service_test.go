package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	consent "caskhouse/contracts/consent"
	"caskhouse/internal/audit"
	"caskhouse/internal/consentlog/metrics"
	"caskhouse/internal/consentlog/models"
	"caskhouse/internal/consentlog/service/mocks"
	dErrors "caskhouse/pkg/domain-errors"
	"caskhouse/pkg/platform/sentinel"
	"caskhouse/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	mockStore  *mocks.MockStore
	auditStore *audit.InMemoryStore
	metrics    *metrics.Metrics
	service    *Service
	now        time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.auditStore = audit.NewInMemoryStore()
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.now = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	s.service = NewService(
		s.mockStore,
		audit.NewPublisher(s.auditStore),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithMetrics(s.metrics),
	)
}

func (s *ServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithClientMetadata(ctx, "81.2.69.160", "server-seen-agent")
	return requestcontext.WithRequestID(ctx, "req-1")
}

func (s *ServiceSuite) TestLogStoresAnonymizedEntry() {
	var stored *models.Entry
	s.mockStore.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e *models.Entry) error {
			stored = e
			return nil
		})

	req := &consent.LogRequest{
		VisitorID:   "v_0123456789abcdef_lq2x",
		Preferences: consent.Preferences{Necessary: false, Functional: true, Version: "1.0"},
		Method:      consent.MethodBanner,
		URL:         "https://caskhouse.test/distilleries",
	}
	entry, err := s.service.Log(s.ctx(), req)
	s.Require().NoError(err)
	s.Require().NotNil(stored)

	s.True(entry.Necessary, "necessary is always recorded as true")
	s.True(entry.Functional)
	s.False(entry.Analytics)
	s.Equal("81.2.69.0", entry.IPPrefix)
	s.Equal("server-seen-agent", entry.UserAgent)
	s.Equal(s.now, entry.ReceivedAt)
	s.Equal(s.now, entry.ClientTimestamp, "missing client timestamps fall back to receive time")
	s.NotEqual(uuid.Nil, entry.ID)

	events, err := s.auditStore.ListByVisitor(context.Background(), req.VisitorID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.ActionConsentLogged), events[0].Action)
	s.Equal("granted", events[0].Decision)
	s.Equal("banner", events[0].Method)
	s.Equal("req-1", events[0].RequestID)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.DecisionsLogged.WithLabelValues("banner", "granted")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CategoriesGranted.WithLabelValues("functional")))
	s.Equal(0.0, testutil.ToFloat64(s.metrics.CategoriesGranted.WithLabelValues("analytics")))
}

func (s *ServiceSuite) TestLogExplicitActionWinsForAudit() {
	s.mockStore.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.service.Log(s.ctx(), &consent.LogRequest{
		VisitorID: "v_w",
		Method:    consent.MethodPreferences,
		Action:    consent.ActionWithdrawn,
	})
	s.Require().NoError(err)

	events, _ := s.auditStore.ListByVisitor(context.Background(), "v_w")
	s.Require().Len(events, 1)
	s.Equal("withdrawn", events[0].Decision)
}

func (s *ServiceSuite) TestLogRejectsUnknownMethod() {
	_, err := s.service.Log(s.ctx(), &consent.LogRequest{Method: "popup"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestLogMapsStoreErrors() {
	s.Run("duplicate id is a conflict", func() {
		s.mockStore.EXPECT().Append(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		_, err := s.service.Log(s.ctx(), &consent.LogRequest{Method: consent.MethodAPI})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("infrastructure failure is internal and not audited", func() {
		s.mockStore.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))
		_, err := s.service.Log(s.ctx(), &consent.LogRequest{VisitorID: "v_err", Method: consent.MethodAPI})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		events, _ := s.auditStore.ListByVisitor(context.Background(), "v_err")
		s.Empty(events)
	})
}

func (s *ServiceSuite) TestHistory() {
	s.Run("requires a visitor id", func() {
		_, err := s.service.History(s.ctx(), "", models.Filter{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("passes the filter through", func() {
		filter := models.Filter{Limit: 5}
		want := []*models.Entry{{VisitorID: "v_h"}}
		s.mockStore.EXPECT().ListByVisitor(gomock.Any(), "v_h", filter).Return(want, nil)

		got, err := s.service.History(s.ctx(), "v_h", filter)
		s.Require().NoError(err)
		s.Equal(want, got)
	})

	s.Run("wraps store failures", func() {
		s.mockStore.EXPECT().ListByVisitor(gomock.Any(), "v_h", gomock.Any()).Return(nil, errors.New("timeout"))
		_, err := s.service.History(s.ctx(), "v_h", models.Filter{})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
