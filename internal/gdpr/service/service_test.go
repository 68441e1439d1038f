package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Eraser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	consent "caskhouse/contracts/consent"
	"caskhouse/internal/audit"
	"caskhouse/internal/gdpr/metrics"
	"caskhouse/internal/gdpr/service/mocks"
	dErrors "caskhouse/pkg/domain-errors"
	"caskhouse/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	eraser     *mocks.MockEraser
	auditStore *audit.InMemoryStore
	metrics    *metrics.Metrics
	service    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.eraser = mocks.NewMockEraser(s.ctrl)
	s.auditStore = audit.NewInMemoryStore()
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.service = NewService(
		s.eraser,
		audit.NewPublisher(s.auditStore),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithMetrics(s.metrics),
	)
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithRequestID(context.Background(), "req-erase")
}

func (s *ServiceSuite) auditActions(visitorID string) []string {
	events, err := s.auditStore.ListByVisitor(context.Background(), visitorID)
	s.Require().NoError(err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}

func (s *ServiceSuite) TestEraseFansOutToEveryStore() {
	s.eraser.EXPECT().EraseVisitor(gomock.Any(), "v_gone").Return(1, nil)
	s.eraser.EXPECT().EraseEvents(gomock.Any(), "v_gone").Return(14, nil)
	s.eraser.EXPECT().EraseCaptures(gomock.Any(), "v_gone").Return(3, nil)

	result, err := s.service.Erase(s.ctx(), &consent.ErasureRequest{VisitorID: "v_gone"})
	s.Require().NoError(err)
	s.Equal(&Result{VisitorID: "v_gone", Visitors: 1, Events: 14, CapturedFields: 3}, result)

	resp := result.Response()
	s.Equal("erased", resp.Status)
	s.Equal(14, resp.Events)

	s.ElementsMatch([]string{"erasure_requested", "erasure_completed"}, s.auditActions("v_gone"))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Erasures.WithLabelValues("completed")))
	s.Equal(14.0, testutil.ToFloat64(s.metrics.RecordsErased.WithLabelValues("events")))
}

func (s *ServiceSuite) TestEraseUnknownVisitorSucceedsWithZeroCounts() {
	s.eraser.EXPECT().EraseVisitor(gomock.Any(), "v_none").Return(0, nil)
	s.eraser.EXPECT().EraseEvents(gomock.Any(), "v_none").Return(0, nil)
	s.eraser.EXPECT().EraseCaptures(gomock.Any(), "v_none").Return(0, nil)

	result, err := s.service.Erase(s.ctx(), &consent.ErasureRequest{VisitorID: "v_none"})
	s.Require().NoError(err)
	s.Zero(result.Visitors + result.Events + result.CapturedFields)
}

func (s *ServiceSuite) TestEraseFailureCancelsSiblings() {
	s.eraser.EXPECT().EraseVisitor(gomock.Any(), "v_fail").Return(0, dErrors.New(dErrors.CodeInternal, "failed to erase visitor"))
	s.eraser.EXPECT().EraseEvents(gomock.Any(), "v_fail").DoAndReturn(
		func(ctx context.Context, _ string) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
	s.eraser.EXPECT().EraseCaptures(gomock.Any(), "v_fail").Return(2, nil)

	_, err := s.service.Erase(s.ctx(), &consent.ErasureRequest{VisitorID: "v_fail"})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	s.ElementsMatch([]string{"erasure_requested", "erasure_failed"}, s.auditActions("v_fail"))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Erasures.WithLabelValues("failed")))
}

func (s *ServiceSuite) TestEraseWrapsRawErrors() {
	s.eraser.EXPECT().EraseVisitor(gomock.Any(), gomock.Any()).Return(0, errors.New("boom"))
	s.eraser.EXPECT().EraseEvents(gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()
	s.eraser.EXPECT().EraseCaptures(gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()

	_, err := s.service.Erase(s.ctx(), &consent.ErasureRequest{VisitorID: "v_raw"})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestEraseRequiresVisitorID() {
	_, err := s.service.Erase(s.ctx(), &consent.ErasureRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Empty(s.auditActions(""))
}
