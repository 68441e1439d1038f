package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	consent "caskhouse/contracts/consent"
	"caskhouse/internal/gdpr/handler/mocks"
	"caskhouse/internal/gdpr/service"
	dErrors "caskhouse/pkg/domain-errors"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *HandlerSuite) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/gdpr/delete", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) TestDeleteAccepted() {
	s.service.EXPECT().Erase(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *consent.ErasureRequest) (*service.Result, error) {
			s.Equal("v_gone", req.VisitorID)
			return &service.Result{VisitorID: "v_gone", Visitors: 1, Events: 4, CapturedFields: 2}, nil
		})

	w := s.post(`{"visitorId":"  v_gone "}`)
	s.Equal(http.StatusAccepted, w.Code)

	var resp consent.ErasureResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(consent.ErasureResponse{VisitorID: "v_gone", Status: "erased", Visitors: 1, Events: 4, CapturedFields: 2}, resp)
}

func (s *HandlerSuite) TestDeleteRequiresVisitorID() {
	s.Equal(http.StatusBadRequest, s.post(`{}`).Code)
	s.Equal(http.StatusBadRequest, s.post(`{"visitorId":"   "}`).Code)
	s.Equal(http.StatusBadRequest, s.post(`not json`).Code)
}

func (s *HandlerSuite) TestDeleteFailure() {
	s.service.EXPECT().Erase(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInternal, "mongo: server selection timeout"))

	w := s.post(`{"visitorId":"v_x"}`)
	s.Equal(http.StatusInternalServerError, w.Code)
	s.NotContains(w.Body.String(), "mongo")
}
