package admin

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"caskhouse/pkg/requestcontext"
)

// AdminMiddlewareSuite covers the invariant that a request without a valid
// admin token never reaches the wrapped handler.
type AdminMiddlewareSuite struct {
	suite.Suite
	secret  []byte
	logger  *slog.Logger
	reached bool
	subject string
	handler http.Handler
}

func TestAdminMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AdminMiddlewareSuite))
}

func (s *AdminMiddlewareSuite) SetupTest() {
	s.secret = []byte("test-admin-secret")
	s.logger = slog.New(slog.DiscardHandler)
	s.reached = false
	s.subject = ""
	s.handler = RequireAdminToken(s.secret, s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.reached = true
		s.subject = requestcontext.AdminSubject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func (s *AdminMiddlewareSuite) serve(authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/consent/logs", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *AdminMiddlewareSuite) TestValidTokenPasses() {
	token, err := IssueToken(s.secret, "ops@caskhouse.test", time.Minute)
	s.Require().NoError(err)

	w := s.serve("Bearer " + token)

	s.Equal(http.StatusOK, w.Code)
	s.True(s.reached)
	s.Equal("ops@caskhouse.test", s.subject)
}

func (s *AdminMiddlewareSuite) TestRejections() {
	otherSecret, err := IssueToken([]byte("someone-else"), "ops", time.Minute)
	s.Require().NoError(err)
	expired, err := IssueToken(s.secret, "ops", -time.Minute)
	s.Require().NoError(err)

	wrongRole := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "viewer",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	wrongRoleToken, err := wrongRole.SignedString(s.secret)
	s.Require().NoError(err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ops", Audience: jwt.ClaimStrings{Audience}},
	})
	noExpiryToken, err := noExpiry.SignedString(s.secret)
	s.Require().NoError(err)

	cases := map[string]string{
		"missing header": "",
		"basic scheme":   "Basic b3BzOnB3",
		"empty bearer":   "Bearer ",
		"garbage":        "Bearer not.a.jwt",
		"foreign secret": "Bearer " + otherSecret,
		"expired":        "Bearer " + expired,
		"wrong role":     "Bearer " + wrongRoleToken,
		"missing expiry": "Bearer " + noExpiryToken,
	}
	for name, header := range cases {
		s.Run(name, func() {
			s.reached = false
			w := s.serve(header)
			s.Equal(http.StatusUnauthorized, w.Code)
			s.False(s.reached, "handler must not run")
			s.Contains(w.Header().Get("WWW-Authenticate"), "Bearer")
		})
	}
}

func (s *AdminMiddlewareSuite) TestEmptySecretRejectsEverything() {
	token, err := IssueToken([]byte("anything"), "ops", time.Minute)
	s.Require().NoError(err)

	handler := RequireAdminToken(nil, s.logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		s.Fail("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/admin/site-config", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	s.Equal(http.StatusUnauthorized, w.Code)
}
