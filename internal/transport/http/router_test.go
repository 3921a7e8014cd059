package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"hatchseed/internal/admin"
	jwttoken "hatchseed/internal/jwt_token"
	slotshandler "hatchseed/internal/slots/handler"
	slotsservice "hatchseed/internal/slots/service"
	"hatchseed/internal/slots/service/mocks"
	slotsstore "hatchseed/internal/slots/store"
	id "hatchseed/pkg/domain"
	"hatchseed/pkg/platform/audit/publishers/compliance"
	"hatchseed/pkg/platform/audit/store/memory"
	"hatchseed/pkg/testutil"
)

const adminToken = "operator-secret"

type RouterSuite struct {
	suite.Suite
	router http.Handler
	jwt    *jwttoken.JWTService
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.jwt = jwttoken.NewJWTService("router-test-key", "hatchseed")

	slots := slotsservice.New(
		slotsstore.NewInMemoryStore(),
		mocks.NewMockTransactionLedger(ctrl),
		mocks.NewMockEntitlements(ctrl),
		compliance.New(memory.NewInMemoryStore()),
		slotsservice.WithLogger(logger),
	)

	s.router = NewRouter(Deps{
		Validator:  jwttoken.NewJWTServiceAdapter(s.jwt),
		Logger:     logger,
		Slots:      slotshandler.New(slots, logger),
		Admin:      admin.New(s.jwt, time.Hour, logger),
		AdminToken: adminToken,
	})
}

func (s *RouterSuite) token(who id.Identity) string {
	token, err := s.jwt.GenerateToken(who, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *RouterSuite) get(path, token string) int {
	req := testutil.NewRequest(s.T(), http.MethodGet, path)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return testutil.DoRequest(s.router, req).Code
}

func (s *RouterSuite) TestPublicRoutes() {
	s.Equal(http.StatusOK, s.get("/healthz", ""))
	s.Equal(http.StatusOK, s.get("/metrics", ""))
}

func (s *RouterSuite) TestReadiness() {
	healthy := NewRouter(Deps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Checks: map[string]func(context.Context) error{
			"postgres": func(context.Context) error { return nil },
		},
	})
	rr := testutil.DoRequest(healthy, testutil.NewRequest(s.T(), http.MethodGet, "/readyz"))
	s.Equal(http.StatusOK, rr.Code)

	failing := NewRouter(Deps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Checks: map[string]func(context.Context) error{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
	})
	rr = testutil.DoRequest(failing, testutil.NewRequest(s.T(), http.MethodGet, "/readyz"))
	s.Equal(http.StatusServiceUnavailable, rr.Code)
	body := testutil.UnmarshalResponse[map[string]string](s.T(), rr)
	s.Equal("connection refused", (*body)["redis"])
	s.Equal("ok", (*body)["postgres"])
}

func (s *RouterSuite) TestRoleGroups() {
	owner := s.token(id.OwnerIdentity(id.OwnerID(uuid.New())))
	reviewer := s.token(id.ReviewerIdentity(id.ReviewerID(uuid.New())))

	s.Run("missing token", func() {
		s.Equal(http.StatusUnauthorized, s.get("/sets", ""))
	})
	s.Run("garbage token", func() {
		s.Equal(http.StatusUnauthorized, s.get("/sets", "not-a-jwt"))
	})
	s.Run("owner reaches owner routes", func() {
		s.Equal(http.StatusOK, s.get("/sets", owner))
	})
	s.Run("owner is kept out of reviewer routes", func() {
		s.Equal(http.StatusForbidden, s.get("/review/sets", owner))
	})
	s.Run("reviewer reaches reviewer routes", func() {
		s.Equal(http.StatusOK, s.get("/review/sets", reviewer))
	})
	s.Run("reviewer is kept out of owner routes", func() {
		s.Equal(http.StatusForbidden, s.get("/sets", reviewer))
	})
	s.Run("token accepted from query string", func() {
		s.Equal(http.StatusOK, s.get("/sets?access_token="+owner, ""))
	})
}

func (s *RouterSuite) TestAdminTokens() {
	body := map[string]any{"role": "owner"}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/tokens", body)
	s.Equal(http.StatusUnauthorized, testutil.DoRequest(s.router, req).Code)

	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/tokens", body)
	req.Header.Set("X-Admin-Token", adminToken)
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusCreated, rr.Code)

	minted := testutil.UnmarshalResponse[admin.TokenResponse](s.T(), rr)
	s.Equal(http.StatusOK, s.get("/sets", minted.Token))
}
