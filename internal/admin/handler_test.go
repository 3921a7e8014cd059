package admin

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "hatchseed/internal/jwt_token"
	id "hatchseed/pkg/domain"
	"hatchseed/pkg/testutil"
)

type failingIssuer struct{}

func (failingIssuer) GenerateToken(id.Identity, time.Duration) (string, error) {
	return "", errors.New("signer offline")
}

func newRouter(issuer TokenIssuer) chi.Router {
	r := chi.NewRouter()
	New(issuer, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestMintToken(t *testing.T) {
	jwtService := jwttoken.NewJWTService("test-key", "hatchseed")
	validator := jwttoken.NewJWTServiceAdapter(jwtService)
	router := newRouter(jwtService)

	t.Run("mints a token the validator accepts", func(t *testing.T) {
		subject := uuid.New()
		req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/tokens", map[string]any{
			"role": "reviewer",
			"id":   subject.String(),
			"name": "Rae",
		})
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusCreated, rr.Code)

		resp := testutil.UnmarshalResponse[TokenResponse](t, rr)
		who, err := validator.ValidateToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, id.RoleReviewer, who.Role)
		assert.Equal(t, subject, who.ID)
		assert.Equal(t, "Rae", who.Name)
		assert.Equal(t, who.Key(), resp.IdentityKey)
	})

	t.Run("missing id mints a fresh identity", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/tokens", map[string]any{"role": "owner"})
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusCreated, rr.Code)

		resp := testutil.UnmarshalResponse[TokenResponse](t, rr)
		who, err := id.ParseIdentityKey(string(resp.IdentityKey))
		require.NoError(t, err)
		assert.Equal(t, id.RoleOwner, who.Role)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		cases := map[string]map[string]any{
			"unknown role": {"role": "admin"},
			"bad id":       {"role": "owner", "id": "nope"},
			"ttl too long": {"role": "owner", "ttl_seconds": int64(MaxTokenTTL/time.Second) + 1},
			"negative ttl": {"role": "owner", "ttl_seconds": -5},
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/admin/tokens", body))
				assert.Equal(t, http.StatusBadRequest, rr.Code)
			})
		}
	})

	t.Run("issuer failure is internal", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/tokens", map[string]any{"role": "owner"})
		rr := testutil.DoRequest(newRouter(failingIssuer{}), req)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
