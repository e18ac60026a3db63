package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tixmarket-backend/pkg/auth"
	"github.com/angelmondragon/tixmarket-backend/pkg/config"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "tix-test", ExpirationMinutes: 10}

func mintTestToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, role enums.UserRole, now time.Time) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, now, auth.AccessTokenPayload{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}

func identityEcho(t *testing.T, seen *Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		*seen = id
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuth(t *testing.T) {
	userID := uuid.New()
	valid := mintTestToken(t, testJWT, userID, enums.UserRoleSeller, time.Now())
	expired := mintTestToken(t, testJWT, userID, enums.UserRoleSeller, time.Now().Add(-time.Hour))
	foreign := mintTestToken(t, config.JWTConfig{Secret: "other", Issuer: "tix-test", ExpirationMinutes: 10}, userID, enums.UserRoleBuyer, time.Now())

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer invalid", status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + valid, status: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer " + valid, status: http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen Identity
			handler := Auth(testJWT, logger.Nop())(identityEcho(t, &seen))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			require.Equal(t, tc.status, resp.Code)
			if tc.status == http.StatusNoContent {
				require.Equal(t, Identity{UserID: userID, Role: enums.UserRoleSeller}, seen)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(logger.Nop(), enums.UserRoleSeller, enums.UserRoleOperator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, status := range map[enums.UserRole]int{
		enums.UserRoleSeller:   http.StatusNoContent,
		enums.UserRoleOperator: http.StatusNoContent,
		enums.UserRoleBuyer:    http.StatusForbidden,
		"":                     http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: uuid.New(), Role: role}))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		require.Equal(t, status, resp.Code, "role %q", role)
	}
}
