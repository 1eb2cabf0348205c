package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yassineqb/si-releves/internal/model"
	"github.com/yassineqb/si-releves/internal/utils"
)

func runProtected(t *testing.T, authHeader string, mw ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	handler := func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"role": c.Get("role")})
	}
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	e.GET("/protected", handler)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"

	t.Run("accepts a valid token and exposes claims", func(t *testing.T) {
		at, err := utils.NewAccessToken(secret, 7, model.RoleAgent, 15)
		require.NoError(t, err)

		rec := runProtected(t, "Bearer "+at.Token, JWTAuth(secret))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), model.RoleAgent)
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		rec := runProtected(t, "", JWTAuth(secret))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		at, err := utils.NewAccessToken("other-secret", 7, model.RoleAgent, 15)
		require.NoError(t, err)

		rec := runProtected(t, "Bearer "+at.Token, JWTAuth(secret))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		at, err := utils.NewAccessToken(secret, 7, model.RoleAgent, -5)
		require.NoError(t, err)

		rec := runProtected(t, "Bearer "+at.Token, JWTAuth(secret))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	const secret = "test-secret"

	t.Run("allows a listed role", func(t *testing.T) {
		at, err := utils.NewAccessToken(secret, 7, model.RoleSuperAdmin, 15)
		require.NoError(t, err)

		rec := runProtected(t, "Bearer "+at.Token,
			JWTAuth(secret), RequireRole(model.RoleSuperAdmin, model.RoleAgent))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects an unlisted role", func(t *testing.T) {
		at, err := utils.NewAccessToken(secret, 7, model.RoleUser, 15)
		require.NoError(t, err)

		rec := runProtected(t, "Bearer "+at.Token,
			JWTAuth(secret), RequireRole(model.RoleSuperAdmin))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rejects when no role is set", func(t *testing.T) {
		rec := runProtected(t, "", RequireRole(model.RoleSuperAdmin))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
