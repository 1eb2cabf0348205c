package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole enforces that the authenticated account holds one of the
// given roles. Role values correspond to the JWT "role" claim stored in the
// context by JWTAuth; requests with a missing or disallowed role are
// rejected with 403. Route groups compose this after JWTAuth, e.g. the
// meter registration endpoints require SUPERADMIN while reading submission
// accepts SUPERADMIN or AGENT.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
			}
			return next(c)
		}
	}
}
