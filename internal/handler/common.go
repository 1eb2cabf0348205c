// Package handler implements the HTTP endpoints of the SI Relevés API. Each
// handler binds the request, validates it, calls into the repositories and
// maps sentinel errors onto HTTP status codes. French field names are kept
// on the wire (compteur_id, index_actuel, ...) for compatibility with the
// existing web client.
package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

// getUserID extracts the authenticated account id placed in the context by
// the JWT middleware. The claim travels as a JSON number, so float64 is the
// common case.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getRole extracts the authenticated account role from the context.
func getRole(c echo.Context) string {
	if r, ok := c.Get("role").(string); ok {
		return r
	}
	return ""
}
