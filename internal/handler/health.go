package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health reports that the API is up. Used by load balancers and the ops
// dashboard.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "OK",
		"message":   "SI Releves API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
