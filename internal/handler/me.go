package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-ticketing/internal/middleware"
)

// Me handles GET /v1/me and echoes the identity taken from the access
// token. Clients use it to check a token before booking.
func Me(c echo.Context) error {
	role, _ := c.Get("role").(string)
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": middleware.UserID(c),
		"role":    role,
	})
}
