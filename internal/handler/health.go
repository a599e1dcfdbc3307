package handler // declare the package name; contains HTTP handlers

import (
	"context"  // deadlines for dependency checks
	"net/http" // net/http provides status codes and response helpers
	"time"     // check timeout

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger is anything Health can ping, such as *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health returns a health-check endpoint for load balancers and the
// gateway. With no dependencies it always answers 200 "ok"; otherwise each
// one is pinged and any failure yields 503.
func Health(deps ...Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		for _, d := range deps {
			if err := d.PingContext(ctx); err != nil {
				return c.String(http.StatusServiceUnavailable, "unavailable")
			}
		}
		return c.String(http.StatusOK, "ok")
	}
}
