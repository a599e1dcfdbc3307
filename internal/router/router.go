package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/concert-ticketing/internal/handler"    // HTTP handlers
	"github.com/iliyamo/concert-ticketing/internal/middleware" // JWT, role, cache and rate limit middleware
)

// Roles accepted on customer endpoints. Tokens are issued by the auth
// service with one of these in the "role" claim.
var customerRoles = []string{"user", "admin"}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// RegisterBookings mounts the booking intake and the caller's booking views
// under /v1. Every route requires a valid JWT with a customer role; limit
// throttles POST /v1/bookings only.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(customerRoles...),
	)
	g.POST("/bookings", b.Create, limit)
	g.GET("/my-bookings", b.ListMine)
	g.GET("/bookings/:id/status", b.Status)
	g.GET("/me", handler.Me)
}

// RegisterPublic registers unauthenticated browse endpoints. Concert
// responses go through the Redis response cache.
func RegisterPublic(e *echo.Echo, c *handler.ConcertHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/concerts", c.List, cache)
	e.GET("/v1/concerts/:id", c.Get, cache)
}
