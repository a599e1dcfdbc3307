package middleware

// identity.go holds the context keys JWTAuth fills in and the accessor
// shared by handlers and the rate limiter.

import "github.com/labstack/echo/v4"

const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// UserID returns the authenticated subject, or "" when the request did not
// pass through JWTAuth.
func UserID(c echo.Context) string {
	if s, ok := c.Get(userIDKey).(string); ok {
		return s
	}
	return ""
}

// rateUserID is UserID with a stable placeholder for anonymous callers so
// they share one bucket per IP.
func rateUserID(c echo.Context) string {
	if s := UserID(c); s != "" {
		return s
	}
	return "anon"
}
