package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one structured line per request once the response has
// been written. Handler errors are passed to echo's error handler first so
// the logged status is the one the client saw.
func RequestLogger(service string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			req := c.Request()
			status := c.Response().Status

			entry := logrus.WithFields(logrus.Fields{
				"service":     service,
				"method":      req.Method,
				"path":        req.URL.Path,
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
				"client_ip":   c.RealIP(),
				"user_agent":  req.UserAgent(),
			})
			if uid := UserID(c); uid != "" {
				entry = entry.WithField("user_id", uid)
			}
			if status >= 500 {
				entry.Error("request failed")
			} else if status >= 400 {
				entry.Warn("request rejected")
			} else {
				entry.Info("request processed")
			}
			return nil
		}
	}
}
