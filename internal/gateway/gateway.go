// Package gateway is the public entry point in front of the admin API. It
// relays /v1 traffic unchanged, Authorization header included, and adds
// rate limiting and request logging.
package gateway

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/concert-ticketing/internal/handler"
	"github.com/iliyamo/concert-ticketing/internal/middleware"
)

// New builds the gateway for the admin API at adminURL. limit runs before
// every proxied request.
func New(adminURL string, limit echo.MiddlewareFunc) (*echo.Echo, error) {
	target, err := url.Parse(adminURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid admin url %q", adminURL)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger("gateway"))

	e.GET("/healthz", handler.Health())

	proxy := echomw.ProxyWithConfig(echomw.ProxyConfig{
		Balancer: echomw.NewRoundRobinBalancer([]*echomw.ProxyTarget{{Name: "admin", URL: target}}),
		ErrorHandler: func(c echo.Context, err error) error {
			logrus.WithError(err).WithField("path", c.Request().URL.Path).Error("gateway: admin api unreachable")
			return echo.NewHTTPError(http.StatusBadGateway, "admin api unreachable")
		},
	})
	e.Group("/v1", limit, proxy)
	return e, nil
}
