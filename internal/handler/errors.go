package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// HTTPErrorHandler replaces echo's default so that unexpected errors never
// leak driver or broker details. echo.HTTPError values (404 for unknown
// routes, 405, bind errors) keep their status and message; anything else
// is logged and answered with 500 {"error": "internal error"}.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := interface{}("internal error")

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = he.Message
		if code >= http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	if code >= http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request().Method,
			"path":   c.Request().URL.Path,
		}).Error("unhandled error")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, echo.Map{"error": msg})
	}
	if err != nil {
		logrus.WithError(err).Warn("failed to write error response")
	}
}
