package main // Entry point of the API gateway

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/concert-ticketing/internal/config"
	"github.com/iliyamo/concert-ticketing/internal/gateway"
	"github.com/iliyamo/concert-ticketing/internal/middleware"
)

func main() {
	cfg := config.LoadGatewayConfig()
	config.SetupLogging(cfg.LogLevel)

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	e, err := gateway.New(cfg.AdminURL, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	if err != nil {
		logrus.WithError(err).Fatal("gateway misconfigured")
	}

	addr := ":" + cfg.Port
	go func() {
		logrus.WithFields(logrus.Fields{"addr": addr, "admin_url": cfg.AdminURL}).Info("gateway listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("gateway failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("http shutdown")
	}
}
