package main // Entry point of the admin API: booking intake and read endpoints

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/concert-ticketing/internal/config"
	"github.com/iliyamo/concert-ticketing/internal/database"
	"github.com/iliyamo/concert-ticketing/internal/handler"
	"github.com/iliyamo/concert-ticketing/internal/middleware"
	"github.com/iliyamo/concert-ticketing/internal/queue"
	"github.com/iliyamo/concert-ticketing/internal/repository"
	"github.com/iliyamo/concert-ticketing/internal/router"
	"github.com/iliyamo/concert-ticketing/internal/status"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.LogLevel)
	qcfg := config.LoadQueueConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logrus.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()
	if err := database.Migrate(context.Background(), db); err != nil {
		logrus.WithError(err).Fatal("migration failed")
	}

	rdb := config.NewRedisClient() // nil disables cache, rate limit and status tracking
	if rdb != nil {
		defer rdb.Close()
	}
	tracker := status.NewTracker(rdb, config.StatusTTL())

	// The broker is dialled on first publish, so the API starts even while
	// RabbitMQ is down; affected requests end up rejected/not_enqueued.
	pub := queue.NewPublisher(nil, qcfg.URL, qcfg.Name)
	defer pub.Close()
	async := queue.NewAsyncPublisher(pub, qcfg.PublishBuffer, qcfg.PublishTimeout, func(req queue.BookingRequest, _ error) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := tracker.Set(ctx, req.BookingID, req.UserID, status.Rejected, status.ReasonNotEnqueued); err != nil {
			logrus.WithError(err).WithField("booking_id", req.BookingID).Warn("booking status not recorded")
		}
	})

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger("admin"))

	router.RegisterRoutes(e, handler.Health(db))
	router.RegisterBookings(e,
		handler.NewBookingHandler(async, tracker, repository.NewBookingRepo(db)),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	)
	router.RegisterPublic(e,
		handler.NewConcertHandler(repository.NewConcertRepo(db), repository.NewTicketTypeRepo(db)),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	)

	addr := ":" + cfg.Port
	go func() {
		logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("admin api listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server failed")
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
	// Requests already answered with 202 are still published before exit.
	async.Close()
	logrus.Info("admin api stopped")
}
