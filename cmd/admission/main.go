package main // Entry point of the booking admission daemon

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/concert-ticketing/internal/admission"
	"github.com/iliyamo/concert-ticketing/internal/config"
	"github.com/iliyamo/concert-ticketing/internal/database"
	"github.com/iliyamo/concert-ticketing/internal/queue"
	"github.com/iliyamo/concert-ticketing/internal/repository"
	"github.com/iliyamo/concert-ticketing/internal/status"
)

func main() {
	cfg := config.LoadAdmission()
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

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	admitter := admission.NewAdmitter(
		repository.NewInventoryStore(db),
		status.NewTracker(rdb, config.StatusTTL()),
	)
	consumer := queue.NewConsumer(nil, qcfg.URL, qcfg.Name, admitter.Handle, queue.ConsumerOptions{
		ReconnectInterval: qcfg.ReconnectInterval,
		RequeueDelay:      qcfg.RetryInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.WithFields(logrus.Fields{"queue": qcfg.Name, "env": cfg.Env}).Info("admission daemon starting")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Error("admission daemon stopped unexpectedly")
		return
	}
	logrus.Info("admission daemon stopped")
}
