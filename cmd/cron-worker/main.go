package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tixmarket-backend/internal/app"
	"github.com/angelmondragon/tixmarket-backend/internal/cron"
	"github.com/angelmondragon/tixmarket-backend/internal/loyalty"
	"github.com/angelmondragon/tixmarket-backend/pkg/metrics"
	"github.com/angelmondragon/tixmarket-backend/pkg/redis"
)

func main() {
	rt, err := app.Boot("cron-worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "cron-worker: %v\n", err)
		os.Exit(1)
	}
	err = run(rt)
	rt.Close()
	if err != nil {
		rt.Logger.Error(context.Background(), "cron worker exited", err)
		os.Exit(1)
	}
}

func run(rt *app.Runtime) error {
	ctx, stop := rt.SignalContext()
	defer stop()

	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}
	booking, err := rt.Bookings()
	if err != nil {
		return err
	}

	registry := cron.NewRegistry()
	if err := registerJobs(registry, rt, booking); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	env := rt.Config.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, redis.LockKey("cron", env), rt.Config.Cron.LockTTL)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   rt.Logger,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: rt.Config.Cron.Interval,
	})
	if err != nil {
		return err
	}

	rt.ServeMetrics(ctx)
	rt.Logger.Info(ctx, "cron.started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	rt.Logger.Info(ctx, "cron.stopped")
	return nil
}

func registerJobs(registry *cron.Registry, rt *app.Runtime, booking *app.Bookings) error {
	cfg, logg := rt.Config, rt.Logger

	expiration, err := cron.NewBookingExpirationJob(cron.BookingExpirationJobParams{
		Logger:              logg,
		Repository:          booking.Repository,
		Bookings:            booking.Service,
		ConfirmationTimeout: cfg.Booking.ConfirmationTimeout,
		BatchSize:           cfg.Booking.SweepBatchSize,
	})
	if err != nil {
		return err
	}
	pointsExpiry, err := cron.NewPointsExpiryJob(cron.PointsExpiryJobParams{
		Logger:    logg,
		Accounts:  loyalty.NewAccount(rt.DB.DB()),
		BatchSize: cfg.Booking.SweepBatchSize,
	})
	if err != nil {
		return err
	}
	outboxRetention, err := cron.NewRetentionJob("outbox-retention", cfg.Outbox.RetentionDays,
		cron.PurgePublishedOutbox(rt.DB, booking.Outbox), logg)
	if err != nil {
		return err
	}
	notificationCleanup, err := cron.NewRetentionJob("notification-cleanup", cfg.Cron.NotificationRetentionDays,
		cron.PurgeReadNotifications(booking.Notifications), logg)
	if err != nil {
		return err
	}

	return registry.Register(expiration, pointsExpiry, outboxRetention, notificationCleanup)
}
