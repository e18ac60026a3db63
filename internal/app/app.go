// Package app boots the pieces every binary shares: env, config, logger and
// the database, plus the booking graph the api and the cron worker both run.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tixmarket-backend/internal/bookings"
	"github.com/angelmondragon/tixmarket-backend/internal/notifications"
	"github.com/angelmondragon/tixmarket-backend/pkg/config"
	"github.com/angelmondragon/tixmarket-backend/pkg/db"
	"github.com/angelmondragon/tixmarket-backend/pkg/instance"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
	"github.com/angelmondragon/tixmarket-backend/pkg/metrics"
	"github.com/angelmondragon/tixmarket-backend/pkg/migrate"
	"github.com/angelmondragon/tixmarket-backend/pkg/outbox"
	"github.com/angelmondragon/tixmarket-backend/pkg/redis"
)

type closer struct {
	name string
	fn   func() error
}

// Runtime owns the process-wide resources. Close releases them in reverse
// order of acquisition.
type Runtime struct {
	Service string
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client

	closers []closer
}

// Boot loads .env when present, reads config, connects to the database and
// applies dev migrations.
func Boot(service string) (*Runtime, error) {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service

	logg := logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	if envErr != nil {
		logg.Debug(context.Background(), "no .env file, using process environment")
	}

	rt := &Runtime{Service: service, Config: cfg, Logger: logg}
	ctx := context.Background()

	rt.DB, err = db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	rt.onClose("database", rt.DB.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, rt.DB); err != nil {
		rt.Close()
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return rt, nil
}

func (r *Runtime) onClose(name string, fn func() error) {
	r.closers = append(r.closers, closer{name: name, fn: fn})
}

func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.fn(); err != nil {
			r.Logger.Error(r.Logger.WithField(context.Background(), "resource", c.name), "app.close_failed", err)
		}
	}
	r.closers = nil
}

// Redis dials the configured server. The connection is closed by Close.
func (r *Runtime) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, r.Config.Redis, r.Logger)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	r.onClose("redis", client.Close)
	return client, nil
}

// SignalContext is canceled on SIGINT or SIGTERM and carries the base log
// fields for this process.
func (r *Runtime) SignalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = r.Logger.WithFields(ctx, map[string]any{
		"env":      r.Config.App.Env,
		"service":  r.Service,
		"instance": instance.GetID(),
	})
	return ctx, stop
}

// ServeMetrics exposes the default registry on TIX_METRICS_ADDR until ctx ends.
func (r *Runtime) ServeMetrics(ctx context.Context) {
	go func() {
		if err := metrics.Serve(ctx, r.Config.Service.MetricsAddr, prometheus.DefaultGatherer, r.Logger); err != nil {
			r.Logger.Error(ctx, "metrics listener stopped", err)
		}
	}()
}

// Bookings is the booking service together with the stores it writes through.
type Bookings struct {
	Service       bookings.Service
	Repository    *bookings.Repository
	Emitter       *outbox.Service
	Outbox        *outbox.Repository
	Notifications notifications.Repository
}

// Bookings wires the booking service against the database, the outbox and
// the configured notification broker.
func (r *Runtime) Bookings() (*Bookings, error) {
	publisher, err := notifications.NewPublisher(r.Config.Notifications)
	if err != nil {
		return nil, fmt.Errorf("notification publisher: %w", err)
	}
	if publisher != nil {
		r.onClose("notification publisher", publisher.Close)
	}

	conn := r.DB.DB()
	b := &Bookings{
		Repository:    bookings.NewRepository(conn),
		Outbox:        outbox.NewRepository(conn),
		Notifications: notifications.NewRepository(conn),
	}
	b.Emitter = outbox.NewService(b.Outbox, r.Logger)
	b.Service, err = bookings.NewService(bookings.ServiceParams{
		Transactor:    bookings.NewGormTransactor(r.DB, b.Emitter),
		Reader:        b.Repository,
		Notifier:      notifications.NewNotifier(b.Notifications, publisher),
		Metrics:       metrics.NewBookingMetrics(prometheus.DefaultRegisterer),
		Logger:        r.Logger,
		PaymentWindow: r.Config.Booking.PaymentWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("booking service: %w", err)
	}
	return b, nil
}
