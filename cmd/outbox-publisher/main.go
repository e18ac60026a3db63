package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tixmarket-backend/internal/app"
	"github.com/angelmondragon/tixmarket-backend/pkg/metrics"
	"github.com/angelmondragon/tixmarket-backend/pkg/outbox"
	"github.com/angelmondragon/tixmarket-backend/pkg/outbox/registry"
	"github.com/angelmondragon/tixmarket-backend/pkg/pubsub"
)

func main() {
	rt, err := app.Boot("outbox-publisher")
	if err != nil {
		fmt.Fprintf(os.Stderr, "outbox-publisher: %v\n", err)
		os.Exit(1)
	}
	err = run(rt)
	rt.Close()
	if err != nil {
		rt.Logger.Error(context.Background(), "outbox publisher exited", err)
		os.Exit(1)
	}
}

func run(rt *app.Runtime) error {
	ctx, stop := rt.SignalContext()
	defer stop()

	broker, err := pubsub.NewClient(ctx, rt.Config.GCP, rt.Config.PubSub, rt.Logger)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			rt.Logger.Error(ctx, "pubsub close failed", err)
		}
	}()

	events, err := registry.NewEventRegistry(rt.Config.PubSub)
	if err != nil {
		return err
	}
	relay, err := NewRelay(RelayParams{
		Config:   rt.Config.Outbox,
		Logger:   rt.Logger,
		DB:       rt.DB,
		Broker:   broker,
		Store:    outbox.NewRepository(rt.DB.DB()),
		Resolver: events,
		Metrics:  metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	rt.ServeMetrics(ctx)
	rt.Logger.Info(ctx, "outbox.relay_started")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	rt.Logger.Info(ctx, "outbox.relay_stopped")
	return nil
}
