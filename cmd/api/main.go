package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/angelmondragon/tixmarket-backend/api/routes"
	"github.com/angelmondragon/tixmarket-backend/internal/app"
	"github.com/angelmondragon/tixmarket-backend/internal/notifications"
	"github.com/angelmondragon/tixmarket-backend/internal/referrals"
)

const shutdownTimeout = 15 * time.Second

func main() {
	rt, err := app.Boot("api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
	err = run(rt)
	rt.Close()
	if err != nil {
		rt.Logger.Error(context.Background(), "api exited", err)
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
	inbox, err := notifications.NewService(booking.Notifications)
	if err != nil {
		return fmt.Errorf("notifications service: %w", err)
	}
	referral, err := referrals.NewService(rt.DB, booking.Emitter, rt.Logger)
	if err != nil {
		return fmt.Errorf("referrals service: %w", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = rt.Config.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(rt.Config, rt.Logger, rt.DB, redisClient, booking.Service, inbox, referral),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx = rt.Logger.WithField(ctx, "addr", server.Addr)
	rt.Logger.Info(ctx, "api.listening")

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	rt.Logger.Info(shutdownCtx, "api.stopped")
	return nil
}
