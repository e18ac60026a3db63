package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tixmarket-backend/internal/bookings"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
)

const (
	defaultConfirmationTimeout = 72 * time.Hour
	defaultSweepBatch          = 200
)

type dueBookings interface {
	ListPaymentOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListConfirmationStale(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type statusUpdater interface {
	UpdateStatus(ctx context.Context, bookingID uuid.UUID, target enums.BookingStatus, actor bookings.Actor) (*models.Booking, error)
}

type BookingExpirationJobParams struct {
	Logger              *logger.Logger
	Repository          dueBookings
	Bookings            statusUpdater
	ConfirmationTimeout time.Duration
	BatchSize           int
}

func NewBookingExpirationJob(params BookingExpirationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("booking repository required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("booking service required")
	}
	timeout := params.ConfirmationTimeout
	if timeout <= 0 {
		timeout = defaultConfirmationTimeout
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &bookingExpirationJob{
		logg:    params.Logger,
		repo:    params.Repository,
		svc:     params.Bookings,
		timeout: timeout,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type bookingExpirationJob struct {
	logg    *logger.Logger
	repo    dueBookings
	svc     statusUpdater
	timeout time.Duration
	batch   int
	now     func() time.Time
}

func (j *bookingExpirationJob) Name() string { return "booking-expiration" }

// Run expires unpaid bookings past their deadline and cancels bookings the
// seller never answered. Each booking is settled independently.
func (j *bookingExpirationJob) Run(ctx context.Context) (int, error) {
	now := j.now().UTC()

	overdue, err := j.repo.ListPaymentOverdue(ctx, now, j.batch)
	if err != nil {
		return 0, fmt.Errorf("list overdue bookings: %w", err)
	}
	stale, err := j.repo.ListConfirmationStale(ctx, now.Add(-j.timeout), j.batch)
	if err != nil {
		return 0, fmt.Errorf("list stale bookings: %w", err)
	}

	var (
		errs      error
		processed int
		skipped   int
	)
	settle := func(ids []uuid.UUID, target enums.BookingStatus) {
		for _, id := range ids {
			if ctx.Err() != nil {
				errs = multierr.Append(errs, ctx.Err())
				return
			}
			_, uerr := j.svc.UpdateStatus(ctx, id, target, bookings.Actor{IsAutoProcess: true})
			switch {
			case uerr == nil:
				processed++
			case pkgerrors.HasCode(uerr, pkgerrors.CodeInvalidTransition):
				skipped++
			default:
				logCtx := j.logg.WithBookingID(ctx, id.String())
				j.logg.Error(logCtx, "auto transition failed", uerr)
				errs = multierr.Append(errs, fmt.Errorf("booking %s -> %s: %w", id, target, uerr))
			}
		}
	}
	settle(overdue, enums.BookingStatusExpired)
	settle(stale, enums.BookingStatusCancelled)

	if processed > 0 || skipped > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"expired_candidates":   len(overdue),
			"cancelled_candidates": len(stale),
			"processed":            processed,
			"skipped":              skipped,
		})
		j.logg.Info(logCtx, "booking sweep finished")
	}
	return processed, errs
}
