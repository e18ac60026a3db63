package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
)

type pointsExpirer interface {
	ExpireBalances(ctx context.Context, now time.Time, limit int) (int64, error)
}

type PointsExpiryJobParams struct {
	Logger    *logger.Logger
	Accounts  pointsExpirer
	BatchSize int
}

func NewPointsExpiryJob(params PointsExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("loyalty accounts required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &pointsExpiryJob{
		logg:     params.Logger,
		accounts: params.Accounts,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type pointsExpiryJob struct {
	logg     *logger.Logger
	accounts pointsExpirer
	batch    int
	now      func() time.Time
}

func (j *pointsExpiryJob) Name() string { return "points-expiry" }

func (j *pointsExpiryJob) Run(ctx context.Context) (int, error) {
	zeroed, err := j.accounts.ExpireBalances(ctx, j.now().UTC(), j.batch)
	if err != nil {
		return 0, fmt.Errorf("expire points: %w", err)
	}
	if zeroed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "users_zeroed", zeroed), "points balances expired")
	}
	return int(zeroed), nil
}
