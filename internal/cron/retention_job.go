package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
)

// Purge deletes rows older than cutoff and returns how many went.
type Purge func(ctx context.Context, cutoff time.Time) (int64, error)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedOutboxDeleter interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// PurgePublishedOutbox drops published outbox rows. Pending and parked rows
// are never touched.
func PurgePublishedOutbox(db txRunner, repo publishedOutboxDeleter) Purge {
	return func(ctx context.Context, cutoff time.Time) (int64, error) {
		var n int64
		err := db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = repo.DeletePublishedBefore(tx, cutoff)
			return err
		})
		return n, err
	}
}

type readNotificationDeleter interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeReadNotifications drops read inbox rows. Unread rows are kept however
// old they are.
func PurgeReadNotifications(repo readNotificationDeleter) Purge {
	return repo.DeleteReadBefore
}

// RetentionJob runs purge with a cutoff of now minus keepDays.
type RetentionJob struct {
	name     string
	keepDays int
	purge    Purge
	logg     *logger.Logger
	now      func() time.Time
}

func NewRetentionJob(name string, keepDays int, purge Purge, logg *logger.Logger) (*RetentionJob, error) {
	switch {
	case name == "":
		return nil, errors.New("retention job: name required")
	case keepDays <= 0:
		return nil, fmt.Errorf("retention job %s: keep days must be positive, got %d", name, keepDays)
	case purge == nil:
		return nil, fmt.Errorf("retention job %s: purge required", name)
	case logg == nil:
		return nil, fmt.Errorf("retention job %s: logger required", name)
	}
	return &RetentionJob{name: name, keepDays: keepDays, purge: purge, logg: logg, now: time.Now}, nil
}

func (j *RetentionJob) Name() string { return j.name }

func (j *RetentionJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().AddDate(0, 0, -j.keepDays)
	n, err := j.purge(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", j.name, err)
	}
	if n > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "rows_deleted": n}), "retention.purged")
	}
	return int(n), nil
}
