// Package inventory owns the per-offering seat counters.
package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/lifecycle"
)

// Ledger reserves and releases seats with conditional writes. The guard and
// the decrement are one UPDATE so racing reservations can never oversell.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLedger binds a ledger to db.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns a ledger that writes through tx.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	if tx == nil {
		return l
	}
	return &Ledger{db: tx, now: l.now}
}

// Reserve takes qty seats from the offering.
func (l *Ledger) Reserve(ctx context.Context, offeringID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := l.db.WithContext(ctx).
		Model(&models.Offering{}).
		Scopes(lifecycle.Alive("")).
		Where("id = ? AND available >= ?", offeringID, qty).
		Updates(map[string]any{
			"available":  gorm.Expr("available - ?", qty),
			"updated_at": l.now(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected == 0 {
		if err := l.ensureExists(ctx, offeringID, true); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientCapacity, "not enough seats available").
			WithDetails(map[string]any{"offering_id": offeringID, "requested": qty})
	}
	return nil
}

// Release returns qty seats to the offering. Deleted offerings still accept
// releases so bookings against them can be reversed. A release that would
// push available past total capacity is refused with InvalidState, and since
// it runs inside the reversal's unit of work the whole status change rolls
// back with it.
func (l *Ledger) Release(ctx context.Context, offeringID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	res := l.db.WithContext(ctx).
		Model(&models.Offering{}).
		Where("id = ? AND available + ? <= total_capacity", offeringID, qty).
		Updates(map[string]any{
			"available":  gorm.Expr("available + ?", qty),
			"updated_at": l.now(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	if res.RowsAffected == 0 {
		if err := l.ensureExists(ctx, offeringID, false); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeInvalidState, "release exceeds offering capacity").
			WithDetails(map[string]any{"offering_id": offeringID, "released": qty})
	}
	return nil
}

// Get loads an offering that has not been soft-deleted.
func (l *Ledger) Get(ctx context.Context, offeringID uuid.UUID) (*models.Offering, error) {
	var offering models.Offering
	err := l.db.WithContext(ctx).
		Scopes(lifecycle.Alive("")).
		Where("id = ?", offeringID).
		First(&offering).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offering not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offering")
	}
	return &offering, nil
}

func (l *Ledger) ensureExists(ctx context.Context, offeringID uuid.UUID, aliveOnly bool) error {
	query := l.db.WithContext(ctx).Model(&models.Offering{}).Where("id = ?", offeringID)
	if aliveOnly {
		query = query.Scopes(lifecycle.Alive(""))
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check offering")
	}
	if count == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "offering not found")
	}
	return nil
}
