package discounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/tixmarket-backend/pkg/db"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/lifecycle"
)

const usageUniqueConstraint = "ux_discount_usages_user_grant"

// UsageStore mutates usage records and grant counters. It is meant to run
// inside the booking unit of work.
type UsageStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUsageStore binds a usage store to db.
func NewUsageStore(db *gorm.DB) *UsageStore {
	return &UsageStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns a store that writes through tx.
func (s *UsageStore) WithTx(tx *gorm.DB) *UsageStore {
	if tx == nil {
		return s
	}
	return &UsageStore{db: tx, now: s.now}
}

// MarkUsed consumes grantID for userID: the grant counter is bumped under
// its limit and the user's record becomes used, created if missing. A record
// that is already used, or active past its expiry, is refused.
func (s *UsageStore) MarkUsed(ctx context.Context, userID, grantID uuid.UUID) error {
	now := s.now()
	res := s.db.WithContext(ctx).
		Model(&models.DiscountGrant{}).
		Scopes(lifecycle.Alive("")).
		Where("id = ? AND used_count < usage_limit", grantID).
		Updates(map[string]any{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment discount usage")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeLimitExceeded, "discount code usage limit reached")
	}

	usage, err := s.find(ctx, userID, grantID)
	if err != nil {
		return err
	}
	if usage == nil {
		row := models.DiscountUsage{UserID: userID, GrantID: grantID, Status: enums.UsageStatusUsed}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			if dbpkg.IsUniqueViolation(err, usageUniqueConstraint) {
				return pkgerrors.New(pkgerrors.CodeAlreadyUsed, "discount code already used")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create discount usage")
		}
		return nil
	}
	if err := usable(usage, now); err != nil {
		return err
	}

	flip := s.db.WithContext(ctx).
		Model(&models.DiscountUsage{}).
		Where("id = ? AND status = ?", usage.ID, enums.UsageStatusActive).
		Updates(map[string]any{"status": enums.UsageStatusUsed, "updated_at": now})
	if flip.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, flip.Error, "mark discount usage")
	}
	if flip.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeAlreadyUsed, "discount code already used")
	}
	return nil
}

// Revert hands a consumed grant back: the record returns to active and the
// grant counter drops by one. Records are never deleted.
func (s *UsageStore) Revert(ctx context.Context, userID, grantID uuid.UUID) error {
	now := s.now()
	res := s.db.WithContext(ctx).
		Model(&models.DiscountUsage{}).
		Where("user_id = ? AND grant_id = ? AND status = ?", userID, grantID, enums.UsageStatusUsed).
		Updates(map[string]any{"status": enums.UsageStatusActive, "updated_at": now})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "revert discount usage")
	}
	res = s.db.WithContext(ctx).
		Model(&models.DiscountGrant{}).
		Where("id = ? AND used_count > 0", grantID).
		Updates(map[string]any{
			"used_count": gorm.Expr("used_count - 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement discount usage")
	}
	return nil
}

// Grant hands userID an active record for grantID, e.g. a referral welcome
// coupon. An existing record is left as is.
func (s *UsageStore) Grant(ctx context.Context, userID, grantID uuid.UUID, expiresAt *time.Time) (*models.DiscountUsage, error) {
	existing, err := s.find(ctx, userID, grantID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	row := models.DiscountUsage{
		UserID:    userID,
		GrantID:   grantID,
		Status:    enums.UsageStatusActive,
		ExpiresAt: expiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, usageUniqueConstraint) {
			return s.find(ctx, userID, grantID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create discount usage")
	}
	return &row, nil
}

// Find returns the user's record for grantID, or nil when there is none.
func (s *UsageStore) Find(ctx context.Context, userID, grantID uuid.UUID) (*models.DiscountUsage, error) {
	return s.find(ctx, userID, grantID)
}

func (s *UsageStore) find(ctx context.Context, userID, grantID uuid.UUID) (*models.DiscountUsage, error) {
	var usage models.DiscountUsage
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND grant_id = ?", userID, grantID).
		First(&usage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount usage")
	}
	return &usage, nil
}
