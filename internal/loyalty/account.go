// Package loyalty owns user point balances.
package loyalty

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

// Account debits and credits points with guarded single-statement updates.
type Account struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAccount binds an account store to db.
func NewAccount(db *gorm.DB) *Account {
	return &Account{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns an account store that writes through tx.
func (a *Account) WithTx(tx *gorm.DB) *Account {
	if tx == nil {
		return a
	}
	return &Account{db: tx, now: a.now}
}

// Balance returns the user's current balance.
func (a *Account) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := a.FindUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.PointsBalance, nil
}

// FindUser loads a live user.
func (a *Account) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := a.db.WithContext(ctx).
		Scopes(lifecycle.Alive("")).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return &user, nil
}

// Debit removes amount points. A non-positive amount is a no-op.
func (a *Account) Debit(ctx context.Context, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	res := a.db.WithContext(ctx).
		Model(&models.User{}).
		Scopes(lifecycle.Alive("")).
		Where("id = ? AND points_balance >= ?", userID, amount).
		Updates(map[string]any{
			"points_balance": gorm.Expr("points_balance - ?", amount),
			"updated_at":     a.now(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "debit points")
	}
	if res.RowsAffected == 0 {
		if _, err := a.FindUser(ctx, userID); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientPoints, "not enough loyalty points").
			WithDetails(map[string]any{"requested": amount})
	}
	return nil
}

// Credit adds amount points back. Soft-deleted users still receive
// reversal credits.
func (a *Account) Credit(ctx context.Context, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	res := a.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"points_balance": gorm.Expr("points_balance + ?", amount),
			"updated_at":     a.now(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "credit points")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

// Reward credits referral points and moves the balance expiry to expiresAt.
func (a *Account) Reward(ctx context.Context, userID uuid.UUID, amount int64, expiresAt time.Time) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reward must be positive")
	}
	if !expiresAt.After(a.now()) {
		return pkgerrors.New(pkgerrors.CodeValidation, "reward expiry must be in the future")
	}
	res := a.db.WithContext(ctx).
		Model(&models.User{}).
		Scopes(lifecycle.Alive("")).
		Where("id = ?", userID).
		Updates(map[string]any{
			"points_balance":   gorm.Expr("points_balance + ?", amount),
			"points_expire_at": expiresAt.UTC(),
			"updated_at":       a.now(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reward points")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

// ExpireBalances zeroes balances whose expiry passed before now and returns
// the number of users touched.
func (a *Account) ExpireBalances(ctx context.Context, now time.Time, limit int) (int64, error) {
	query := a.db.WithContext(ctx).
		Model(&models.User{}).
		Where("points_balance > 0 AND points_expire_at IS NOT NULL AND points_expire_at < ?", now.UTC())
	if limit > 0 {
		sub := a.db.WithContext(ctx).
			Model(&models.User{}).
			Select("id").
			Where("points_balance > 0 AND points_expire_at IS NOT NULL AND points_expire_at < ?", now.UTC()).
			Order("points_expire_at ASC").
			Limit(limit)
		query = a.db.WithContext(ctx).
			Model(&models.User{}).
			Where("id IN (?) AND points_balance > 0 AND points_expire_at < ?", sub, now.UTC())
	}
	res := query.Updates(map[string]any{
		"points_balance":   0,
		"points_expire_at": nil,
		"updated_at":       a.now(),
	})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "expire points")
	}
	return res.RowsAffected, nil
}
