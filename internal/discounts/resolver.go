// Package discounts validates coupon and voucher codes and tracks per-user
// consumption of each grant.
package discounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/lifecycle"
)

// Resolution is a priced, validated grant. Resolving never consumes it.
type Resolution struct {
	GrantID uuid.UUID
	Kind    enums.DiscountKind
	Code    string
	Value   int64
}

// Resolver looks up grants and checks them against the requesting user.
type Resolver struct {
	db  *gorm.DB
	now func() time.Time
}

// NewResolver builds a resolver reading from db.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns a resolver that reads through tx.
func (r *Resolver) WithTx(tx *gorm.DB) *Resolver {
	if tx == nil {
		return r
	}
	return &Resolver{db: tx, now: r.now}
}

// NormalizeCode canonicalises user supplied codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ResolveCoupon validates a globally scoped code for userID.
func (r *Resolver) ResolveCoupon(ctx context.Context, code string, userID uuid.UUID) (Resolution, error) {
	grant, err := r.FindCoupon(ctx, code)
	if err != nil {
		return Resolution{}, err
	}
	return r.check(ctx, grant, userID)
}

// ResolveVoucher validates a code scoped to eventID for userID.
func (r *Resolver) ResolveVoucher(ctx context.Context, code string, eventID, userID uuid.UUID) (Resolution, error) {
	grant, err := r.findGrant(ctx, r.db.WithContext(ctx).
		Where("kind = ? AND event_id = ? AND code = ?", enums.DiscountKindVoucher, eventID, NormalizeCode(code)))
	if err != nil {
		return Resolution{}, err
	}
	return r.check(ctx, grant, userID)
}

// FindCoupon loads a live coupon by code without user checks.
func (r *Resolver) FindCoupon(ctx context.Context, code string) (*models.DiscountGrant, error) {
	return r.findGrant(ctx, r.db.WithContext(ctx).
		Where("kind = ? AND code = ?", enums.DiscountKindCoupon, NormalizeCode(code)))
}

func (r *Resolver) findGrant(_ context.Context, query *gorm.DB) (*models.DiscountGrant, error) {
	var grant models.DiscountGrant
	err := query.Scopes(lifecycle.Alive("")).First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount grant")
	}
	return &grant, nil
}

// check applies the ordered rules: inactive window, usage limit, then the
// user's own record. A used record always blocks; an active one blocks once
// its own expiry has passed.
func (r *Resolver) check(ctx context.Context, grant *models.DiscountGrant, userID uuid.UUID) (Resolution, error) {
	now := r.now()
	if !grant.ActiveAt(now) {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeInvalidState, "discount code is not active").
			WithDetails(map[string]any{"code": grant.Code, "starts_at": grant.StartsAt, "ends_at": grant.EndsAt})
	}
	if grant.UsedCount >= grant.UsageLimit {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeLimitExceeded, "discount code usage limit reached")
	}
	var usages []models.DiscountUsage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND grant_id = ?", userID, grant.ID).
		Limit(1).
		Find(&usages).Error
	if err != nil {
		return Resolution{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check discount usage")
	}
	if len(usages) > 0 {
		if err := usable(&usages[0], now); err != nil {
			return Resolution{}, err
		}
	}
	return Resolution{
		GrantID: grant.ID,
		Kind:    grant.Kind,
		Code:    grant.Code,
		Value:   grant.Value,
	}, nil
}

// usable rejects a record that is already used or whose personal expiry has
// passed.
func usable(usage *models.DiscountUsage, now time.Time) error {
	if usage.Status == enums.UsageStatusUsed {
		return pkgerrors.New(pkgerrors.CodeAlreadyUsed, "discount code already used")
	}
	if usage.ExpiredAt(now) {
		return pkgerrors.New(pkgerrors.CodeInvalidState, "discount code has expired for this user").
			WithDetails(map[string]any{"expires_at": usage.ExpiresAt})
	}
	return nil
}
