// Package referrals credits referral rewards: points with an expiry and an
// optional welcome coupon, recorded as one domain event.
package referrals

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tixmarket-backend/internal/discounts"
	"github.com/angelmondragon/tixmarket-backend/internal/loyalty"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
	"github.com/angelmondragon/tixmarket-backend/pkg/outbox"
)

type RewardInput struct {
	UserID          uuid.UUID
	OperatorID      uuid.UUID
	Points          int64
	PointsExpireAt  time.Time
	CouponCode      string
	CouponExpiresAt *time.Time
}

type RewardResult struct {
	UserID         uuid.UUID  `json:"user_id"`
	PointsBalance  int64      `json:"points_balance"`
	PointsExpireAt *time.Time `json:"points_expire_at,omitempty"`
	CouponCode     string     `json:"coupon_code,omitempty"`
	CouponGrantID  *uuid.UUID `json:"coupon_grant_id,omitempty"`
}

type Service interface {
	Reward(ctx context.Context, input RewardInput) (*RewardResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	db      txRunner
	emitter outbox.Emitter
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(db txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db runner required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{db: db, emitter: emitter, logg: logg, now: func() time.Time { return time.Now().UTC() }}, nil
}

type rewardedPayload struct {
	UserID         uuid.UUID  `json:"userId"`
	Points         int64      `json:"points"`
	PointsExpireAt *time.Time `json:"pointsExpireAt,omitempty"`
	CouponCode     string     `json:"couponCode,omitempty"`
}

func (s *service) Reward(ctx context.Context, input RewardInput) (*RewardResult, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}
	code := discounts.NormalizeCode(input.CouponCode)

	result := &RewardResult{UserID: input.UserID}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		account := loyalty.NewAccount(tx)
		if input.Points > 0 {
			if err := account.Reward(ctx, input.UserID, input.Points, input.PointsExpireAt); err != nil {
				return err
			}
		}
		if code != "" {
			grant, err := discounts.NewResolver(tx).FindCoupon(ctx, code)
			if err != nil {
				return err
			}
			if _, err := discounts.NewUsageStore(tx).Grant(ctx, input.UserID, grant.ID, input.CouponExpiresAt); err != nil {
				return err
			}
			result.CouponCode = grant.Code
			result.CouponGrantID = &grant.ID
		}

		user, err := account.FindUser(ctx, input.UserID)
		if err != nil {
			return err
		}
		result.PointsBalance = user.PointsBalance
		result.PointsExpireAt = user.PointsExpireAt

		payload := rewardedPayload{UserID: input.UserID, Points: input.Points, CouponCode: result.CouponCode}
		if input.Points > 0 {
			payload.PointsExpireAt = user.PointsExpireAt
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventReferralRewarded,
			AggregateType: enums.AggregateUser,
			AggregateID:   input.UserID,
			Actor:         &outbox.ActorRef{UserID: input.OperatorID, Role: string(enums.UserRoleOperator)},
			Data:          payload,
			OccurredAt:    s.now(),
		}
		if err := s.emitter.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue referral event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id": input.UserID.String(),
		"points":  input.Points,
		"coupon":  result.CouponCode,
	})
	s.logg.Info(logCtx, "referral rewarded")
	return result, nil
}

func (s *service) validate(input RewardInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Points < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "points must not be negative")
	}
	if input.Points == 0 && strings.TrimSpace(input.CouponCode) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reward needs points or a coupon")
	}
	if input.Points > 0 && !input.PointsExpireAt.After(s.now()) {
		return pkgerrors.New(pkgerrors.CodeValidation, "points expiry must be in the future")
	}
	return nil
}
