package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tixmarket-backend/api/middleware"
	"github.com/angelmondragon/tixmarket-backend/api/responses"
	"github.com/angelmondragon/tixmarket-backend/api/validators"
	"github.com/angelmondragon/tixmarket-backend/internal/referrals"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
)

type referralRewardRequest struct {
	UserID          string     `json:"user_id" validate:"required,uuid"`
	Points          int64      `json:"points" validate:"gte=0"`
	PointsExpireAt  *time.Time `json:"points_expire_at"`
	CouponCode      string     `json:"coupon_code" validate:"omitempty,max=64"`
	CouponExpiresAt *time.Time `json:"coupon_expires_at"`
}

// RewardReferral credits a referral reward on behalf of an operator.
func RewardReferral(svc referrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referrals service unavailable"))
			return
		}
		caller, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var req referralRewardRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		input := referrals.RewardInput{
			UserID:          userID,
			OperatorID:      caller.UserID,
			Points:          req.Points,
			CouponCode:      req.CouponCode,
			CouponExpiresAt: req.CouponExpiresAt,
		}
		if req.PointsExpireAt != nil {
			input.PointsExpireAt = req.PointsExpireAt.UTC()
		}

		result, err := svc.Reward(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
