package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tixmarket-backend/api/middleware"
	"github.com/angelmondragon/tixmarket-backend/internal/referrals"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
)

type stubReferrals struct {
	got referrals.RewardInput
	err error
}

func (s *stubReferrals) Reward(_ context.Context, input referrals.RewardInput) (*referrals.RewardResult, error) {
	s.got = input
	if s.err != nil {
		return nil, s.err
	}
	return &referrals.RewardResult{UserID: input.UserID, PointsBalance: input.Points}, nil
}

func operatorRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/operator/referrals", strings.NewReader(body))
	return req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{UserID: operatorID, Role: enums.UserRoleOperator}))
}

var operatorID = uuid.New()

func TestRewardReferral(t *testing.T) {
	svc := &stubReferrals{}
	userID := uuid.New()
	expires := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
	body := `{"user_id":"` + userID.String() + `","points":500,"points_expire_at":"` + expires.Format(time.RFC3339) + `","coupon_code":"welcome"}`

	resp := httptest.NewRecorder()
	RewardReferral(svc, testLogger())(resp, operatorRequest(body))

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, userID, svc.got.UserID)
	require.Equal(t, operatorID, svc.got.OperatorID)
	require.EqualValues(t, 500, svc.got.Points)
	require.True(t, expires.Equal(svc.got.PointsExpireAt))
	require.Equal(t, "welcome", svc.got.CouponCode)
	require.Nil(t, svc.got.CouponExpiresAt)
}

func TestRewardReferralRejectsBadBody(t *testing.T) {
	for name, body := range map[string]string{
		"missing user":    `{"points":10}`,
		"negative points": `{"user_id":"` + uuid.NewString() + `","points":-1}`,
		"bad json":        `{"user_id":`,
	} {
		resp := httptest.NewRecorder()
		RewardReferral(&stubReferrals{}, testLogger())(resp, operatorRequest(body))
		require.Equal(t, http.StatusBadRequest, resp.Code, name)
	}
}

func TestRewardReferralPropagatesServiceErrors(t *testing.T) {
	svc := &stubReferrals{err: pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")}
	resp := httptest.NewRecorder()
	RewardReferral(svc, testLogger())(resp, operatorRequest(`{"user_id":"`+uuid.NewString()+`","coupon_code":"nope"}`))
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRewardReferralRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/operator/referrals", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	RewardReferral(&stubReferrals{}, testLogger())(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
