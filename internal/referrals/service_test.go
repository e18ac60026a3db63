package referrals

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tixmarket-backend/pkg/db"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
	"github.com/angelmondragon/tixmarket-backend/pkg/outbox"
)

type fixture struct {
	conn *gorm.DB
	svc  Service
	user models.User
	now  time.Time
}

func newFixture(t *testing.T, emitter outbox.Emitter) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	if emitter == nil {
		emitter = outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	}
	user := models.User{Email: "friend@example.com", Name: "Friend", PointsBalance: 20}
	require.NoError(t, conn.Create(&user).Error)

	svc, err := NewService(db.NewFromConn(conn), emitter, logger.Nop())
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, user: user, now: time.Now().UTC()}
}

func (f *fixture) seedCoupon(t *testing.T, code string) models.DiscountGrant {
	t.Helper()
	grant := models.DiscountGrant{
		Kind:       enums.DiscountKindCoupon,
		Code:       code,
		Value:      500,
		UsageLimit: 100,
		StartsAt:   f.now.Add(-time.Hour),
		EndsAt:     f.now.Add(30 * 24 * time.Hour),
	}
	require.NoError(t, f.conn.Create(&grant).Error)
	return grant
}

func TestRewardCreditsPointsAndGrantsCoupon(t *testing.T) {
	f := newFixture(t, nil)
	grant := f.seedCoupon(t, "WELCOME")
	expires := f.now.Add(90 * 24 * time.Hour).Truncate(time.Second)
	operator := uuid.New()

	res, err := f.svc.Reward(context.Background(), RewardInput{
		UserID:         f.user.ID,
		OperatorID:     operator,
		Points:         100,
		PointsExpireAt: expires,
		CouponCode:     " welcome ",
	})
	require.NoError(t, err)
	require.EqualValues(t, 120, res.PointsBalance)
	require.NotNil(t, res.PointsExpireAt)
	require.True(t, res.PointsExpireAt.Equal(expires))
	require.Equal(t, "WELCOME", res.CouponCode)
	require.Equal(t, grant.ID, *res.CouponGrantID)

	var usage models.DiscountUsage
	require.NoError(t, f.conn.First(&usage, "user_id = ? AND grant_id = ?", f.user.ID, grant.ID).Error)
	require.Equal(t, enums.UsageStatusActive, usage.Status)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventReferralRewarded, events[0].EventType)
	require.Equal(t, f.user.ID, events[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	require.Equal(t, operator, envelope.Actor.UserID)
}

func TestRewardCouponOnly(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCoupon(t, "FRIEND10")

	res, err := f.svc.Reward(context.Background(), RewardInput{UserID: f.user.ID, CouponCode: "FRIEND10"})
	require.NoError(t, err)
	require.EqualValues(t, 20, res.PointsBalance)
	require.Equal(t, "FRIEND10", res.CouponCode)
}

func TestRewardValidation(t *testing.T) {
	f := newFixture(t, nil)
	cases := []struct {
		name  string
		input RewardInput
	}{
		{name: "missing user", input: RewardInput{Points: 10, PointsExpireAt: f.now.Add(time.Hour)}},
		{name: "negative points", input: RewardInput{UserID: f.user.ID, Points: -1}},
		{name: "empty reward", input: RewardInput{UserID: f.user.ID}},
		{name: "past expiry", input: RewardInput{UserID: f.user.ID, Points: 10, PointsExpireAt: f.now.Add(-time.Hour)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Reward(context.Background(), tc.input)
			require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestRewardUnknownCouponRollsBackPoints(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Reward(context.Background(), RewardInput{
		UserID:         f.user.ID,
		Points:         50,
		PointsExpireAt: f.now.Add(time.Hour),
		CouponCode:     "NOPE",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	var reloaded models.User
	require.NoError(t, f.conn.First(&reloaded, "id = ?", f.user.ID).Error)
	require.EqualValues(t, 20, reloaded.PointsBalance)
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

func TestRewardEmitFailureRollsBack(t *testing.T) {
	f := newFixture(t, failingEmitter{})

	_, err := f.svc.Reward(context.Background(), RewardInput{
		UserID:         f.user.ID,
		Points:         50,
		PointsExpireAt: f.now.Add(time.Hour),
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	var reloaded models.User
	require.NoError(t, f.conn.First(&reloaded, "id = ?", f.user.ID).Error)
	require.EqualValues(t, 20, reloaded.PointsBalance)
	require.Nil(t, reloaded.PointsExpireAt)
}
