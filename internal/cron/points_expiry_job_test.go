package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tixmarket-backend/internal/loyalty"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
)

func TestPointsExpiryJobZeroesLapsedBalances(t *testing.T) {
	db := dbtest.Open(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	lapsed := models.User{ID: uuid.New(), Email: "lapsed@example.com", Name: "Lapsed", PointsBalance: 300, PointsExpireAt: &past}
	current := models.User{ID: uuid.New(), Email: "current@example.com", Name: "Current", PointsBalance: 50, PointsExpireAt: &future}
	require.NoError(t, db.Create(&lapsed).Error)
	require.NoError(t, db.Create(&current).Error)

	jobIface, err := NewPointsExpiryJob(PointsExpiryJobParams{
		Logger:   logger.Nop(),
		Accounts: loyalty.NewAccount(db),
	})
	require.NoError(t, err)
	job := jobIface.(*pointsExpiryJob)
	job.now = func() time.Time { return now }

	zeroed, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, zeroed)

	var zeroedUser models.User
	require.NoError(t, db.First(&zeroedUser, "id = ?", lapsed.ID).Error)
	require.Zero(t, zeroedUser.PointsBalance)
	require.Nil(t, zeroedUser.PointsExpireAt)

	var untouched models.User
	require.NoError(t, db.First(&untouched, "id = ?", current.ID).Error)
	require.EqualValues(t, 50, untouched.PointsBalance)
	require.NotNil(t, untouched.PointsExpireAt)
	require.True(t, untouched.PointsExpireAt.Equal(future))

	again, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, again, "a second pass finds nothing left to expire")
}
