package loyalty

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tixmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
)

func seedUser(t *testing.T, db *gorm.DB, balance int64, expireAt *time.Time) models.User {
	t.Helper()
	user := models.User{
		Email:          uuid.NewString() + "@example.com",
		Name:           "Buyer",
		PointsBalance:  balance,
		PointsExpireAt: expireAt,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestDebitAndCredit(t *testing.T) {
	db := dbtest.Open(t)
	account := NewAccount(db)
	ctx := context.Background()
	user := seedUser(t, db, 500, nil)

	require.NoError(t, account.Debit(ctx, user.ID, 200))
	balance, err := account.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 300, balance)

	err = account.Debit(ctx, user.ID, 301)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientPoints), "got %v", err)

	require.NoError(t, account.Credit(ctx, user.ID, 200))
	balance, err = account.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 500, balance)
}

func TestDebitEdgeCases(t *testing.T) {
	db := dbtest.Open(t)
	account := NewAccount(db)
	ctx := context.Background()

	require.NoError(t, account.Debit(ctx, uuid.New(), 0), "zero debit is a no-op")
	err := account.Debit(ctx, uuid.New(), 10)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
	err = account.Credit(ctx, uuid.New(), 10)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestBalanceNeverNegativeUnderSequentialDebits(t *testing.T) {
	db := dbtest.Open(t)
	account := NewAccount(db)
	ctx := context.Background()
	user := seedUser(t, db, 100, nil)

	for i := 0; i < 5; i++ {
		err := account.Debit(ctx, user.ID, 30)
		if err != nil {
			require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientPoints))
		}
	}
	balance, err := account.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 10, balance)
}

func TestReward(t *testing.T) {
	db := dbtest.Open(t)
	account := NewAccount(db)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	account.now = func() time.Time { return now }
	ctx := context.Background()
	user := seedUser(t, db, 10, nil)

	expires := now.Add(90 * 24 * time.Hour)
	require.NoError(t, account.Reward(ctx, user.ID, 250, expires))

	reloaded, err := account.FindUser(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 260, reloaded.PointsBalance)
	require.NotNil(t, reloaded.PointsExpireAt)
	require.True(t, reloaded.PointsExpireAt.Equal(expires))

	err = account.Reward(ctx, user.ID, 0, expires)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	err = account.Reward(ctx, user.ID, 10, now.Add(-time.Hour))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	err = account.Reward(ctx, uuid.New(), 10, expires)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestExpireBalances(t *testing.T) {
	db := dbtest.Open(t)
	account := NewAccount(db)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	stale := seedUser(t, db, 100, &past)
	fresh := seedUser(t, db, 100, &future)
	noExpiry := seedUser(t, db, 100, nil)

	touched, err := account.ExpireBalances(ctx, now, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, touched)

	for id, want := range map[uuid.UUID]int64{stale.ID: 0, fresh.ID: 100, noExpiry.ID: 100} {
		balance, err := account.Balance(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, balance)
	}

	touched, err = account.ExpireBalances(ctx, now, 10)
	require.NoError(t, err)
	require.Zero(t, touched, "second run finds nothing")
}
