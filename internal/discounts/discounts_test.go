package discounts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tixmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newResolver(db *gorm.DB) *Resolver {
	r := NewResolver(db)
	r.now = func() time.Time { return fixedNow }
	return r
}

func seedGrant(t *testing.T, db *gorm.DB, mutate func(*models.DiscountGrant)) models.DiscountGrant {
	t.Helper()
	grant := models.DiscountGrant{
		Kind:       enums.DiscountKindCoupon,
		Code:       "WELCOME10",
		Value:      100,
		UsageLimit: 5,
		StartsAt:   fixedNow.Add(-24 * time.Hour),
		EndsAt:     fixedNow.Add(24 * time.Hour),
	}
	if mutate != nil {
		mutate(&grant)
	}
	require.NoError(t, db.Create(&grant).Error)
	return grant
}

func TestResolveCoupon(t *testing.T) {
	db := dbtest.Open(t)
	grant := seedGrant(t, db, nil)

	res, err := newResolver(db).ResolveCoupon(context.Background(), " welcome10 ", uuid.New())
	require.NoError(t, err)
	require.Equal(t, grant.ID, res.GrantID)
	require.Equal(t, int64(100), res.Value)
	require.Equal(t, enums.DiscountKindCoupon, res.Kind)
}

func TestResolveFailureOrder(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	cases := []struct {
		name   string
		mutate func(*models.DiscountGrant)
		usage  bool
		want   pkgerrors.Code
	}{
		{
			name: "soft deleted",
			mutate: func(g *models.DiscountGrant) {
				at := fixedNow.Add(-time.Hour)
				g.DeletedAt = &at
			},
			want: pkgerrors.CodeNotFound,
		},
		{
			name: "not started wins over limit",
			mutate: func(g *models.DiscountGrant) {
				g.StartsAt = fixedNow.Add(time.Hour)
				g.EndsAt = fixedNow.Add(2 * time.Hour)
				g.UsedCount = g.UsageLimit
			},
			want: pkgerrors.CodeInvalidState,
		},
		{
			name: "ended",
			mutate: func(g *models.DiscountGrant) {
				g.EndsAt = fixedNow.Add(-time.Minute)
			},
			want: pkgerrors.CodeInvalidState,
		},
		{
			name: "limit wins over already used",
			mutate: func(g *models.DiscountGrant) {
				g.UsedCount = g.UsageLimit
			},
			usage: true,
			want:  pkgerrors.CodeLimitExceeded,
		},
		{
			name:  "already used",
			usage: true,
			want:  pkgerrors.CodeAlreadyUsed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := dbtest.Open(t)
			grant := seedGrant(t, db, tc.mutate)
			if tc.usage {
				require.NoError(t, db.Create(&models.DiscountUsage{UserID: userID, GrantID: grant.ID, Status: enums.UsageStatusUsed}).Error)
			}
			_, err := newResolver(db).ResolveCoupon(ctx, grant.Code, userID)
			require.True(t, pkgerrors.HasCode(err, tc.want), "got %v", err)
		})
	}

	t.Run("unknown code", func(t *testing.T) {
		db := dbtest.Open(t)
		_, err := newResolver(db).ResolveCoupon(ctx, "NOPE", userID)
		require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
	})
}

func TestResolveVoucherIsScopedToEvent(t *testing.T) {
	db := dbtest.Open(t)
	eventID := uuid.New()
	seedGrant(t, db, func(g *models.DiscountGrant) {
		g.Kind = enums.DiscountKindVoucher
		g.EventID = &eventID
		g.Code = "VIP"
	})
	ctx := context.Background()
	r := newResolver(db)

	_, err := r.ResolveVoucher(ctx, "vip", eventID, uuid.New())
	require.NoError(t, err)

	_, err = r.ResolveVoucher(ctx, "vip", uuid.New(), uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = r.ResolveCoupon(ctx, "vip", uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "vouchers are not coupons")
}

func TestMarkUsedAndRevert(t *testing.T) {
	db := dbtest.Open(t)
	grant := seedGrant(t, db, nil)
	store := NewUsageStore(db)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.MarkUsed(ctx, userID, grant.ID))
	usage, err := store.Find(ctx, userID, grant.ID)
	require.NoError(t, err)
	require.Equal(t, enums.UsageStatusUsed, usage.Status)

	err = store.MarkUsed(ctx, userID, grant.ID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeAlreadyUsed), "got %v", err)

	require.NoError(t, store.Revert(ctx, userID, grant.ID))
	usage, err = store.Find(ctx, userID, grant.ID)
	require.NoError(t, err)
	require.NotNil(t, usage, "revert must keep the record")
	require.Equal(t, enums.UsageStatusActive, usage.Status)

	var reloaded models.DiscountGrant
	require.NoError(t, db.First(&reloaded, "id = ?", grant.ID).Error)
	require.Equal(t, 1, reloaded.UsedCount, "the rejected second MarkUsed ran outside a transaction and kept its increment")

	require.NoError(t, store.MarkUsed(ctx, userID, grant.ID), "an active record can be consumed again")
}

func TestMarkUsedRollsBackCounterInTransaction(t *testing.T) {
	db := dbtest.Open(t)
	grant := seedGrant(t, db, nil)
	ctx := context.Background()
	userID := uuid.New()
	require.NoError(t, db.Create(&models.DiscountUsage{UserID: userID, GrantID: grant.ID, Status: enums.UsageStatusUsed}).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		return NewUsageStore(tx).MarkUsed(ctx, userID, grant.ID)
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeAlreadyUsed), "got %v", err)

	var reloaded models.DiscountGrant
	require.NoError(t, db.First(&reloaded, "id = ?", grant.ID).Error)
	require.Zero(t, reloaded.UsedCount)
}

func TestMarkUsedRespectsLimit(t *testing.T) {
	db := dbtest.Open(t)
	grant := seedGrant(t, db, func(g *models.DiscountGrant) { g.UsageLimit = 1 })
	store := NewUsageStore(db)
	ctx := context.Background()

	require.NoError(t, store.MarkUsed(ctx, uuid.New(), grant.ID))
	err := store.MarkUsed(ctx, uuid.New(), grant.ID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeLimitExceeded), "got %v", err)
}

func TestUsedRecordBlocksEveryGrant(t *testing.T) {
	db := dbtest.Open(t)
	grant := seedGrant(t, db, func(g *models.DiscountGrant) { g.UsageLimit = 10 })
	ctx := context.Background()
	userID := uuid.New()
	store := NewUsageStore(db)

	require.NoError(t, store.MarkUsed(ctx, userID, grant.ID))
	_, err := newResolver(db).ResolveCoupon(ctx, grant.Code, userID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeAlreadyUsed), "got %v", err)

	err = db.Transaction(func(tx *gorm.DB) error {
		return NewUsageStore(tx).MarkUsed(ctx, userID, grant.ID)
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeAlreadyUsed), "got %v", err)

	var reloaded models.DiscountGrant
	require.NoError(t, db.First(&reloaded, "id = ?", grant.ID).Error)
	require.Equal(t, 1, reloaded.UsedCount)

	_, err = newResolver(db).ResolveCoupon(ctx, grant.Code, uuid.New())
	require.NoError(t, err, "other users are unaffected")
}

func TestGrantedRecordLapsesAtItsExpiry(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		expires time.Time
		want    pkgerrors.Code
	}{
		{name: "expired", expires: fixedNow.Add(-time.Minute), want: pkgerrors.CodeInvalidState},
		{name: "still valid", expires: fixedNow.Add(time.Minute)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := dbtest.Open(t)
			grant := seedGrant(t, db, nil)
			userID := uuid.New()
			store := NewUsageStore(db)
			store.now = func() time.Time { return fixedNow }
			_, err := store.Grant(ctx, userID, grant.ID, &tc.expires)
			require.NoError(t, err)

			_, resolveErr := newResolver(db).ResolveCoupon(ctx, grant.Code, userID)
			markErr := store.MarkUsed(ctx, userID, grant.ID)
			if tc.want == "" {
				require.NoError(t, resolveErr)
				require.NoError(t, markErr)
				return
			}
			require.True(t, pkgerrors.HasCode(resolveErr, tc.want), "got %v", resolveErr)
			require.True(t, pkgerrors.HasCode(markErr, tc.want), "got %v", markErr)

			usage, err := store.Find(ctx, userID, grant.ID)
			require.NoError(t, err)
			require.Equal(t, enums.UsageStatusActive, usage.Status)
		})
	}
}

func TestGrantIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	grant := seedGrant(t, db, nil)
	store := NewUsageStore(db)
	ctx := context.Background()
	userID := uuid.New()
	expires := fixedNow.Add(30 * 24 * time.Hour)

	first, err := store.Grant(ctx, userID, grant.ID, &expires)
	require.NoError(t, err)
	require.Equal(t, enums.UsageStatusActive, first.Status)

	second, err := store.Grant(ctx, userID, grant.ID, nil)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	require.NoError(t, store.MarkUsed(ctx, userID, grant.ID))
	usage, err := store.Find(ctx, userID, grant.ID)
	require.NoError(t, err)
	require.Equal(t, enums.UsageStatusUsed, usage.Status)
}
