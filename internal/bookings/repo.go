package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/lifecycle"
	"github.com/angelmondragon/tixmarket-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Summary is a booking joined with the names and codes the API shows.
type Summary struct {
	models.Booking
	OfferingName string  `gorm:"column:offering_name" json:"offering_name"`
	EventName    string  `gorm:"column:event_name" json:"event_name"`
	CouponCode   *string `gorm:"column:coupon_code" json:"coupon_code,omitempty"`
	VoucherCode  *string `gorm:"column:voucher_code" json:"voucher_code,omitempty"`
}

// ListQuery filters bookings for one party. Exactly one of BuyerID and
// SellerID is expected.
type ListQuery struct {
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
	Status   *enums.BookingStatus
	Limit    int
	Cursor   *pagination.Cursor
}

// StatusCount is one row of the seller statistics aggregate.
type StatusCount struct {
	Status enums.BookingStatus `gorm:"column:status"`
	Count  int64               `gorm:"column:count"`
	Amount int64               `gorm:"column:amount"`
}

// Repository is the gorm implementation of the bookings store plus the
// read models used by the API and the sweeper.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx, now: r.now}
}

func (r *Repository) Insert(ctx context.Context, booking *models.Booking) error {
	if err := r.db.WithContext(ctx).Create(booking).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert booking")
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).Scopes(lifecycle.Alive("")).Where("id = ?", id).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	return &booking, nil
}

func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.BookingStatus, proof *string) error {
	updates := map[string]any{
		"status":     to,
		"updated_at": r.now(),
	}
	if proof != nil {
		updates["payment_proof"] = *proof
	}
	res := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Scopes(lifecycle.Alive("")).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update booking status")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "booking status changed concurrently").
			WithDetails(map[string]any{"booking_id": id, "from": from, "to": to})
	}
	return nil
}

func (r *Repository) summaries(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("bookings").
		Select("bookings.*, offerings.name AS offering_name, events.name AS event_name, " +
			"coupons.code AS coupon_code, vouchers.code AS voucher_code").
		Joins("JOIN offerings ON offerings.id = bookings.offering_id").
		Joins("JOIN events ON events.id = bookings.event_id").
		Joins("LEFT JOIN discount_grants coupons ON coupons.id = bookings.coupon_id").
		Joins("LEFT JOIN discount_grants vouchers ON vouchers.id = bookings.voucher_id").
		Where("bookings.deleted_at IS NULL")
}

// GetSummary loads one booking with its display fields.
func (r *Repository) GetSummary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	var rows []Summary
	if err := r.summaries(ctx).Where("bookings.id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	return &rows[0], nil
}

// List returns one page, newest first, and the cursor of the next page.
func (r *Repository) List(ctx context.Context, query ListQuery) ([]Summary, *pagination.Cursor, error) {
	q := r.summaries(ctx)
	if query.BuyerID != nil {
		q = q.Where("bookings.buyer_id = ?", *query.BuyerID)
	}
	if query.SellerID != nil {
		q = q.Where("bookings.seller_id = ?", *query.SellerID)
	}
	if query.Status != nil {
		q = q.Where("bookings.status = ?", *query.Status)
	}
	var rows []Summary
	if err := q.Scopes(pagination.Keyset("bookings", query.Cursor, query.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}
	page, next := pagination.Trim(rows, query.Limit, func(s Summary) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	})
	return page, next, nil
}

// CountByStatus aggregates a seller's bookings per status with the summed
// final amount.
func (r *Repository) CountByStatus(ctx context.Context, sellerID uuid.UUID) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(final_amount), 0) AS amount").
		Scopes(lifecycle.Alive("")).
		Where("seller_id = ?", sellerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate bookings")
	}
	return rows, nil
}

// ListPaymentOverdue returns awaiting-payment bookings whose deadline passed.
func (r *Repository) ListPaymentOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(ctx, limit,
		"status = ? AND payment_deadline < ?", enums.BookingStatusAwaitingPayment, now.UTC())
}

// ListConfirmationStale returns awaiting-confirmation bookings untouched
// since before cutoff.
func (r *Repository) ListConfirmationStale(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(ctx, limit,
		"status = ? AND updated_at < ?", enums.BookingStatusAwaitingConfirmation, cutoff.UTC())
}

func (r *Repository) listIDs(ctx context.Context, limit int, where string, args ...any) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Scopes(lifecycle.Alive("")).
		Where(where, args...).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan due bookings")
	}
	return ids, nil
}

func findEvent(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := db.WithContext(ctx).Scopes(lifecycle.Alive("")).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
	}
	return &event, nil
}
