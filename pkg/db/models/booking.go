package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	"github.com/angelmondragon/tixmarket-backend/pkg/lifecycle"
)

// Booking is a purchase of one offering. The row carries everything the
// reversal path needs: quantity, points applied and the consumed grants.
type Booking struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID         uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID        uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	EventID         uuid.UUID           `gorm:"column:event_id;type:uuid;not null"`
	OfferingID      uuid.UUID           `gorm:"column:offering_id;type:uuid;not null"`
	Quantity        int                 `gorm:"column:quantity;not null"`
	UnitPrice       int64               `gorm:"column:unit_price;not null"`
	TotalAmount     int64               `gorm:"column:total_amount;not null"`
	PointsApplied   int64               `gorm:"column:points_applied;not null;default:0"`
	CouponID        *uuid.UUID          `gorm:"column:coupon_id;type:uuid"`
	CouponDiscount  int64               `gorm:"column:coupon_discount;not null;default:0"`
	VoucherID       *uuid.UUID          `gorm:"column:voucher_id;type:uuid"`
	VoucherDiscount int64               `gorm:"column:voucher_discount;not null;default:0"`
	FinalAmount     int64               `gorm:"column:final_amount;not null"`
	Status          enums.BookingStatus `gorm:"column:status;type:text;not null"`
	PaymentDeadline time.Time           `gorm:"column:payment_deadline;not null"`
	PaymentProof    *string             `gorm:"column:payment_proof;type:text"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt       *time.Time          `gorm:"column:deleted_at"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Lifecycle exposes the soft-delete state.
func (b Booking) Lifecycle() lifecycle.State {
	return lifecycle.FromColumn(b.DeletedAt)
}
