package bookings

import (
	"time"

	"github.com/google/uuid"

	internalbookings "github.com/angelmondragon/tixmarket-backend/internal/bookings"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	"github.com/angelmondragon/tixmarket-backend/pkg/types"
)

type createRequest struct {
	EventID     string `json:"event_id" validate:"required,uuid"`
	OfferingID  string `json:"offering_id" validate:"required,uuid"`
	Quantity    int    `json:"quantity" validate:"min=1,max=100"`
	Points      int64  `json:"points" validate:"gte=0"`
	CouponCode  string `json:"coupon_code" validate:"omitempty,max=64"`
	VoucherCode string `json:"voucher_code" validate:"omitempty,max=64"`
}

type proofRequest struct {
	ProofRef string `json:"proof_ref" validate:"required,max=512"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// BookingResponse is the public booking shape. Amounts carry both minor
// units and a formatted major-unit string.
type BookingResponse struct {
	ID              uuid.UUID           `json:"id"`
	BuyerID         uuid.UUID           `json:"buyer_id"`
	SellerID        uuid.UUID           `json:"seller_id"`
	EventID         uuid.UUID           `json:"event_id"`
	OfferingID      uuid.UUID           `json:"offering_id"`
	Quantity        int                 `json:"quantity"`
	UnitPrice       types.Money         `json:"unit_price"`
	TotalAmount     types.Money         `json:"total_amount"`
	CouponDiscount  types.Money         `json:"coupon_discount"`
	VoucherDiscount types.Money         `json:"voucher_discount"`
	PointsApplied   int64               `json:"points_applied"`
	FinalAmount     types.Money         `json:"final_amount"`
	Status          enums.BookingStatus `json:"status"`
	PaymentDeadline time.Time           `json:"payment_deadline"`
	PaymentProof    *string             `json:"payment_proof,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`

	OfferingName string  `json:"offering_name,omitempty"`
	EventName    string  `json:"event_name,omitempty"`
	CouponCode   *string `json:"coupon_code,omitempty"`
	VoucherCode  *string `json:"voucher_code,omitempty"`
}

func toResponse(b models.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		BuyerID:         b.BuyerID,
		SellerID:        b.SellerID,
		EventID:         b.EventID,
		OfferingID:      b.OfferingID,
		Quantity:        b.Quantity,
		UnitPrice:       types.Money(b.UnitPrice),
		TotalAmount:     types.Money(b.TotalAmount),
		CouponDiscount:  types.Money(b.CouponDiscount),
		VoucherDiscount: types.Money(b.VoucherDiscount),
		PointsApplied:   b.PointsApplied,
		FinalAmount:     types.Money(b.FinalAmount),
		Status:          b.Status,
		PaymentDeadline: b.PaymentDeadline,
		PaymentProof:    b.PaymentProof,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func summaryResponse(s internalbookings.Summary) BookingResponse {
	resp := toResponse(s.Booking)
	resp.OfferingName = s.OfferingName
	resp.EventName = s.EventName
	resp.CouponCode = s.CouponCode
	resp.VoucherCode = s.VoucherCode
	return resp
}

type statsResponse struct {
	SellerID uuid.UUID        `json:"seller_id"`
	Total    int64            `json:"total"`
	Revenue  types.Money      `json:"revenue"`
	ByStatus map[string]int64 `json:"by_status"`
}

func toStatsResponse(s internalbookings.SellerStats) statsResponse {
	byStatus := make(map[string]int64, len(s.ByStatus))
	for status, n := range s.ByStatus {
		byStatus[string(status)] = n
	}
	return statsResponse{
		SellerID: s.SellerID,
		Total:    s.Total,
		Revenue:  types.Money(s.Revenue),
		ByStatus: byStatus,
	}
}
