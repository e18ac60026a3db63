package payloads

import (
	"time"

	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	"github.com/google/uuid"
)

// BookingCreatedEvent is emitted when a buyer reserves seats.
type BookingCreatedEvent struct {
	BookingID       uuid.UUID           `json:"booking_id"`
	BuyerID         uuid.UUID           `json:"buyer_id"`
	SellerID        uuid.UUID           `json:"seller_id"`
	EventID         uuid.UUID           `json:"event_id"`
	OfferingID      uuid.UUID           `json:"offering_id"`
	Quantity        int                 `json:"quantity"`
	FinalAmount     int64               `json:"final_amount"`
	Status          enums.BookingStatus `json:"status"`
	PaymentDeadline time.Time           `json:"payment_deadline"`
}

// BookingStatusChangedEvent is emitted for every committed transition.
type BookingStatusChangedEvent struct {
	BookingID uuid.UUID           `json:"booking_id"`
	BuyerID   uuid.UUID           `json:"buyer_id"`
	SellerID  uuid.UUID           `json:"seller_id"`
	From      enums.BookingStatus `json:"from"`
	To        enums.BookingStatus `json:"to"`
	Reason    string              `json:"reason,omitempty"`
}

// ReferralRewardedEvent is emitted when a referral credits points.
type ReferralRewardedEvent struct {
	ReferrerID uuid.UUID  `json:"referrer_id"`
	RefereeID  uuid.UUID  `json:"referee_id"`
	Points     int64      `json:"points"`
	ExpiresAt  time.Time  `json:"expires_at"`
	GrantID    *uuid.UUID `json:"grant_id,omitempty"`
}
