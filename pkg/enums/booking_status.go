package enums

import "slices"

// BookingStatus tracks a booking through payment and seller review.
type BookingStatus string

const (
	BookingStatusAwaitingPayment      BookingStatus = "awaiting_payment"
	BookingStatusAwaitingConfirmation BookingStatus = "awaiting_confirmation"
	BookingStatusDone                 BookingStatus = "done"
	BookingStatusRejected             BookingStatus = "rejected"
	BookingStatusExpired              BookingStatus = "expired"
	BookingStatusCancelled            BookingStatus = "cancelled"
)

var validBookingStatuses = newSet("booking status",
	BookingStatusAwaitingPayment,
	BookingStatusAwaitingConfirmation,
	BookingStatusDone,
	BookingStatusRejected,
	BookingStatusExpired,
	BookingStatusCancelled,
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusAwaitingPayment: {
		BookingStatusAwaitingConfirmation,
		BookingStatusExpired,
		BookingStatusCancelled,
	},
	BookingStatusAwaitingConfirmation: {
		BookingStatusDone,
		BookingStatusRejected,
		BookingStatusCancelled,
	},
}

// BookingStatuses returns every known status in lifecycle order.
func BookingStatuses() []BookingStatus {
	return validBookingStatuses.all()
}

// String implements fmt.Stringer.
func (s BookingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BookingStatus.
func (s BookingStatus) IsValid() bool {
	return validBookingStatuses.has(s)
}

// CanTransition is defined for every pair of statuses; unknown values never transition.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	return slices.Contains(bookingTransitions[s], to)
}

// IsTerminal reports whether no transition leaves s.
func (s BookingStatus) IsTerminal() bool {
	return s.IsValid() && len(bookingTransitions[s]) == 0
}

// IsReversal reports whether entering s must hand back seats, points and discounts.
func (s BookingStatus) IsReversal() bool {
	switch s {
	case BookingStatusRejected, BookingStatusExpired, BookingStatusCancelled:
		return true
	default:
		return false
	}
}

// Notifies reports whether entering s triggers the buyer notification hook.
func (s BookingStatus) Notifies() bool {
	return s == BookingStatusDone || s == BookingStatusRejected
}

// ParseBookingStatus converts raw input into a BookingStatus.
func ParseBookingStatus(value string) (BookingStatus, error) {
	return validBookingStatuses.parse(value)
}
