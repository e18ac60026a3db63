package enums

// NotificationType classifies buyer inbox notifications.
type NotificationType string

const (
	NotificationTypeBookingConfirmed NotificationType = "booking_confirmed"
	NotificationTypeBookingRejected  NotificationType = "booking_rejected"
)

var validNotificationTypes = newSet("notification type",
	NotificationTypeBookingConfirmed,
	NotificationTypeBookingRejected,
)

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	return validNotificationTypes.has(n)
}

// NotificationTypeForOutcome maps a notifying booking status to its inbox type.
func NotificationTypeForOutcome(status BookingStatus) (NotificationType, bool) {
	switch status {
	case BookingStatusDone:
		return NotificationTypeBookingConfirmed, true
	case BookingStatusRejected:
		return NotificationTypeBookingRejected, true
	default:
		return "", false
	}
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return validNotificationTypes.parse(value)
}
