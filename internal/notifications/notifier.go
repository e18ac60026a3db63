package notifications

import (
	"context"
	"fmt"

	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	"go.uber.org/multierr"
)

// Notifier delivers booking outcomes to the buyer. It always writes an inbox
// row and, when a broker is configured, publishes the same message.
type Notifier struct {
	repo      Repository
	publisher Publisher
}

func NewNotifier(repo Repository, publisher Publisher) *Notifier {
	return &Notifier{repo: repo, publisher: publisher}
}

// NotifyOutcome records the outcome of b. Statuses without a buyer-facing
// notification are ignored. Inbox and broker failures are combined so the
// caller sees both.
func (n *Notifier) NotifyOutcome(ctx context.Context, b models.Booking) error {
	kind, ok := enums.NotificationTypeForOutcome(b.Status)
	if !ok {
		return nil
	}
	title, body := render(kind, b)
	bookingID := b.ID
	row := &models.Notification{
		UserID:    b.BuyerID,
		BookingID: &bookingID,
		Type:      kind,
		Title:     title,
		Message:   body,
	}

	var errs error
	if err := n.repo.Create(ctx, row); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("store notification: %w", err))
	}
	if n.publisher != nil {
		msg := Message{
			NotificationID: row.ID,
			UserID:         row.UserID,
			BookingID:      b.ID,
			Type:           string(kind),
			Title:          title,
			Message:        body,
			CreatedAt:      row.CreatedAt,
		}
		errs = multierr.Append(errs, n.publisher.Publish(ctx, msg))
	}
	return errs
}

func render(kind enums.NotificationType, b models.Booking) (string, string) {
	switch kind {
	case enums.NotificationTypeBookingConfirmed:
		return "Booking confirmed", fmt.Sprintf("Your booking %s for %d ticket(s) is confirmed.", b.ID, b.Quantity)
	default:
		return "Booking rejected", fmt.Sprintf("Your booking %s was rejected. Seats, points and discounts were returned.", b.ID)
	}
}
