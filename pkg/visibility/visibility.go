// Package visibility holds the shared gates that decide whether an event and
// one of its offerings can be sold right now.
package visibility

import (
	"time"

	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/google/uuid"
)

// BookableInput carries the rows loaded for a purchase attempt. Nil rows
// mean the lookup found nothing.
type BookableInput struct {
	Event          *models.Event
	Offering       *models.Offering
	ClaimedEventID uuid.UUID
	Now            time.Time
}

// EnsureBookable runs the offering gate then the event gate.
func EnsureBookable(input BookableInput) error {
	if err := EnsureOfferingListed(input.Offering, input.ClaimedEventID); err != nil {
		return err
	}
	return EnsureEventOpen(input.Event, input.Now)
}

// EnsureOfferingListed requires a live offering attached to eventID. An
// offering of another event is reported as missing so ids never leak
// across events.
func EnsureOfferingListed(offering *models.Offering, eventID uuid.UUID) error {
	if offering == nil || !offering.Lifecycle().IsActive() {
		return pkgerrors.New(pkgerrors.CodeNotFound, "offering not found")
	}
	if offering.EventID != eventID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "offering not found for event").
			WithDetails(map[string]any{"offering_id": offering.ID, "event_id": eventID})
	}
	return nil
}

// EnsureEventOpen requires a live, published event that has not ended.
func EnsureEventOpen(event *models.Event, now time.Time) error {
	if event == nil || !event.Lifecycle().IsActive() {
		return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	if event.Status != enums.EventStatusPublished {
		return pkgerrors.New(pkgerrors.CodeInvalidState, "event is not published").
			WithDetails(map[string]any{"event_id": event.ID, "status": event.Status})
	}
	if !event.EndsAt.After(now) {
		return pkgerrors.New(pkgerrors.CodeInvalidState, "event has ended").
			WithDetails(map[string]any{"event_id": event.ID, "ends_at": event.EndsAt})
	}
	return nil
}
