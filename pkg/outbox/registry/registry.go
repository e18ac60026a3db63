// Package registry maps outbox rows to their topic and typed payload.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tixmarket-backend/pkg/config"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	"github.com/angelmondragon/tixmarket-backend/pkg/outbox"
	"github.com/angelmondragon/tixmarket-backend/pkg/outbox/payloads"
)

// ErrPermanent marks failures that will not succeed on retry. The relay parks
// such rows instead of scheduling another attempt.
var ErrPermanent = errors.New("permanent outbox failure")

// Permanent wraps err with ErrPermanent.
func Permanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err carries ErrPermanent anywhere in its chain.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// Route is where an event type is published and which aggregate owns it.
type Route struct {
	Event     enums.OutboxEventType
	Aggregate enums.OutboxAggregateType
	Topic     string
}

type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type binding struct {
	route  Route
	decode func(json.RawMessage) (any, error)
}

func bind[T any](event enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) binding {
	return binding{
		route: Route{Event: event, Aggregate: aggregate, Topic: topic},
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

type EventRegistry struct {
	bindings map[enums.OutboxEventType]binding
}

// NewEventRegistry routes every domain event to cfg.DomainTopic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := cfg.DomainTopic
	if topic == "" {
		return nil, errors.New("registry: domain topic required")
	}
	bindings := []binding{
		bind[payloads.BookingCreatedEvent](enums.EventBookingCreated, enums.AggregateBooking, topic),
		bind[payloads.BookingStatusChangedEvent](enums.EventBookingStatusChanged, enums.AggregateBooking, topic),
		bind[payloads.ReferralRewardedEvent](enums.EventReferralRewarded, enums.AggregateUser, topic),
	}
	r := &EventRegistry{bindings: make(map[enums.OutboxEventType]binding, len(bindings))}
	for _, b := range bindings {
		r.bindings[b.route.Event] = b
	}
	return r, nil
}

// Resolve checks a row against its route and decodes the payload. Every error
// it returns is permanent.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	b, ok := r.bindings[event.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("unknown event type %q", event.EventType))
	case b.route.Aggregate != event.AggregateType:
		return nil, Permanent(fmt.Errorf("%s belongs to %s, row says %s", event.EventType, b.route.Aggregate, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, Permanent(errors.New("row has no aggregate id"))
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, Permanent(fmt.Errorf("envelope: %w", err))
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, Permanent(fmt.Errorf("%s envelope has no data", event.EventType))
	}
	payload, err := b.decode(env.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("%s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Route: b.route, Envelope: env, Payload: payload}, nil
}
