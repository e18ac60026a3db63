package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tixmarket-backend/pkg/config"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
	"github.com/angelmondragon/tixmarket-backend/pkg/metrics"
	"github.com/angelmondragon/tixmarket-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
	publishTimeout      = 15 * time.Second
	maxIdleBackoff      = 10 * time.Second
	maxJitter           = 250 * time.Millisecond
	parkedNonRetryable  = "non_retryable"
	parkedAttemptsSpent = "max_attempts"
	attrSchemaVersion   = "schema_version"
	attrAggregateID     = "aggregate_id"
	attrEventType       = "event_type"
	attrEventID         = "event_id"
	attrAggregateType   = "aggregate_type"
	attrOccurredAt      = "occurred_at"
)

type txDB interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type broker interface {
	Ping(context.Context) error
	Publisher(topic string) *gcppubsub.Publisher
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// topicSender publishes one message and blocks for the broker ack. Resume
// unblocks an ordering key after a failed publish.
type topicSender interface {
	Send(ctx context.Context, msg *gcppubsub.Message) error
	Resume(orderingKey string)
}

type senderFactory func(topic string) topicSender

// RelayParams wires the outbox relay.
type RelayParams struct {
	Config   config.OutboxConfig
	Logger   *logger.Logger
	DB       txDB
	Broker   broker
	Store    outboxStore
	Resolver eventResolver
	Metrics  *metrics.OutboxMetrics
	Senders  senderFactory
}

// Relay moves committed outbox rows to Pub/Sub. Each booking's events carry
// the booking id as ordering key, so consumers see status changes in order.
type Relay struct {
	logg        *logger.Logger
	db          txDB
	broker      broker
	store       outboxStore
	resolver    eventResolver
	metrics     *metrics.OutboxMetrics
	senders     senderFactory
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeParked
)

type settlement struct {
	outcome outcome
	reason  string
	err     error
	topic   string
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Broker == nil:
		return nil, errors.New("pubsub client is required")
	case params.Store == nil:
		return nil, errors.New("outbox repository is required")
	case params.Resolver == nil:
		return nil, errors.New("event registry is required")
	}

	senders := params.Senders
	if senders == nil {
		senders = func(topic string) topicSender {
			pub := params.Broker.Publisher(topic)
			if pub == nil {
				return nil
			}
			return gcpSender{pub: pub}
		}
	}

	r := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		broker:      params.Broker,
		store:       params.Store,
		resolver:    params.Resolver,
		metrics:     params.Metrics,
		senders:     senders,
		batchSize:   params.Config.BatchSize,
		maxAttempts: params.Config.MaxAttempts,
		poll:        time.Duration(params.Config.PollIntervalMS) * time.Millisecond,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = defaultPollInterval
	}
	return r, nil
}

// Run drains the outbox until ctx is cancelled. A drained outbox sleeps for
// the poll interval; a failing batch backs off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.broker.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := r.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		claimed, err := r.drainOnce(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case claimed > 0:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}

		if err := sleep(ctx, wait+jitter()); err != nil {
			return err
		}
	}
}

// drainOnce claims one batch inside a transaction and settles every row.
// Row locks are held until the batch commits, so parallel relays skip them.
func (r *Relay) drainOnce(ctx context.Context) (int, error) {
	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(events)
		r.metrics.ObserveBatch(claimed)

		for _, event := range events {
			if err := r.record(ctx, tx, event, r.settle(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (r *Relay) settle(ctx context.Context, event models.OutboxEvent) settlement {
	resolved, err := r.resolver.Resolve(event)
	if err != nil {
		return settlement{outcome: outcomeParked, reason: parkedNonRetryable, err: err}
	}
	topic := resolved.Route.Topic

	sender := r.senders(topic)
	if sender == nil {
		return settlement{outcome: outcomeParked, reason: parkedNonRetryable, topic: topic,
			err: fmt.Errorf("no publisher for topic %s", topic)}
	}

	msg := buildMessage(event, resolved)
	sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := sender.Send(sendCtx, msg); err != nil {
		sender.Resume(msg.OrderingKey)
		if registry.IsPermanent(err) {
			return settlement{outcome: outcomeParked, reason: parkedNonRetryable, err: err, topic: topic}
		}
		if event.AttemptCount+1 >= r.maxAttempts {
			return settlement{outcome: outcomeParked, reason: parkedAttemptsSpent, topic: topic,
				err: fmt.Errorf("max publish attempts reached: %w", err)}
		}
		return settlement{outcome: outcomeRetry, err: err, topic: topic}
	}
	return settlement{outcome: outcomePublished, topic: topic}
}

func (r *Relay) record(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, s settlement) error {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
		"topic":         s.topic,
	})
	eventType := string(event.EventType)

	switch s.outcome {
	case outcomePublished:
		if err := r.store.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		r.metrics.IncPublished(eventType)
		r.logg.Info(ctx, "outbox event published")
	case outcomeRetry:
		if err := r.store.MarkFailedTx(tx, event.ID, s.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		r.metrics.IncRetried(eventType)
		r.logg.Warn(r.logg.WithField(ctx, "error", s.err.Error()), "outbox publish failed, will retry")
	case outcomeParked:
		if err := r.store.MarkTerminalTx(tx, event.ID, s.err, r.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
		r.metrics.IncParked(s.reason)
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"error":           s.err.Error(),
			"terminal_reason": s.reason,
		}), "outbox event parked")
	}
	return nil
}

func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			attrEventID:       resolved.Envelope.EventID,
			attrEventType:     string(event.EventType),
			attrAggregateType: string(event.AggregateType),
			attrAggregateID:   event.AggregateID.String(),
			attrSchemaVersion: strconv.Itoa(resolved.Envelope.Version),
			attrOccurredAt:    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jitter() time.Duration {
	return rand.N(maxJitter)
}

type gcpSender struct {
	pub *gcppubsub.Publisher
}

func (s gcpSender) Send(ctx context.Context, msg *gcppubsub.Message) error {
	_, err := s.pub.Publish(ctx, msg).Get(ctx)
	return err
}

func (s gcpSender) Resume(orderingKey string) {
	if orderingKey != "" {
		s.pub.ResumePublish(orderingKey)
	}
}
