// Package bookings runs the purchase lifecycle: creation against live
// inventory, payment proof, seller review and the compensating reversal of
// failed bookings.
package bookings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/tixmarket-backend/internal/discounts"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
	"github.com/angelmondragon/tixmarket-backend/pkg/metrics"
	"github.com/angelmondragon/tixmarket-backend/pkg/outbox"
	"github.com/angelmondragon/tixmarket-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tixmarket-backend/pkg/pagination"
	"github.com/angelmondragon/tixmarket-backend/pkg/visibility"
	"github.com/google/uuid"
)

const (
	// DefaultPaymentWindow is how long a buyer has to submit payment proof.
	DefaultPaymentWindow = 2 * time.Hour
	maxProofLength       = 512
)

// Service is the booking state machine.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Booking, error)
	SubmitProof(ctx context.Context, bookingID, buyerID uuid.UUID, proofRef string) (*models.Booking, error)
	UpdateStatus(ctx context.Context, bookingID uuid.UUID, target enums.BookingStatus, actor Actor) (*models.Booking, error)
	Get(ctx context.Context, bookingID uuid.UUID, viewer Viewer) (*Summary, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Stats(ctx context.Context, sellerID uuid.UUID) (*SellerStats, error)
}

// Reader is the read model behind Get, List and Stats.
type Reader interface {
	GetSummary(ctx context.Context, id uuid.UUID) (*Summary, error)
	List(ctx context.Context, query ListQuery) ([]Summary, *pagination.Cursor, error)
	CountByStatus(ctx context.Context, sellerID uuid.UUID) ([]StatusCount, error)
}

// Notifier receives done and rejected bookings after commit.
type Notifier interface {
	NotifyOutcome(ctx context.Context, booking models.Booking) error
}

// CreateInput is a buyer's purchase request.
type CreateInput struct {
	BuyerID     uuid.UUID
	EventID     uuid.UUID
	OfferingID  uuid.UUID
	Quantity    int
	Points      int64
	CouponCode  string
	VoucherCode string
}

// Actor identifies who drives a status change. Sweeps set IsAutoProcess.
type Actor struct {
	UserID        uuid.UUID
	IsAutoProcess bool
}

// Viewer identifies who reads a booking.
type Viewer struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// ListParams is the controller-facing list query.
type ListParams struct {
	Viewer Viewer
	Status string
	Limit  int
	Cursor string
}

// ListResult is one page of bookings.
type ListResult struct {
	Items  []Summary
	Cursor string
}

// SellerStats summarises a seller's bookings.
type SellerStats struct {
	SellerID uuid.UUID
	ByStatus map[enums.BookingStatus]int64
	Total    int64
	Revenue  int64
}

// ServiceParams wires a Service.
type ServiceParams struct {
	Transactor    Transactor
	Reader        Reader
	Notifier      Notifier
	Metrics       *metrics.BookingMetrics
	Logger        *logger.Logger
	PaymentWindow time.Duration
	Now           func() time.Time
}

type service struct {
	tx            Transactor
	reader        Reader
	notifier      Notifier
	metrics       *metrics.BookingMetrics
	logg          *logger.Logger
	paymentWindow time.Duration
	now           func() time.Time
}

// NewService validates params and builds the state machine.
func NewService(params ServiceParams) (Service, error) {
	if params.Transactor == nil {
		return nil, fmt.Errorf("transactor required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("booking reader required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.PaymentWindow <= 0 {
		params.PaymentWindow = DefaultPaymentWindow
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:            params.Transactor,
		reader:        params.Reader,
		notifier:      params.Notifier,
		metrics:       params.Metrics,
		logg:          params.Logger,
		paymentWindow: params.PaymentWindow,
		now:           params.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Booking, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity required")
	}
	if input.EventID == uuid.Nil || input.OfferingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id and offering id required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.Points < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points cannot be negative")
	}

	now := s.now()
	var created models.Booking
	err := s.tx.Run(ctx, func(uow UnitOfWork) error {
		buyer, err := uow.Catalog.FindUser(ctx, input.BuyerID)
		if err != nil {
			return err
		}
		offering, err := uow.Catalog.FindOffering(ctx, input.OfferingID)
		if err != nil {
			return err
		}
		event, err := uow.Catalog.FindEvent(ctx, input.EventID)
		if err != nil {
			return err
		}
		if err := visibility.EnsureBookable(visibility.BookableInput{
			Event:          event,
			Offering:       offering,
			ClaimedEventID: input.EventID,
			Now:            now,
		}); err != nil {
			return err
		}
		if input.Quantity > offering.Available {
			return pkgerrors.New(pkgerrors.CodeInsufficientCapacity, "not enough seats available").
				WithDetails(map[string]any{"requested": input.Quantity, "available": offering.Available})
		}
		if input.Points > buyer.PointsBalance {
			return pkgerrors.New(pkgerrors.CodeInsufficientPoints, "not enough loyalty points").
				WithDetails(map[string]any{"requested": input.Points, "balance": buyer.PointsBalance})
		}

		var coupon, voucher *discounts.Resolution
		if code := discounts.NormalizeCode(input.CouponCode); code != "" {
			res, err := uow.Discounts.ResolveCoupon(ctx, code, buyer.ID)
			if err != nil {
				return err
			}
			coupon = &res
		}
		if code := discounts.NormalizeCode(input.VoucherCode); code != "" {
			res, err := uow.Discounts.ResolveVoucher(ctx, code, event.ID, buyer.ID)
			if err != nil {
				return err
			}
			voucher = &res
		}

		priced, err := computeAmounts(offering.UnitPrice, input.Quantity, valueOf(coupon), valueOf(voucher), input.Points)
		if err != nil {
			return err
		}

		if err := uow.Inventory.Reserve(ctx, offering.ID, input.Quantity); err != nil {
			return err
		}
		if err := uow.Points.Debit(ctx, buyer.ID, input.Points); err != nil {
			return err
		}
		for _, res := range []*discounts.Resolution{coupon, voucher} {
			if res == nil {
				continue
			}
			if err := uow.Discounts.MarkUsed(ctx, buyer.ID, res.GrantID); err != nil {
				return err
			}
		}

		created = models.Booking{
			BuyerID:         buyer.ID,
			SellerID:        event.SellerID,
			EventID:         event.ID,
			OfferingID:      offering.ID,
			Quantity:        input.Quantity,
			UnitPrice:       offering.UnitPrice,
			TotalAmount:     priced.Total,
			PointsApplied:   priced.Points,
			CouponID:        grantID(coupon),
			CouponDiscount:  priced.CouponDiscount,
			VoucherID:       grantID(voucher),
			VoucherDiscount: priced.VoucherDiscount,
			FinalAmount:     priced.Final,
			Status:          enums.BookingStatusAwaitingPayment,
			PaymentDeadline: now.Add(s.paymentWindow),
		}
		if err := uow.Bookings.Insert(ctx, &created); err != nil {
			return err
		}

		return uow.Events.Emit(ctx, outbox.DomainEvent{
			EventType:     enums.EventBookingCreated,
			AggregateType: enums.AggregateBooking,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: buyer.ID, Role: string(enums.UserRoleBuyer)},
			OccurredAt:    now,
			Data: payloads.BookingCreatedEvent{
				BookingID:       created.ID,
				BuyerID:         created.BuyerID,
				SellerID:        created.SellerID,
				EventID:         created.EventID,
				OfferingID:      created.OfferingID,
				Quantity:        created.Quantity,
				FinalAmount:     created.FinalAmount,
				Status:          created.Status,
				PaymentDeadline: created.PaymentDeadline,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCreated(created.UnitPrice == 0)
	logCtx := s.logg.WithBookingID(ctx, created.ID.String())
	s.logg.Info(logCtx, "booking created")
	return &created, nil
}

func (s *service) SubmitProof(ctx context.Context, bookingID, buyerID uuid.UUID, proofRef string) (*models.Booking, error) {
	proofRef = strings.TrimSpace(proofRef)
	if proofRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proof reference required")
	}
	if len(proofRef) > maxProofLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proof reference too long")
	}
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity required")
	}

	now := s.now()
	var updated models.Booking
	err := s.tx.Run(ctx, func(uow UnitOfWork) error {
		booking, err := uow.Bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.BuyerID != buyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another buyer")
		}
		from := booking.Status
		if from != enums.BookingStatusAwaitingPayment {
			return invalidTransition(from, enums.BookingStatusAwaitingConfirmation)
		}
		if now.After(booking.PaymentDeadline) {
			return pkgerrors.New(pkgerrors.CodeExpired, "payment deadline has passed").
				WithDetails(map[string]any{"payment_deadline": booking.PaymentDeadline})
		}

		to := enums.BookingStatusAwaitingConfirmation
		if err := uow.Bookings.Transition(ctx, booking.ID, from, to, &proofRef); err != nil {
			return err
		}
		booking.Status = to
		booking.PaymentProof = &proofRef
		booking.UpdatedAt = now
		updated = *booking
		return uow.Events.Emit(ctx, statusChanged(*booking, from, buyerActor(buyerID), "payment proof submitted", now))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(enums.BookingStatusAwaitingPayment), string(updated.Status))
	return &updated, nil
}

func (s *service) UpdateStatus(ctx context.Context, bookingID uuid.UUID, target enums.BookingStatus, actor Actor) (*models.Booking, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown booking status").
			WithDetails(map[string]any{"status": target})
	}
	if !actor.IsAutoProcess && actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity required")
	}

	now := s.now()
	var (
		updated models.Booking
		from    enums.BookingStatus
	)
	err := s.tx.Run(ctx, func(uow UnitOfWork) error {
		booking, err := uow.Bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !actor.IsAutoProcess && booking.SellerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the event seller can change this booking")
		}
		from = booking.Status
		if !from.CanTransition(target) {
			return invalidTransition(from, target)
		}
		if err := uow.Bookings.Transition(ctx, booking.ID, from, target, nil); err != nil {
			return err
		}
		if target.IsReversal() {
			if err := reverse(ctx, uow, *booking); err != nil {
				return err
			}
		}
		booking.Status = target
		booking.UpdatedAt = now
		updated = *booking

		ref := &outbox.ActorRef{UserID: actor.UserID, Role: string(enums.UserRoleSeller)}
		if actor.IsAutoProcess {
			ref = &outbox.ActorRef{Role: "system"}
		}
		return uow.Events.Emit(ctx, statusChanged(*booking, from, ref, "", now))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(from), string(target))
	logCtx := s.logg.WithFields(s.logg.WithBookingID(ctx, updated.ID.String()), map[string]any{
		"from": from,
		"to":   target,
		"auto": actor.IsAutoProcess,
	})
	s.logg.Info(logCtx, "booking status updated")

	if target.Notifies() {
		s.notify(logCtx, updated)
	}
	return &updated, nil
}

// reverse hands back every side effect Create applied. It runs in the same
// unit of work as the status write, and that write only succeeds once per
// booking, so reversal happens exactly once.
func reverse(ctx context.Context, uow UnitOfWork, booking models.Booking) error {
	if err := uow.Inventory.Release(ctx, booking.OfferingID, booking.Quantity); err != nil {
		return err
	}
	if err := uow.Points.Credit(ctx, booking.BuyerID, booking.PointsApplied); err != nil {
		return err
	}
	for _, grant := range []*uuid.UUID{booking.CouponID, booking.VoucherID} {
		if grant == nil {
			continue
		}
		if err := uow.Discounts.Revert(ctx, booking.BuyerID, *grant); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) notify(ctx context.Context, booking models.Booking) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyOutcome(ctx, booking); err != nil {
		s.metrics.IncNotificationFailure(string(booking.Status))
		s.logg.Error(ctx, "booking notification failed", err)
	}
}

func (s *service) Get(ctx context.Context, bookingID uuid.UUID, viewer Viewer) (*Summary, error) {
	if viewer.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "viewer identity required")
	}
	summary, err := s.reader.GetSummary(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if summary.BuyerID != viewer.UserID && summary.SellerID != viewer.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another user")
	}
	return summary, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	viewer := params.Viewer
	if viewer.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "viewer identity required")
	}
	query := ListQuery{Limit: params.Limit}
	switch viewer.Role {
	case enums.UserRoleBuyer:
		query.BuyerID = &viewer.UserID
	case enums.UserRoleSeller:
		query.SellerID = &viewer.UserID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers and sellers list bookings")
	}
	if raw := strings.TrimSpace(params.Status); raw != "" {
		status, err := enums.ParseBookingStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = &status
	}
	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Cursor = cursor

	rows, next, err := s.reader.List(ctx, query)
	if err != nil {
		return nil, err
	}
	result := &ListResult{Items: rows}
	if result.Items == nil {
		result.Items = []Summary{}
	}
	if next != nil {
		result.Cursor = next.Encode()
	}
	return result, nil
}

func (s *service) Stats(ctx context.Context, sellerID uuid.UUID) (*SellerStats, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "seller identity required")
	}
	rows, err := s.reader.CountByStatus(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	stats := &SellerStats{SellerID: sellerID, ByStatus: map[enums.BookingStatus]int64{}}
	for _, status := range enums.BookingStatuses() {
		stats.ByStatus[status] = 0
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] += row.Count
		stats.Total += row.Count
		if row.Status == enums.BookingStatusDone {
			stats.Revenue += row.Amount
		}
	}
	return stats, nil
}

func statusChanged(b models.Booking, from enums.BookingStatus, actor *outbox.ActorRef, reason string, at time.Time) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventBookingStatusChanged,
		AggregateType: enums.AggregateBooking,
		AggregateID:   b.ID,
		Actor:         actor,
		OccurredAt:    at,
		Data: payloads.BookingStatusChangedEvent{
			BookingID: b.ID,
			BuyerID:   b.BuyerID,
			SellerID:  b.SellerID,
			From:      from,
			To:        b.Status,
			Reason:    reason,
		},
	}
}

func buyerActor(id uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: id, Role: string(enums.UserRoleBuyer)}
}

func invalidTransition(from, to enums.BookingStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move booking from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}

func valueOf(res *discounts.Resolution) int64 {
	if res == nil {
		return 0
	}
	return res.Value
}

func grantID(res *discounts.Resolution) *uuid.UUID {
	if res == nil {
		return nil
	}
	id := res.GrantID
	return &id
}
