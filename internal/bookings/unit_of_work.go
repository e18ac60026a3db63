package bookings

import (
	"context"
	"time"

	"github.com/angelmondragon/tixmarket-backend/internal/discounts"
	"github.com/angelmondragon/tixmarket-backend/internal/inventory"
	"github.com/angelmondragon/tixmarket-backend/internal/loyalty"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/outbox"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingStore is the write side of the bookings table.
type BookingStore interface {
	Insert(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	// Transition moves the booking from one status to another. It fails with
	// InvalidTransition when the stored status is no longer from.
	Transition(ctx context.Context, id uuid.UUID, from, to enums.BookingStatus, proof *string) error
}

// Catalog reads the rows a purchase is validated against. Missing offerings
// and events come back as nil without an error.
type Catalog interface {
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindOffering(ctx context.Context, id uuid.UUID) (*models.Offering, error)
	FindEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Inventory is the seat ledger.
type Inventory interface {
	Reserve(ctx context.Context, offeringID uuid.UUID, qty int) error
	Release(ctx context.Context, offeringID uuid.UUID, qty int) error
}

// Points is the loyalty account.
type Points interface {
	Debit(ctx context.Context, userID uuid.UUID, amount int64) error
	Credit(ctx context.Context, userID uuid.UUID, amount int64) error
}

// Discounts resolves codes and tracks their consumption.
type Discounts interface {
	ResolveCoupon(ctx context.Context, code string, userID uuid.UUID) (discounts.Resolution, error)
	ResolveVoucher(ctx context.Context, code string, eventID, userID uuid.UUID) (discounts.Resolution, error)
	MarkUsed(ctx context.Context, userID, grantID uuid.UUID) error
	Revert(ctx context.Context, userID, grantID uuid.UUID) error
}

// EventSink appends domain events to the outbox of the running unit of work.
type EventSink interface {
	Emit(ctx context.Context, event outbox.DomainEvent) error
}

// UnitOfWork is the set of stores bound to one atomic transaction. Every
// write a booking operation performs goes through these handles.
type UnitOfWork struct {
	Bookings  BookingStore
	Catalog   Catalog
	Inventory Inventory
	Points    Points
	Discounts Discounts
	Events    EventSink
}

// Transactor runs fn inside one transaction. A returned error rolls back
// everything fn wrote through the unit of work.
type Transactor interface {
	Run(ctx context.Context, fn func(uow UnitOfWork) error) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GormTransactor binds the gorm-backed stores to a database transaction.
type GormTransactor struct {
	db      txRunner
	emitter outbox.Emitter
}

func NewGormTransactor(db txRunner, emitter outbox.Emitter) *GormTransactor {
	return &GormTransactor{db: db, emitter: emitter}
}

func (g *GormTransactor) Run(ctx context.Context, fn func(uow UnitOfWork) error) error {
	return g.db.WithTx(ctx, func(tx *gorm.DB) error {
		account := loyalty.NewAccount(tx)
		ledger := inventory.NewLedger(tx)
		return fn(UnitOfWork{
			Bookings:  NewRepository(tx),
			Catalog:   gormCatalog{tx: tx, account: account, ledger: ledger},
			Inventory: ledger,
			Points:    account,
			Discounts: gormDiscounts{Resolver: discounts.NewResolver(tx), UsageStore: discounts.NewUsageStore(tx)},
			Events:    txSink{emitter: g.emitter, tx: tx},
		})
	})
}

type gormCatalog struct {
	tx      *gorm.DB
	account *loyalty.Account
	ledger  *inventory.Ledger
}

func (c gormCatalog) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return c.account.FindUser(ctx, id)
}

func (c gormCatalog) FindOffering(ctx context.Context, id uuid.UUID) (*models.Offering, error) {
	offering, err := c.ledger.Get(ctx, id)
	if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return nil, nil
	}
	return offering, err
}

func (c gormCatalog) FindEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return findEvent(ctx, c.tx, id)
}

type gormDiscounts struct {
	*discounts.Resolver
	*discounts.UsageStore
}

type txSink struct {
	emitter outbox.Emitter
	tx      *gorm.DB
}

func (s txSink) Emit(ctx context.Context, event outbox.DomainEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := s.emitter.Emit(ctx, s.tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue domain event")
	}
	return nil
}
