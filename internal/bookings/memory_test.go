package bookings

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/angelmondragon/tixmarket-backend/internal/discounts"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/outbox"
	"github.com/angelmondragon/tixmarket-backend/pkg/pagination"
	"github.com/google/uuid"
)

type usageKey struct {
	user  uuid.UUID
	grant uuid.UUID
}

type memState struct {
	users     map[uuid.UUID]models.User
	events    map[uuid.UUID]models.Event
	offerings map[uuid.UUID]models.Offering
	grants    map[uuid.UUID]models.DiscountGrant
	usages    map[usageKey]enums.UsageStatus
	bookings  map[uuid.UUID]models.Booking
	outbox    []outbox.DomainEvent
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s memState) clone() memState {
	return memState{
		users:     cloneMap(s.users),
		events:    cloneMap(s.events),
		offerings: cloneMap(s.offerings),
		grants:    cloneMap(s.grants),
		usages:    cloneMap(s.usages),
		bookings:  cloneMap(s.bookings),
		outbox:    append([]outbox.DomainEvent(nil), s.outbox...),
	}
}

// memStore is an in-memory Transactor and Reader. Run holds one lock for the
// whole unit of work and restores a snapshot when fn fails, which gives the
// same isolation and rollback the database provides.
type memStore struct {
	mu       sync.Mutex
	state    memState
	now      func() time.Time
	failEmit error
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		now: now,
		state: memState{
			users:     map[uuid.UUID]models.User{},
			events:    map[uuid.UUID]models.Event{},
			offerings: map[uuid.UUID]models.Offering{},
			grants:    map[uuid.UUID]models.DiscountGrant{},
			usages:    map[usageKey]enums.UsageStatus{},
			bookings:  map[uuid.UUID]models.Booking{},
		},
	}
}

func (m *memStore) Run(_ context.Context, fn func(uow UnitOfWork) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	tx := &memTx{store: m}
	err := fn(UnitOfWork{
		Bookings:  tx,
		Catalog:   tx,
		Inventory: tx,
		Points:    tx,
		Discounts: tx,
		Events:    tx,
	})
	if err != nil {
		m.state = snapshot
	}
	return err
}

// snapshot returns a copy of the state for assertions.
func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) seed(fn func(s *memState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
}

type memTx struct {
	store *memStore
}

func (t *memTx) st() *memState { return &t.store.state }

func (t *memTx) Insert(_ context.Context, b *models.Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := t.store.now()
	b.CreatedAt, b.UpdatedAt = now, now
	t.st().bookings[b.ID] = *b
	return nil
}

func (t *memTx) FindByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	b, ok := t.st().bookings[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	return &b, nil
}

func (t *memTx) Transition(_ context.Context, id uuid.UUID, from, to enums.BookingStatus, proof *string) error {
	b, ok := t.st().bookings[id]
	if !ok || b.Status != from {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "booking status changed concurrently")
	}
	b.Status = to
	b.UpdatedAt = t.store.now()
	if proof != nil {
		p := *proof
		b.PaymentProof = &p
	}
	t.st().bookings[id] = b
	return nil
}

func (t *memTx) FindUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := t.st().users[id]
	if !ok || !u.Lifecycle().IsActive() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return &u, nil
}

func (t *memTx) FindOffering(_ context.Context, id uuid.UUID) (*models.Offering, error) {
	o, ok := t.st().offerings[id]
	if !ok || !o.Lifecycle().IsActive() {
		return nil, nil
	}
	return &o, nil
}

func (t *memTx) FindEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := t.st().events[id]
	if !ok || !e.Lifecycle().IsActive() {
		return nil, nil
	}
	return &e, nil
}

func (t *memTx) Reserve(_ context.Context, offeringID uuid.UUID, qty int) error {
	o, ok := t.st().offerings[offeringID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "offering not found")
	}
	if o.Available < qty {
		return pkgerrors.New(pkgerrors.CodeInsufficientCapacity, "not enough seats available")
	}
	o.Available -= qty
	t.st().offerings[offeringID] = o
	return nil
}

func (t *memTx) Release(_ context.Context, offeringID uuid.UUID, qty int) error {
	o, ok := t.st().offerings[offeringID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "offering not found")
	}
	if o.Available+qty > o.TotalCapacity {
		return pkgerrors.New(pkgerrors.CodeInvalidState, "release exceeds offering capacity")
	}
	o.Available += qty
	t.st().offerings[offeringID] = o
	return nil
}

func (t *memTx) Debit(_ context.Context, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	u, ok := t.st().users[userID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if u.PointsBalance < amount {
		return pkgerrors.New(pkgerrors.CodeInsufficientPoints, "not enough loyalty points")
	}
	u.PointsBalance -= amount
	t.st().users[userID] = u
	return nil
}

func (t *memTx) Credit(_ context.Context, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	u, ok := t.st().users[userID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	u.PointsBalance += amount
	t.st().users[userID] = u
	return nil
}

func (t *memTx) resolve(kind enums.DiscountKind, code string, eventID *uuid.UUID, userID uuid.UUID) (discounts.Resolution, error) {
	for _, g := range t.st().grants {
		if g.Kind != kind || g.Code != code || !g.Lifecycle().IsActive() {
			continue
		}
		if eventID != nil && (g.EventID == nil || *g.EventID != *eventID) {
			continue
		}
		if !g.ActiveAt(t.store.now()) {
			return discounts.Resolution{}, pkgerrors.New(pkgerrors.CodeInvalidState, "discount code is not active")
		}
		if g.UsedCount >= g.UsageLimit {
			return discounts.Resolution{}, pkgerrors.New(pkgerrors.CodeLimitExceeded, "discount code usage limit reached")
		}
		if t.st().usages[usageKey{userID, g.ID}] == enums.UsageStatusUsed {
			return discounts.Resolution{}, pkgerrors.New(pkgerrors.CodeAlreadyUsed, "discount code already used")
		}
		return discounts.Resolution{GrantID: g.ID, Kind: g.Kind, Code: g.Code, Value: g.Value}, nil
	}
	return discounts.Resolution{}, pkgerrors.New(pkgerrors.CodeNotFound, "discount code not found")
}

func (t *memTx) ResolveCoupon(_ context.Context, code string, userID uuid.UUID) (discounts.Resolution, error) {
	return t.resolve(enums.DiscountKindCoupon, code, nil, userID)
}

func (t *memTx) ResolveVoucher(_ context.Context, code string, eventID, userID uuid.UUID) (discounts.Resolution, error) {
	return t.resolve(enums.DiscountKindVoucher, code, &eventID, userID)
}

func (t *memTx) MarkUsed(_ context.Context, userID, grantID uuid.UUID) error {
	g := t.st().grants[grantID]
	if g.UsedCount >= g.UsageLimit {
		return pkgerrors.New(pkgerrors.CodeLimitExceeded, "discount code usage limit reached")
	}
	key := usageKey{userID, grantID}
	if t.st().usages[key] == enums.UsageStatusUsed {
		return pkgerrors.New(pkgerrors.CodeAlreadyUsed, "discount code already used")
	}
	g.UsedCount++
	t.st().grants[grantID] = g
	t.st().usages[key] = enums.UsageStatusUsed
	return nil
}

func (t *memTx) Revert(_ context.Context, userID, grantID uuid.UUID) error {
	key := usageKey{userID, grantID}
	if t.st().usages[key] == enums.UsageStatusUsed {
		t.st().usages[key] = enums.UsageStatusActive
	}
	if g := t.st().grants[grantID]; g.UsedCount > 0 {
		g.UsedCount--
		t.st().grants[grantID] = g
	}
	return nil
}

func (t *memTx) Emit(_ context.Context, event outbox.DomainEvent) error {
	if t.store.failEmit != nil {
		return t.store.failEmit
	}
	t.st().outbox = append(t.st().outbox, event)
	return nil
}

func (m *memStore) summary(b models.Booking) Summary {
	return Summary{
		Booking:      b,
		OfferingName: m.state.offerings[b.OfferingID].Name,
		EventName:    m.state.events[b.EventID].Name,
	}
}

func (m *memStore) GetSummary(_ context.Context, id uuid.UUID) (*Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.state.bookings[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	s := m.summary(b)
	return &s, nil
}

func (m *memStore) List(_ context.Context, q ListQuery) ([]Summary, *pagination.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []Summary
	for _, b := range m.state.bookings {
		if q.BuyerID != nil && b.BuyerID != *q.BuyerID {
			continue
		}
		if q.SellerID != nil && b.SellerID != *q.SellerID {
			continue
		}
		if q.Status != nil && b.Status != *q.Status {
			continue
		}
		if c := q.Cursor; c != nil && !b.CreatedAt.Before(c.CreatedAt) {
			continue
		}
		rows = append(rows, m.summary(b))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	page, next := pagination.Trim(rows, q.Limit, func(s Summary) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	})
	return page, next, nil
}

func (m *memStore) CountByStatus(_ context.Context, sellerID uuid.UUID) ([]StatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg := map[enums.BookingStatus]*StatusCount{}
	for _, b := range m.state.bookings {
		if b.SellerID != sellerID {
			continue
		}
		row, ok := agg[b.Status]
		if !ok {
			row = &StatusCount{Status: b.Status}
			agg[b.Status] = row
		}
		row.Count++
		row.Amount += b.FinalAmount
	}
	out := make([]StatusCount, 0, len(agg))
	for _, row := range agg {
		out = append(out, *row)
	}
	return out, nil
}
