package bookings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tixmarket-backend/api/middleware"
	internalbookings "github.com/angelmondragon/tixmarket-backend/internal/bookings"
	"github.com/angelmondragon/tixmarket-backend/pkg/db/models"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
)

type stubService struct {
	createFn       func(internalbookings.CreateInput) (*models.Booking, error)
	submitProofFn  func(bookingID, buyerID uuid.UUID, proof string) (*models.Booking, error)
	updateStatusFn func(bookingID uuid.UUID, target enums.BookingStatus, actor internalbookings.Actor) (*models.Booking, error)
	getFn          func(bookingID uuid.UUID, viewer internalbookings.Viewer) (*internalbookings.Summary, error)
	listFn         func(internalbookings.ListParams) (*internalbookings.ListResult, error)
	statsFn        func(sellerID uuid.UUID) (*internalbookings.SellerStats, error)
}

func (s *stubService) Create(_ context.Context, in internalbookings.CreateInput) (*models.Booking, error) {
	return s.createFn(in)
}

func (s *stubService) SubmitProof(_ context.Context, bookingID, buyerID uuid.UUID, proof string) (*models.Booking, error) {
	return s.submitProofFn(bookingID, buyerID, proof)
}

func (s *stubService) UpdateStatus(_ context.Context, bookingID uuid.UUID, target enums.BookingStatus, actor internalbookings.Actor) (*models.Booking, error) {
	return s.updateStatusFn(bookingID, target, actor)
}

func (s *stubService) Get(_ context.Context, bookingID uuid.UUID, viewer internalbookings.Viewer) (*internalbookings.Summary, error) {
	return s.getFn(bookingID, viewer)
}

func (s *stubService) List(_ context.Context, params internalbookings.ListParams) (*internalbookings.ListResult, error) {
	return s.listFn(params)
}

func (s *stubService) Stats(_ context.Context, sellerID uuid.UUID) (*internalbookings.SellerStats, error) {
	return s.statsFn(sellerID)
}

func newRouter(svc internalbookings.Service) http.Handler {
	logg := logger.Nop()
	r := chi.NewRouter()
	r.Post("/bookings", Create(svc, logg))
	r.Get("/bookings", List(svc, logg))
	r.Get("/bookings/{bookingId}", Detail(svc, logg))
	r.Post("/bookings/{bookingId}/proof", SubmitProof(svc, logg))
	r.Post("/bookings/{bookingId}/status", UpdateStatus(svc, logg))
	r.Get("/stats", SellerStats(svc, logg))
	return r
}

func do(t *testing.T, h http.Handler, caller *middleware.Identity, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if caller != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), *caller))
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Error.Code
}

func sampleBooking(buyer uuid.UUID) *models.Booking {
	return &models.Booking{
		ID:              uuid.New(),
		BuyerID:         buyer,
		SellerID:        uuid.New(),
		EventID:         uuid.New(),
		OfferingID:      uuid.New(),
		Quantity:        2,
		UnitPrice:       1000,
		TotalAmount:     2000,
		CouponDiscount:  250,
		FinalAmount:     1750,
		Status:          enums.BookingStatusAwaitingPayment,
		PaymentDeadline: time.Now().Add(2 * time.Hour).UTC(),
	}
}

func TestCreate(t *testing.T) {
	buyer := middleware.Identity{UserID: uuid.New(), Role: enums.UserRoleBuyer}
	eventID, offeringID := uuid.New(), uuid.New()
	var got internalbookings.CreateInput
	svc := &stubService{createFn: func(in internalbookings.CreateInput) (*models.Booking, error) {
		got = in
		return sampleBooking(in.BuyerID), nil
	}}
	body := `{"event_id":"` + eventID.String() + `","offering_id":"` + offeringID.String() + `","quantity":2,"points":0,"coupon_code":"SAVE"}`

	resp := do(t, newRouter(svc), &buyer, http.MethodPost, "/bookings", body)
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, internalbookings.CreateInput{
		BuyerID:    buyer.UserID,
		EventID:    eventID,
		OfferingID: offeringID,
		Quantity:   2,
		CouponCode: "SAVE",
	}, got)

	var payload struct {
		FinalAmount struct {
			Minor int64  `json:"minor"`
			Major string `json:"major"`
		} `json:"final_amount"`
		Status string `json:"status"`
	}
	decodeData(t, resp, &payload)
	require.EqualValues(t, 1750, payload.FinalAmount.Minor)
	require.Equal(t, "17.50", payload.FinalAmount.Major)
	require.Equal(t, "awaiting_payment", payload.Status)
}

func TestCreateRejectsBadInput(t *testing.T) {
	buyer := middleware.Identity{UserID: uuid.New(), Role: enums.UserRoleBuyer}
	called := false
	svc := &stubService{createFn: func(internalbookings.CreateInput) (*models.Booking, error) {
		called = true
		return nil, nil
	}}
	h := newRouter(svc)

	for name, body := range map[string]string{
		"zero quantity":   `{"event_id":"` + uuid.NewString() + `","offering_id":"` + uuid.NewString() + `","quantity":0}`,
		"negative points": `{"event_id":"` + uuid.NewString() + `","offering_id":"` + uuid.NewString() + `","quantity":1,"points":-5}`,
		"missing event":   `{"offering_id":"` + uuid.NewString() + `","quantity":1}`,
		"unknown field":   `{"event_id":"` + uuid.NewString() + `","offering_id":"` + uuid.NewString() + `","quantity":1,"price":1}`,
	} {
		resp := do(t, h, &buyer, http.MethodPost, "/bookings", body)
		require.Equal(t, http.StatusBadRequest, resp.Code, name)
	}
	require.False(t, called)

	resp := do(t, h, nil, http.MethodPost, "/bookings", `{}`)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCreateMapsDomainErrors(t *testing.T) {
	buyer := middleware.Identity{UserID: uuid.New(), Role: enums.UserRoleBuyer}
	cases := map[pkgerrors.Code]int{
		pkgerrors.CodeInsufficientCapacity: http.StatusConflict,
		pkgerrors.CodeInsufficientPoints:   http.StatusConflict,
		pkgerrors.CodeNotFound:             http.StatusNotFound,
		pkgerrors.CodeInvalidAmount:        http.StatusUnprocessableEntity,
		pkgerrors.CodeAlreadyUsed:          http.StatusConflict,
	}
	for code, status := range cases {
		svc := &stubService{createFn: func(internalbookings.CreateInput) (*models.Booking, error) {
			return nil, pkgerrors.New(code, "nope")
		}}
		body := `{"event_id":"` + uuid.NewString() + `","offering_id":"` + uuid.NewString() + `","quantity":1}`
		resp := do(t, newRouter(svc), &buyer, http.MethodPost, "/bookings", body)
		require.Equal(t, status, resp.Code, string(code))
		require.Equal(t, string(code), errorCode(t, resp))
	}
}

func TestListPassesViewerAndFilters(t *testing.T) {
	seller := middleware.Identity{UserID: uuid.New(), Role: enums.UserRoleSeller}
	var got internalbookings.ListParams
	svc := &stubService{listFn: func(p internalbookings.ListParams) (*internalbookings.ListResult, error) {
		got = p
		return &internalbookings.ListResult{
			Items:  []internalbookings.Summary{{Booking: *sampleBooking(uuid.New()), OfferingName: "GA", EventName: "Show"}},
			Cursor: "next",
		}, nil
	}}

	resp := do(t, newRouter(svc), &seller, http.MethodGet, "/bookings?status=awaiting_confirmation&limit=5&cursor=abc", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, internalbookings.ListParams{
		Viewer: internalbookings.Viewer{UserID: seller.UserID, Role: enums.UserRoleSeller},
		Status: "awaiting_confirmation",
		Limit:  5,
		Cursor: "abc",
	}, got)

	var page struct {
		Items []struct {
			OfferingName string `json:"offering_name"`
			EventName    string `json:"event_name"`
		} `json:"items"`
		Cursor string `json:"cursor"`
	}
	decodeData(t, resp, &page)
	require.Len(t, page.Items, 1)
	require.Equal(t, "GA", page.Items[0].OfferingName)
	require.Equal(t, "next", page.Cursor)

	resp = do(t, newRouter(svc), &seller, http.MethodGet, "/bookings?limit=1000", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDetailForbiddenForStranger(t *testing.T) {
	stranger := middleware.Identity{UserID: uuid.New(), Role: enums.UserRoleBuyer}
	svc := &stubService{getFn: func(uuid.UUID, internalbookings.Viewer) (*internalbookings.Summary, error) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not your booking")
	}}

	resp := do(t, newRouter(svc), &stranger, http.MethodGet, "/bookings/"+uuid.NewString(), "")
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = do(t, newRouter(svc), &stranger, http.MethodGet, "/bookings/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSubmitProof(t *testing.T) {
	buyer := middleware.Identity{UserID: uuid.New(), Role: enums.UserRoleBuyer}
	bookingID := uuid.New()
	var gotProof string
	svc := &stubService{submitProofFn: func(id, buyerID uuid.UUID, proof string) (*models.Booking, error) {
		require.Equal(t, bookingID, id)
		require.Equal(t, buyer.UserID, buyerID)
		gotProof = proof
		b := sampleBooking(buyerID)
		b.Status = enums.BookingStatusAwaitingConfirmation
		b.PaymentProof = &proof
		return b, nil
	}}

	resp := do(t, newRouter(svc), &buyer, http.MethodPost, "/bookings/"+bookingID.String()+"/proof", `{"proof_ref":"  receipt-42  "}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "receipt-42", gotProof)

	resp = do(t, newRouter(svc), &buyer, http.MethodPost, "/bookings/"+bookingID.String()+"/proof", `{"proof_ref":""}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSubmitProofAfterDeadline(t *testing.T) {
	buyer := middleware.Identity{UserID: uuid.New(), Role: enums.UserRoleBuyer}
	svc := &stubService{submitProofFn: func(uuid.UUID, uuid.UUID, string) (*models.Booking, error) {
		return nil, pkgerrors.New(pkgerrors.CodeExpired, "payment window closed")
	}}

	resp := do(t, newRouter(svc), &buyer, http.MethodPost, "/bookings/"+uuid.NewString()+"/proof", `{"proof_ref":"r"}`)
	require.Equal(t, http.StatusGone, resp.Code)
	require.Equal(t, "EXPIRED", errorCode(t, resp))
}

func TestUpdateStatus(t *testing.T) {
	seller := middleware.Identity{UserID: uuid.New(), Role: enums.UserRoleSeller}
	var gotActor internalbookings.Actor
	var gotTarget enums.BookingStatus
	svc := &stubService{updateStatusFn: func(_ uuid.UUID, target enums.BookingStatus, actor internalbookings.Actor) (*models.Booking, error) {
		gotTarget, gotActor = target, actor
		b := sampleBooking(uuid.New())
		b.Status = target
		return b, nil
	}}
	h := newRouter(svc)

	resp := do(t, h, &seller, http.MethodPost, "/bookings/"+uuid.NewString()+"/status", `{"status":"done"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, enums.BookingStatusDone, gotTarget)
	require.Equal(t, internalbookings.Actor{UserID: seller.UserID}, gotActor)

	resp = do(t, h, &seller, http.MethodPost, "/bookings/"+uuid.NewString()+"/status", `{"status":"refunded"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	seller := middleware.Identity{UserID: uuid.New(), Role: enums.UserRoleSeller}
	svc := &stubService{updateStatusFn: func(uuid.UUID, enums.BookingStatus, internalbookings.Actor) (*models.Booking, error) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "done -> rejected not allowed")
	}}

	resp := do(t, newRouter(svc), &seller, http.MethodPost, "/bookings/"+uuid.NewString()+"/status", `{"status":"rejected"}`)
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Equal(t, "INVALID_TRANSITION", errorCode(t, resp))
}

func TestSellerStats(t *testing.T) {
	seller := middleware.Identity{UserID: uuid.New(), Role: enums.UserRoleSeller}
	svc := &stubService{statsFn: func(id uuid.UUID) (*internalbookings.SellerStats, error) {
		return &internalbookings.SellerStats{
			SellerID: id,
			ByStatus: map[enums.BookingStatus]int64{enums.BookingStatusDone: 3, enums.BookingStatusRejected: 1},
			Total:    4,
			Revenue:  4500,
		}, nil
	}}

	resp := do(t, newRouter(svc), &seller, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var payload struct {
		SellerID uuid.UUID        `json:"seller_id"`
		Total    int64            `json:"total"`
		ByStatus map[string]int64 `json:"by_status"`
		Revenue  struct {
			Major string `json:"major"`
		} `json:"revenue"`
	}
	decodeData(t, resp, &payload)
	require.Equal(t, seller.UserID, payload.SellerID)
	require.EqualValues(t, 4, payload.Total)
	require.EqualValues(t, 3, payload.ByStatus["done"])
	require.Equal(t, "45.00", payload.Revenue.Major)
}
