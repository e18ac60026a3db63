package bookings

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tixmarket-backend/api/middleware"
	"github.com/angelmondragon/tixmarket-backend/api/responses"
	"github.com/angelmondragon/tixmarket-backend/api/validators"
	internalbookings "github.com/angelmondragon/tixmarket-backend/internal/bookings"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
	"github.com/angelmondragon/tixmarket-backend/pkg/pagination"
	"github.com/angelmondragon/tixmarket-backend/pkg/types"
)

// Create places a booking for the authenticated buyer.
func Create(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := identity(w, r, logg)
		if !ok {
			return
		}
		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventID, errEvent := uuid.Parse(req.EventID)
		offeringID, errOffering := uuid.Parse(req.OfferingID)
		if errEvent != nil || errOffering != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid event or offering id"))
			return
		}

		booking, err := svc.Create(r.Context(), internalbookings.CreateInput{
			BuyerID:     caller.UserID,
			EventID:     eventID,
			OfferingID:  offeringID,
			Quantity:    req.Quantity,
			Points:      req.Points,
			CouponCode:  req.CouponCode,
			VoucherCode: req.VoucherCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toResponse(*booking))
	}
}

// List pages the caller's bookings: a buyer's purchases or a seller's sales.
func List(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := identity(w, r, logg)
		if !ok {
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), internalbookings.ListParams{
			Viewer: internalbookings.Viewer{UserID: caller.UserID, Role: caller.Role},
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]BookingResponse, 0, len(page.Items))
		for _, row := range page.Items {
			items = append(items, summaryResponse(row))
		}
		responses.WriteSuccess(w, types.Page[BookingResponse]{Items: items, Cursor: page.Cursor})
	}
}

// Detail returns one booking to its buyer or seller.
func Detail(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := identity(w, r, logg)
		if !ok {
			return
		}
		bookingID, err := validators.ParseURLUUID(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Get(r.Context(), bookingID, internalbookings.Viewer{UserID: caller.UserID, Role: caller.Role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summaryResponse(*summary))
	}
}

// SubmitProof attaches the buyer's payment reference.
func SubmitProof(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := identity(w, r, logg)
		if !ok {
			return
		}
		bookingID, err := validators.ParseURLUUID(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req proofRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.SubmitProof(r.Context(), bookingID, caller.UserID, validators.SanitizeString(req.ProofRef, 512))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toResponse(*booking))
	}
}

// UpdateStatus applies a seller decision to a booking.
func UpdateStatus(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := identity(w, r, logg)
		if !ok {
			return
		}
		bookingID, err := validators.ParseURLUUID(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseBookingStatus(strings.TrimSpace(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown booking status").
				WithDetails(map[string]any{"status": req.Status}))
			return
		}

		booking, err := svc.UpdateStatus(r.Context(), bookingID, target, internalbookings.Actor{UserID: caller.UserID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toResponse(*booking))
	}
}

// SellerStats returns the caller's booking counts and revenue.
func SellerStats(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := identity(w, r, logg)
		if !ok {
			return
		}
		stats, err := svc.Stats(r.Context(), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStatsResponse(*stats))
	}
}

func identity(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (middleware.Identity, bool) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return middleware.Identity{}, false
	}
	return caller, true
}
