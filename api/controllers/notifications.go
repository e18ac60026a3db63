package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tixmarket-backend/api/middleware"
	"github.com/angelmondragon/tixmarket-backend/api/responses"
	"github.com/angelmondragon/tixmarket-backend/api/validators"
	"github.com/angelmondragon/tixmarket-backend/internal/notifications"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
	"github.com/angelmondragon/tixmarket-backend/pkg/pagination"
)

type inboxItem struct {
	ID        uuid.UUID              `json:"id"`
	BookingID *uuid.UUID             `json:"booking_id,omitempty"`
	Type      enums.NotificationType `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type inboxPage struct {
	Items  []inboxItem `json:"items"`
	Cursor string      `json:"cursor,omitempty"`
	Unread int64       `json:"unread"`
}

func newInboxPage(result *notifications.ListResult) inboxPage {
	page := inboxPage{Items: make([]inboxItem, len(result.Items)), Cursor: result.Cursor, Unread: result.Unread}
	for i, n := range result.Items {
		page.Items[i] = inboxItem{
			ID:        n.ID,
			BookingID: n.BookingID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		}
	}
	return page
}

// inboxAction is one inbox operation on behalf of the authenticated owner.
type inboxAction func(ctx context.Context, r *http.Request, owner uuid.UUID) (any, error)

func serveInbox(svc notifications.Service, logg *logger.Logger, act inboxAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var (
			payload any
			err     error
		)
		if svc == nil {
			err = pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable")
		} else if caller, ok := middleware.IdentityFromContext(ctx); !ok {
			err = pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
		} else {
			payload, err = act(ctx, r, caller.UserID)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payload)
	}
}

// ListNotifications returns the caller's inbox, newest first.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serveInbox(svc, logg, func(ctx context.Context, r *http.Request, owner uuid.UUID) (any, error) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return nil, err
		}
		unreadOnly, err := validators.ParseQueryBool(r, "unread_only")
		if err != nil {
			return nil, err
		}
		result, err := svc.List(ctx, notifications.ListParams{
			UserID:     owner,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
			UnreadOnly: unreadOnly,
		})
		if err != nil {
			return nil, err
		}
		return newInboxPage(result), nil
	})
}

// MarkNotificationRead flags one notification as read.
func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serveInbox(svc, logg, func(ctx context.Context, r *http.Request, owner uuid.UUID) (any, error) {
		id, err := validators.ParseURLUUID(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(ctx, owner, id); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

// MarkAllNotificationsRead clears the caller's unread badge.
func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serveInbox(svc, logg, func(ctx context.Context, _ *http.Request, owner uuid.UUID) (any, error) {
		updated, err := svc.MarkAllRead(ctx, owner)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": updated}, nil
	})
}
