package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/ecociclo/ecociclo/internal/notification"
)

// DefaultNotificationLimit caps notification list responses.
const DefaultNotificationLimit = 50

// UnreadCountResponse is returned by GET /v1/notifications/unread.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// NotificationHandlers holds dependencies for notification HTTP handlers.
type NotificationHandlers struct {
	repo notification.Repository
}

// NewNotificationHandlers creates a new NotificationHandlers instance.
func NewNotificationHandlers(repo notification.Repository) *NotificationHandlers {
	return &NotificationHandlers{repo: repo}
}

// List handles GET /v1/notifications - the caller's notifications, newest
// first. The limit query parameter caps the result (default 50).
func (h *NotificationHandlers) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	limit := DefaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	notifications, err := h.repo.ListByUser(r.Context(), userID, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list notifications", "user_id", userID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list notifications")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]any{"notifications": notifications}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// UnreadCount handles GET /v1/notifications/unread.
func (h *NotificationHandlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	count, err := h.repo.UnreadCount(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to count unread notifications", "user_id", userID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to count notifications")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(UnreadCountResponse{Count: count}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// MarkRead handles POST /v1/notifications/{id}/read - marks one of the
// caller's notifications as read.
func (h *NotificationHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	rest := strings.TrimPrefix(r.URL.Path, "/v1/notifications/")
	notificationID := strings.TrimSuffix(rest, "/read")
	if notificationID == "" || notificationID == rest {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Notification ID is required")
		return
	}

	if err := h.repo.MarkRead(r.Context(), notificationID, userID); err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Notification not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to mark notification read", "notification_id", notificationID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to mark notification read")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
