package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ecociclo/ecociclo/internal/message"
	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/ecociclo/ecociclo/internal/notification"
	"github.com/ecociclo/ecociclo/internal/profile"
)

// Message constraints.
const (
	MaxMessageLength       = 2000
	DefaultConversationCap = 100
)

// SendMessageRequest represents the request body for POST /v1/messages.
type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// MessagePublisher reports sent messages to the change feed.
type MessagePublisher interface {
	MessageSent(m *message.Message)
}

// MessageHandlers holds dependencies for direct message HTTP handlers.
type MessageHandlers struct {
	messages      message.Repository
	notifications notification.Repository
	profiles      profile.Repository
	publisher     MessagePublisher
}

// NewMessageHandlers creates a new MessageHandlers instance.
func NewMessageHandlers(messages message.Repository, notifications notification.Repository, profiles profile.Repository) *MessageHandlers {
	return &MessageHandlers{messages: messages, notifications: notifications, profiles: profiles}
}

// SetPublisher installs the message change publisher (optional).
func (h *MessageHandlers) SetPublisher(pub MessagePublisher) {
	h.publisher = pub
}

// Send handles POST /v1/messages - sends a direct message and notifies the
// receiver.
func (h *MessageHandlers) Send(w http.ResponseWriter, r *http.Request) {
	senderID := middleware.GetUserID(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.ReceiverID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "receiver_id is required")
		return
	}
	if req.ReceiverID == senderID {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "cannot message yourself")
		return
	}
	if req.Content == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "content is required")
		return
	}
	if len(req.Content) > MaxMessageLength {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "content must not exceed 2000 characters")
		return
	}

	m := &message.Message{
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
	}
	if err := h.messages.Insert(r.Context(), m); err != nil {
		slog.ErrorContext(r.Context(), "failed to store message", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to send message")
		return
	}
	if h.publisher != nil {
		h.publisher.MessageSent(m)
	}

	// Notification delivery is best effort; the message itself is stored.
	senderName := senderID
	if prof, err := h.profiles.GetByUserID(r.Context(), senderID); err == nil {
		senderName = prof.Name
	}
	n := &notification.Notification{
		UserID:    req.ReceiverID,
		Title:     "Nuevo mensaje",
		Content:   fmt.Sprintf("%s te ha enviado un mensaje", senderName),
		Type:      notification.TypeNewMessage,
		RelatedID: &m.ID,
	}
	if err := h.notifications.Insert(r.Context(), n); err != nil {
		slog.WarnContext(r.Context(), "failed to notify message receiver", "receiver_id", req.ReceiverID, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(m); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// UnreadBySender handles GET /v1/messages/unread - unread message counts
// grouped by sender.
func (h *MessageHandlers) UnreadBySender(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	counts, err := h.messages.UnreadBySender(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to count unread messages", "user_id", userID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to count messages")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]any{"unread": counts}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// Conversation handles GET /v1/messages/{user_id} - the conversation between
// the caller and the given user, oldest first.
func (h *MessageHandlers) Conversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	otherID := strings.TrimPrefix(r.URL.Path, "/v1/messages/")
	if otherID == "" || strings.Contains(otherID, "/") {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	limit := DefaultConversationCap
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	messages, err := h.messages.Conversation(r.Context(), userID, otherID, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load conversation", "user_id", userID, "other_id", otherID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load conversation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]any{"messages": messages}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// MarkConversationRead handles POST /v1/messages/{user_id}/read - marks all
// messages from the given sender to the caller as read.
func (h *MessageHandlers) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	rest := strings.TrimPrefix(r.URL.Path, "/v1/messages/")
	senderID := strings.TrimSuffix(rest, "/read")
	if senderID == "" || senderID == rest {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	if err := h.messages.MarkReadFrom(r.Context(), userID, senderID); err != nil {
		slog.ErrorContext(r.Context(), "failed to mark conversation read", "user_id", userID, "sender_id", senderID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to mark conversation read")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
