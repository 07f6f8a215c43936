package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/ecociclo/ecociclo/internal/viewstate"
)

// tabStateKey is the view state key for the client's active tab.
const tabStateKey = "tab"

// TabStateRequest represents the request body for PUT /v1/session/tab.
type TabStateRequest struct {
	Tab string `json:"tab"`
}

// TabStateResponse is returned by GET /v1/session/tab.
type TabStateResponse struct {
	Tab string `json:"tab"`
}

// SessionHandlers holds dependencies for per-user session state handlers.
type SessionHandlers struct {
	store viewstate.Store
}

// NewSessionHandlers creates a new SessionHandlers instance.
func NewSessionHandlers(store viewstate.Store) *SessionHandlers {
	return &SessionHandlers{store: store}
}

// Tab handles GET and PUT /v1/session/tab - the caller's persisted active
// tab, restored across sessions and devices.
func (h *SessionHandlers) Tab(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getTab(w, r)
	case http.MethodPut:
		h.putTab(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

func (h *SessionHandlers) getTab(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	tab, err := h.store.Get(r.Context(), userID, tabStateKey)
	if err != nil && !errors.Is(err, viewstate.ErrNotFound) {
		slog.ErrorContext(r.Context(), "failed to load tab state", "user_id", userID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load session state")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(TabStateResponse{Tab: tab}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (h *SessionHandlers) putTab(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req TabStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Tab == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "tab is required")
		return
	}

	if err := h.store.Set(r.Context(), userID, tabStateKey, req.Tab); err != nil {
		slog.ErrorContext(r.Context(), "failed to store tab state", "user_id", userID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to store session state")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
