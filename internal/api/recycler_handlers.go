package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/ecociclo/ecociclo/internal/profile"
	"github.com/ecociclo/ecociclo/internal/rating"
)

// PresenceRequest represents the request body for POST /v1/recyclers/presence.
type PresenceRequest struct {
	Online bool     `json:"online"`
	Lat    *float64 `json:"lat,omitempty"`
	Lng    *float64 `json:"lng,omitempty"`
}

// RatingSummaryResponse is returned by GET /v1/recyclers/{id}/ratings.
type RatingSummaryResponse struct {
	RecyclerID string  `json:"recycler_id"`
	Average    float64 `json:"average"`
	Total      int     `json:"total"`
}

// PresencePublisher reports presence changes to the change feed.
type PresencePublisher interface {
	PresenceChanged(prof *profile.Profile)
}

// RecyclerHandlers holds dependencies for recycler HTTP handlers.
type RecyclerHandlers struct {
	profiles  profile.Repository
	ratings   rating.Repository
	publisher PresencePublisher
}

// NewRecyclerHandlers creates a new RecyclerHandlers instance.
func NewRecyclerHandlers(profiles profile.Repository, ratings rating.Repository) *RecyclerHandlers {
	return &RecyclerHandlers{profiles: profiles, ratings: ratings}
}

// SetPublisher installs the presence change publisher (optional).
func (h *RecyclerHandlers) SetPublisher(pub PresencePublisher) {
	h.publisher = pub
}

// ListOnline handles GET /v1/recyclers/online - all recyclers currently
// online, with their last reported coordinates.
func (h *RecyclerHandlers) ListOnline(w http.ResponseWriter, r *http.Request) {
	recyclers, err := h.profiles.OnlineRecyclers(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list online recyclers", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list online recyclers")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]any{"recyclers": recyclers}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// SetPresence handles POST /v1/recyclers/presence - a recycler reports going
// online or offline, optionally with coordinates.
func (h *RecyclerHandlers) SetPresence(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req PresenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.Online && (req.Lat == nil) != (req.Lng == nil) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "lat and lng must be provided together")
		return
	}

	if err := h.profiles.SetOnline(r.Context(), userID, req.Online, req.Lat, req.Lng); err != nil {
		slog.ErrorContext(r.Context(), "failed to set presence", "user_id", userID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update presence")
		return
	}

	if h.publisher != nil {
		if prof, err := h.profiles.GetByUserID(r.Context(), userID); err == nil {
			h.publisher.PresenceChanged(prof)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// RatingSummary handles GET /v1/recyclers/{id}/ratings - the recycler's
// aggregate rating.
func (h *RecyclerHandlers) RatingSummary(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/recyclers/")
	recyclerID := strings.TrimSuffix(rest, "/ratings")
	if recyclerID == "" || recyclerID == rest {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Recycler ID is required")
		return
	}

	avg, total, err := h.ratings.Summary(r.Context(), recyclerID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load rating summary", "recycler_id", recyclerID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load ratings")
		return
	}

	response := RatingSummaryResponse{
		RecyclerID: recyclerID,
		Average:    avg,
		Total:      total,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
