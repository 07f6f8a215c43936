package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/ecociclo/ecociclo/internal/profile"
	"github.com/ecociclo/ecociclo/internal/rating"
)

// MaxRatingCommentLength caps rating comments.
const MaxRatingCommentLength = 500

// CreateRatingRequest represents the request body for POST /v1/ratings.
type CreateRatingRequest struct {
	RecyclerID string  `json:"recycler_id"`
	Score      int     `json:"score"`
	Comment    *string `json:"comment,omitempty"`
}

// RatingHandlers holds dependencies for rating HTTP handlers.
type RatingHandlers struct {
	ratings  rating.Repository
	profiles profile.Repository
}

// NewRatingHandlers creates a new RatingHandlers instance.
func NewRatingHandlers(ratings rating.Repository, profiles profile.Repository) *RatingHandlers {
	return &RatingHandlers{ratings: ratings, profiles: profiles}
}

// Create handles POST /v1/ratings - a resident rates a recycler.
func (h *RatingHandlers) Create(w http.ResponseWriter, r *http.Request) {
	raterID := middleware.GetUserID(r.Context())

	var req CreateRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.RecyclerID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "recycler_id is required")
		return
	}
	if req.RecyclerID == raterID {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "cannot rate yourself")
		return
	}
	if req.Comment != nil && len(strings.TrimSpace(*req.Comment)) > MaxRatingCommentLength {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "comment must not exceed 500 characters")
		return
	}

	// The rated user must exist and be a recycler.
	prof, err := h.profiles.GetByUserID(r.Context(), req.RecyclerID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Recycler not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to load recycler profile", "recycler_id", req.RecyclerID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create rating")
		return
	}
	if prof.Role != profile.RoleRecycler {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "rated user is not a recycler")
		return
	}

	rt := &rating.Rating{
		RecyclerID: req.RecyclerID,
		RaterID:    raterID,
		Score:      req.Score,
		Comment:    req.Comment,
	}
	if err := h.ratings.Insert(r.Context(), rt); err != nil {
		if errors.Is(err, rating.ErrInvalidScore) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidScore)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidScore, "score must be between 1 and 5")
			return
		}
		slog.ErrorContext(r.Context(), "failed to store rating", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create rating")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(rt); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
