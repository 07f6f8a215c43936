package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ecociclo/ecociclo/internal/claim"
	"github.com/ecociclo/ecociclo/internal/lifecycle"
	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/ecociclo/ecociclo/internal/point"
	"github.com/ecociclo/ecociclo/internal/profile"
)

// Address length constraints for collection points.
const (
	MinAddressLength = 5
	MaxAddressLength = 255
)

// CreatePointRequest represents the request body for creating a collection point.
type CreatePointRequest struct {
	Address        string   `json:"address"`
	District       string   `json:"district"`
	Schedule       string   `json:"schedule"`
	Materials      []string `json:"materials,omitempty"`
	Notes          *string  `json:"notes,omitempty"`
	AdditionalInfo *string  `json:"additional_info,omitempty"`
	PhotoURL       *string  `json:"photo_url,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lng            *float64 `json:"lng,omitempty"`
}

// ClaimPointRequest represents the request body for claiming a point.
type ClaimPointRequest struct {
	PickupTime time.Time `json:"pickup_time"`
}

// CancelClaimRequest represents the request body for cancelling a claim.
type CancelClaimRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// CompletionResponse is returned when a collection is completed.
// OwnerBalance is the point owner's eco-credit balance after the credit.
type CompletionResponse struct {
	Claim        *claim.Claim `json:"claim"`
	OwnerBalance int          `json:"owner_balance"`
}

// PointHandlers holds dependencies for collection point HTTP handlers.
type PointHandlers struct {
	engine *lifecycle.Engine
	points point.Repository
	claims claim.Repository
}

// NewPointHandlers creates a new PointHandlers instance.
func NewPointHandlers(engine *lifecycle.Engine, points point.Repository, claims claim.Repository) *PointHandlers {
	return &PointHandlers{engine: engine, points: points, claims: claims}
}

// pointPathID extracts the point ID from paths like /v1/points/{id}/claim.
func pointPathID(path string) string {
	rest := strings.TrimPrefix(path, "/v1/points/")
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}

// writeLifecycleError maps lifecycle engine errors onto API error responses.
func writeLifecycleError(w http.ResponseWriter, r *http.Request, err error) {
	code := ErrCodeInternal
	message := "Operation failed"

	switch {
	case errors.Is(err, lifecycle.ErrPointNotFound):
		code, message = ErrCodePointNotFound, "Collection point not found"
	case errors.Is(err, lifecycle.ErrClaimNotFound):
		code, message = ErrCodeNotFound, "Claim not found"
	case errors.Is(err, lifecycle.ErrAlreadyClaimed):
		code, message = ErrCodeAlreadyClaimed, "Collection point already has an active claim"
	case errors.Is(err, lifecycle.ErrNotClaimable):
		code, message = ErrCodeNotClaimable, "Collection point is not available"
	case errors.Is(err, lifecycle.ErrClaimNotActive):
		code, message = ErrCodeClaimNotActive, "Claim is no longer active"
	case errors.Is(err, lifecycle.ErrNotOwner):
		code, message = ErrCodeNotOwner, "Only the point owner can perform this operation"
	case errors.Is(err, lifecycle.ErrNotClaimHolder):
		code, message = ErrCodeNotClaimHolder, "Only the claim holder can perform this operation"
	case errors.Is(err, lifecycle.ErrActiveClaim):
		code, message = ErrCodeActiveClaim, "Collection point has an active claim"
	case errors.Is(err, lifecycle.ErrNotReopenable):
		code, message = ErrCodeNotReopenable, "Collection point cannot be reopened"
	default:
		slog.ErrorContext(r.Context(), "lifecycle operation failed", "error", err)
	}

	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}

// DetailedPointResponse is a detailed point with its effective state at
// serve time. State is derived on every request, never cached: a claimed
// point drifts into "delayed" the moment its pickup time passes.
type DetailedPointResponse struct {
	point.DetailedPoint
	State string `json:"state"`
}

// ListPoints handles GET /v1/points.
// Residents see their own points with claim details and derived state;
// recyclers see available points, optionally filtered by the district query
// parameter.
func (h *PointHandlers) ListPoints(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())

	var payload any
	var err error
	if role == profile.RoleRecycler {
		payload, err = h.points.ListAvailable(r.Context(), r.URL.Query().Get("district"))
	} else {
		var detailed []point.DetailedPoint
		detailed, err = h.points.ListByOwner(r.Context(), userID)
		if err == nil {
			now := time.Now()
			out := make([]DetailedPointResponse, 0, len(detailed))
			for _, dp := range detailed {
				out = append(out, DetailedPointResponse{
					DetailedPoint: dp,
					State:         lifecycle.StateOf(&dp.Point, now),
				})
			}
			payload = out
		}
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list points", "user_id", userID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list collection points")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]any{"points": payload}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// CreatePoint handles POST /v1/points - registers a new collection point.
func (h *PointHandlers) CreatePoint(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreatePointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	req.Address = strings.TrimSpace(req.Address)
	if len(req.Address) < MinAddressLength || len(req.Address) > MaxAddressLength {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "address must be between 5 and 255 characters")
		return
	}
	if strings.TrimSpace(req.District) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "district is required")
		return
	}
	if strings.TrimSpace(req.Schedule) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "schedule is required")
		return
	}

	p := &point.CollectionPoint{
		UserID:         userID,
		Address:        req.Address,
		District:       strings.TrimSpace(req.District),
		Schedule:       strings.TrimSpace(req.Schedule),
		Materials:      req.Materials,
		Notes:          req.Notes,
		AdditionalInfo: req.AdditionalInfo,
		PhotoURL:       req.PhotoURL,
		Lat:            req.Lat,
		Lng:            req.Lng,
	}

	if err := h.engine.Create(r.Context(), p); err != nil {
		writeLifecycleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// GetPoint handles GET /v1/points/{id}.
func (h *PointHandlers) GetPoint(w http.ResponseWriter, r *http.Request) {
	pointID := pointPathID(r.URL.Path)
	if pointID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Point ID is required")
		return
	}

	p, err := h.points.GetByID(r.Context(), pointID)
	if err != nil {
		if errors.Is(err, point.ErrPointNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePointNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodePointNotFound, "Collection point not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get point", "point_id", pointID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve collection point")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// DeletePoint handles DELETE /v1/points/{id}.
// Only the owner may delete, and only while no claim is active.
func (h *PointHandlers) DeletePoint(w http.ResponseWriter, r *http.Request) {
	pointID := pointPathID(r.URL.Path)
	userID := middleware.GetUserID(r.Context())

	if err := h.engine.Delete(r.Context(), pointID, userID); err != nil {
		writeLifecycleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClaimPoint handles POST /v1/points/{id}/claim - a recycler commits to
// collect the point at the given pickup time.
func (h *PointHandlers) ClaimPoint(w http.ResponseWriter, r *http.Request) {
	pointID := pointPathID(r.URL.Path)
	recyclerID := middleware.GetUserID(r.Context())

	var req ClaimPointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.PickupTime.IsZero() {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "pickup_time is required")
		return
	}

	c, err := h.engine.Claim(r.Context(), pointID, recyclerID, req.PickupTime)
	if err != nil {
		writeLifecycleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(c); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// CancelClaim handles POST /v1/points/{id}/cancel - the claim holder or the
// point owner cancels the active claim, restoring availability.
func (h *PointHandlers) CancelClaim(w http.ResponseWriter, r *http.Request) {
	pointID := pointPathID(r.URL.Path)
	actorID := middleware.GetUserID(r.Context())

	var req CancelClaimRequest
	if r.Body != nil {
		// Body is optional; ignore decode errors on empty bodies.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	active, err := h.claims.ActiveByPoint(r.Context(), pointID)
	if err != nil {
		if errors.Is(err, claim.ErrClaimNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeClaimNotActive)
			WriteError(w, ctx, http.StatusConflict, ErrCodeClaimNotActive, "Collection point has no active claim")
			return
		}
		slog.ErrorContext(r.Context(), "failed to resolve active claim", "point_id", pointID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to cancel claim")
		return
	}

	if err := h.engine.Cancel(r.Context(), active.ID, actorID, req.Reason); err != nil {
		writeLifecycleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CompleteClaim handles POST /v1/points/{id}/complete - the claim holder
// marks the collection fulfilled and is credited EcoCreditos.
func (h *PointHandlers) CompleteClaim(w http.ResponseWriter, r *http.Request) {
	pointID := pointPathID(r.URL.Path)
	recyclerID := middleware.GetUserID(r.Context())

	active, err := h.claims.ActiveByPoint(r.Context(), pointID)
	if err != nil {
		if errors.Is(err, claim.ErrClaimNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeClaimNotActive)
			WriteError(w, ctx, http.StatusConflict, ErrCodeClaimNotActive, "Collection point has no active claim")
			return
		}
		slog.ErrorContext(r.Context(), "failed to resolve active claim", "point_id", pointID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to complete collection")
		return
	}

	result, err := h.engine.Complete(r.Context(), active.ID, recyclerID)
	if err != nil {
		writeLifecycleError(w, r, err)
		return
	}

	response := CompletionResponse{
		Claim:        result.Claim,
		OwnerBalance: result.NewBalance,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// ReopenPoint handles POST /v1/points/{id}/reopen - the owner republishes a
// completed point as a fresh available one.
func (h *PointHandlers) ReopenPoint(w http.ResponseWriter, r *http.Request) {
	pointID := pointPathID(r.URL.Path)
	ownerID := middleware.GetUserID(r.Context())

	fresh, err := h.engine.Reopen(r.Context(), pointID, ownerID)
	if err != nil {
		writeLifecycleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(fresh); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// ListClaims handles GET /v1/points/{id}/claims - the point's claim history,
// newest first.
func (h *PointHandlers) ListClaims(w http.ResponseWriter, r *http.Request) {
	pointID := pointPathID(r.URL.Path)

	if _, err := h.points.GetByID(r.Context(), pointID); err != nil {
		if errors.Is(err, point.ErrPointNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePointNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodePointNotFound, "Collection point not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get point", "point_id", pointID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list claims")
		return
	}

	claims, err := h.claims.ListByPoint(r.Context(), pointID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list claims", "point_id", pointID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list claims")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]any{"claims": claims}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
