package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ecociclo/ecociclo/internal/claim"
	"github.com/ecociclo/ecociclo/internal/lifecycle"
	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/ecociclo/ecociclo/internal/point"
)

// StatsMonths is the size of the rolling window, in calendar months,
// covered by GET /v1/stats.
const StatsMonths = 12

// StatsResponse is returned by GET /v1/stats: a year of activity on the
// authenticated user's collection points, bucketed by calendar month
// ("2026-08"). Claims are counted by their effective state at serve time;
// a claim past its pickup time counts as delayed, not claimed. Bundles
// track completed pickups.
type StatsResponse struct {
	Months         []string                  `json:"months"`
	PointsCreated  map[string]int            `json:"points_created"`
	ClaimsByState  map[string]map[string]int `json:"claims_by_state"`
	BundlesByMonth map[string]int            `json:"bundles_by_month"`
}

// StatsHandlers holds dependencies for the statistics HTTP handlers.
type StatsHandlers struct {
	points point.Repository
	claims claim.Repository
	now    func() time.Time
}

// NewStatsHandlers creates a new StatsHandlers instance.
func NewStatsHandlers(points point.Repository, claims claim.Repository) *StatsHandlers {
	return &StatsHandlers{points: points, claims: claims, now: time.Now}
}

const monthKey = "2006-01"

// Overview handles GET /v1/stats - monthly counts of the caller's created
// points and of the claims made against them.
func (h *StatsHandlers) Overview(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	now := h.now()

	owned, err := h.points.ListByOwner(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list points for stats", "user_id", userID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load statistics")
		return
	}
	claims, err := h.claims.ListByOwner(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list claims for stats", "user_id", userID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load statistics")
		return
	}

	months := make([]string, 0, StatsMonths)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(StatsMonths - 1), 0)
	for i := 0; i < StatsMonths; i++ {
		months = append(months, first.AddDate(0, i, 0).Format(monthKey))
	}

	response := StatsResponse{
		Months:        months,
		PointsCreated: make(map[string]int),
		ClaimsByState: map[string]map[string]int{
			claim.StatusClaimed:    make(map[string]int),
			claim.StatusCompleted:  make(map[string]int),
			claim.StatusCancelled:  make(map[string]int),
			lifecycle.StateDelayed: make(map[string]int),
		},
		BundlesByMonth: make(map[string]int),
	}

	for _, dp := range owned {
		response.PointsCreated[dp.Point.CreatedAt.Format(monthKey)]++
	}
	for _, c := range claims {
		m := c.ClaimedAt.Format(monthKey)
		if bucket, ok := response.ClaimsByState[claimState(&c, now)]; ok {
			bucket[m]++
		}
		if c.Status == claim.StatusCompleted {
			response.BundlesByMonth[m]++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// claimState maps a claim to its effective state. An active claim whose
// pickup time has passed counts as delayed.
func claimState(c *claim.Claim, now time.Time) string {
	if c.Status == claim.StatusClaimed && c.PickupTime != nil && c.PickupTime.Before(now) {
		return lifecycle.StateDelayed
	}
	return c.Status
}
