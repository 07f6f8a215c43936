package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/ecociclo/ecociclo/internal/reward"
)

// BalanceResponse is returned by GET /v1/rewards/balance. MilestoneReached
// is true exactly once per reward milestone: the first read after the
// balance crosses a multiple of reward.RewardStep reports it, later reads
// stay false until the next milestone.
type BalanceResponse struct {
	UserID           string `json:"user_id"`
	Balance          int    `json:"balance"`
	MilestoneReached bool   `json:"milestone_reached"`
}

// RewardHandlers holds dependencies for reward HTTP handlers.
type RewardHandlers struct {
	ledger reward.Ledger

	mu       sync.Mutex
	trackers map[string]*reward.ThresholdTracker
}

// NewRewardHandlers creates a new RewardHandlers instance.
func NewRewardHandlers(ledger reward.Ledger) *RewardHandlers {
	return &RewardHandlers{
		ledger:   ledger,
		trackers: make(map[string]*reward.ThresholdTracker),
	}
}

func (h *RewardHandlers) tracker(userID string) *reward.ThresholdTracker {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.trackers[userID]
	if !ok {
		t = reward.NewThresholdTracker()
		h.trackers[userID] = t
	}
	return t
}

// Balance handles GET /v1/rewards/balance - the caller's EcoCreditos
// balance plus the pending milestone flag. Users with no accruals yet see a
// zero balance.
func (h *RewardHandlers) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, reward.ErrAccountNotFound) {
			balance = 0
		} else {
			slog.ErrorContext(r.Context(), "failed to load balance", "user_id", userID, "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load balance")
			return
		}
	}

	response := BalanceResponse{
		UserID:           userID,
		Balance:          balance,
		MilestoneReached: h.tracker(userID).Check(balance),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
