package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ecociclo/ecociclo/internal/profile"
	"github.com/ecociclo/ecociclo/internal/rating"
)

func TestListOnlineRecyclers(t *testing.T) {
	profiles := profile.NewInMemoryRepository()
	insertRecyclerProfile(t, profiles, "recycler-1")
	insertRecyclerProfile(t, profiles, "recycler-2")

	lat, lng := -12.046, -77.042
	if err := profiles.SetOnline(t.Context(), "recycler-1", true, &lat, &lng); err != nil {
		t.Fatalf("SetOnline failed: %v", err)
	}

	handlers := NewRecyclerHandlers(profiles, rating.NewInMemoryRepository())

	req := asUser(http.MethodGet, "/v1/recyclers/online", nil, "resident-1", profile.RoleResident)
	w := httptest.NewRecorder()
	handlers.ListOnline(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Recyclers []profile.Profile `json:"recyclers"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Recyclers) != 1 {
		t.Fatalf("expected 1 online recycler, got %d", len(resp.Recyclers))
	}
	if resp.Recyclers[0].UserID != "recycler-1" {
		t.Errorf("expected recycler-1, got %s", resp.Recyclers[0].UserID)
	}
	if resp.Recyclers[0].Lat == nil || *resp.Recyclers[0].Lat != lat {
		t.Errorf("expected lat %v, got %v", lat, resp.Recyclers[0].Lat)
	}
}

func TestSetPresence_Online(t *testing.T) {
	profiles := profile.NewInMemoryRepository()
	insertRecyclerProfile(t, profiles, "recycler-1")
	handlers := NewRecyclerHandlers(profiles, rating.NewInMemoryRepository())

	lat, lng := -12.046, -77.042
	req := asUser(http.MethodPost, "/v1/recyclers/presence", PresenceRequest{
		Online: true,
		Lat:    &lat,
		Lng:    &lng,
	}, "recycler-1", profile.RoleRecycler)

	w := httptest.NewRecorder()
	handlers.SetPresence(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", w.Code, w.Body.String())
	}

	prof, err := profiles.GetByUserID(t.Context(), "recycler-1")
	if err != nil {
		t.Fatalf("GetByUserID failed: %v", err)
	}
	if !prof.Online {
		t.Error("expected recycler to be online")
	}
}

func TestSetPresence_Offline(t *testing.T) {
	profiles := profile.NewInMemoryRepository()
	insertRecyclerProfile(t, profiles, "recycler-1")
	lat, lng := -12.046, -77.042
	if err := profiles.SetOnline(t.Context(), "recycler-1", true, &lat, &lng); err != nil {
		t.Fatalf("SetOnline failed: %v", err)
	}
	handlers := NewRecyclerHandlers(profiles, rating.NewInMemoryRepository())

	req := asUser(http.MethodPost, "/v1/recyclers/presence", PresenceRequest{Online: false}, "recycler-1", profile.RoleRecycler)
	w := httptest.NewRecorder()
	handlers.SetPresence(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", w.Code, w.Body.String())
	}

	prof, err := profiles.GetByUserID(t.Context(), "recycler-1")
	if err != nil {
		t.Fatalf("GetByUserID failed: %v", err)
	}
	if prof.Online {
		t.Error("expected recycler to be offline")
	}
}

func TestSetPresence_RequiresBothCoordinates(t *testing.T) {
	profiles := profile.NewInMemoryRepository()
	insertRecyclerProfile(t, profiles, "recycler-1")
	handlers := NewRecyclerHandlers(profiles, rating.NewInMemoryRepository())

	lat := -12.046
	req := asUser(http.MethodPost, "/v1/recyclers/presence", PresenceRequest{
		Online: true,
		Lat:    &lat,
	}, "recycler-1", profile.RoleRecycler)

	w := httptest.NewRecorder()
	handlers.SetPresence(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
	if code := decodeErrorCode(t, w); code != ErrCodeValidation {
		t.Errorf("expected error code %s, got %s", ErrCodeValidation, code)
	}
}

func TestRatingSummary(t *testing.T) {
	profiles := profile.NewInMemoryRepository()
	ratings := rating.NewInMemoryRepository()
	handlers := NewRecyclerHandlers(profiles, ratings)

	for _, score := range []int{5, 4} {
		if err := ratings.Insert(t.Context(), &rating.Rating{
			RecyclerID: "recycler-1",
			RaterID:    "resident-1",
			Score:      score,
		}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	req := asUser(http.MethodGet, "/v1/recyclers/recycler-1/ratings", nil, "resident-1", profile.RoleResident)
	w := httptest.NewRecorder()
	handlers.RatingSummary(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp RatingSummaryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.RecyclerID != "recycler-1" {
		t.Errorf("recycler_id = %q, want recycler-1", resp.RecyclerID)
	}
	if resp.Average != 4.5 {
		t.Errorf("average = %v, want 4.5", resp.Average)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
}

func TestRatingSummary_NoRatings(t *testing.T) {
	handlers := NewRecyclerHandlers(profile.NewInMemoryRepository(), rating.NewInMemoryRepository())

	req := asUser(http.MethodGet, "/v1/recyclers/recycler-1/ratings", nil, "resident-1", profile.RoleResident)
	w := httptest.NewRecorder()
	handlers.RatingSummary(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp RatingSummaryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Average != 0 || resp.Total != 0 {
		t.Errorf("expected empty summary, got %+v", resp)
	}
}
