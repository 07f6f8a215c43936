package lifecycle

import (
	"testing"
	"time"

	"github.com/ecociclo/ecociclo/internal/point"
)

func TestStateOf(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		status string
		pickup *time.Time
		want   string
	}{
		{"available", point.StatusAvailable, nil, point.StatusAvailable},
		{"claimed future pickup", point.StatusClaimed, &future, point.StatusClaimed},
		{"claimed past pickup", point.StatusClaimed, &past, StateDelayed},
		{"claimed no pickup", point.StatusClaimed, nil, point.StatusClaimed},
		{"completed past pickup", point.StatusCompleted, &past, point.StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &point.CollectionPoint{Status: tt.status, PickupTime: tt.pickup}
			if got := StateOf(p, now); got != tt.want {
				t.Errorf("StateOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
