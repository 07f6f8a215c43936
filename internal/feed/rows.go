package feed

import (
	"github.com/ecociclo/ecociclo/internal/message"
	"github.com/ecociclo/ecociclo/internal/point"
	"github.com/ecociclo/ecociclo/internal/profile"
)

// Row builders for the published tables. Rows carry the columns consumers
// filter and react on; snapshot refetches fill in the rest.

// PointRow converts a collection point to a feed row. Returns nil for nil.
func PointRow(p *point.CollectionPoint) map[string]any {
	if p == nil {
		return nil
	}
	row := map[string]any{
		"id":       p.ID,
		"user_id":  p.UserID,
		"district": p.District,
		"status":   p.Status,
	}
	if p.RecyclerID != nil {
		row["recycler_id"] = *p.RecyclerID
	}
	return row
}

// ProfileRow converts a profile to a feed row. Returns nil for nil.
func ProfileRow(p *profile.Profile) map[string]any {
	if p == nil {
		return nil
	}
	return map[string]any{
		"id":      p.ID,
		"user_id": p.UserID,
		"role":    p.Role,
		"online":  p.Online,
	}
}

// MessageRow converts a message to a feed row. Returns nil for nil.
func MessageRow(m *message.Message) map[string]any {
	if m == nil {
		return nil
	}
	return map[string]any{
		"id":          m.ID,
		"sender_id":   m.SenderID,
		"receiver_id": m.ReceiverID,
	}
}
