package feed

import (
	"log/slog"

	"github.com/ecociclo/ecociclo/internal/message"
	"github.com/ecociclo/ecociclo/internal/point"
	"github.com/ecociclo/ecociclo/internal/profile"
)

// Publisher turns domain transitions into bus envelopes. It implements the
// lifecycle engine's event sink and is also called directly by the presence
// and message handlers. Publish failures are logged and dropped; the feed is
// a cache-invalidation hint, polling remains the source of truth.
type Publisher struct {
	bus    *Bus
	logger *slog.Logger
}

// NewPublisher creates a publisher on the given bus.
func NewPublisher(bus *Bus, logger *slog.Logger) *Publisher {
	return &Publisher{bus: bus, logger: logger}
}

// PointChanged publishes a collection point row change.
func (p *Publisher) PointChanged(kind string, old, new *point.CollectionPoint) {
	p.publish(TablePoints, kind, PointRow(old), PointRow(new))
}

// BalanceChanged publishes the recycler's new balance as a profile update so
// sessions watching the profiles table can react to reward milestones.
func (p *Publisher) BalanceChanged(userID string, balance int) {
	p.publish(TableProfiles, KindUpdate, nil, map[string]any{
		"user_id":      userID,
		"eco_creditos": balance,
	})
}

// PresenceChanged publishes a recycler going online or offline.
func (p *Publisher) PresenceChanged(prof *profile.Profile) {
	p.publish(TableProfiles, KindUpdate, nil, ProfileRow(prof))
}

// MessageSent publishes a newly sent direct message.
func (p *Publisher) MessageSent(m *message.Message) {
	p.publish(TableMessages, KindInsert, nil, MessageRow(m))
}

func (p *Publisher) publish(table, kind string, old, new map[string]any) {
	if p == nil || p.bus == nil {
		return
	}
	if _, err := p.bus.Publish(table, kind, old, new); err != nil {
		p.logger.Warn("failed to publish change event",
			"table", table,
			"kind", kind,
			"error", err)
	}
}
