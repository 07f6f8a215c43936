package sync

import "sync"

// SnapshotGuard serializes snapshot refetches for one dataset. Every
// refetch takes a ticket before issuing its request; the response is only
// applied if no newer ticket has been issued since, so a slow response can
// never overwrite the result of a later request.
type SnapshotGuard struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
}

// Begin issues a ticket for a new refetch.
func (g *SnapshotGuard) Begin() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.issued++
	return g.issued
}

// Commit reports whether the response for the given ticket is still
// current, and records it as applied if so. Stale responses return false
// and must be discarded.
func (g *SnapshotGuard) Commit(ticket uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ticket != g.issued || ticket <= g.applied {
		return false
	}
	g.applied = ticket
	return true
}
