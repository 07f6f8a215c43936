package feed

import (
	"sync"
	"sync/atomic"
)

// Bus is an in-process change broker. The server publishes each committed
// row change once; the WebSocket hub and tests consume envelopes through
// subscriptions. Sequence numbers are assigned at publish time.
type Bus struct {
	seq uint64

	mu   sync.RWMutex
	subs map[*BusSubscription]struct{}
}

// BusSubscription receives envelopes for one table and filter.
type BusSubscription struct {
	bus    *Bus
	table  string
	filter Filter
	ch     chan *Envelope

	closeOnce sync.Once
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*BusSubscription]struct{})}
}

// Publish assigns the next sequence number and delivers the envelope to
// every matching subscription. Slow subscribers are skipped rather than
// blocking the publisher.
func (b *Bus) Publish(table, kind string, old, new map[string]any) (*Envelope, error) {
	e := &Envelope{
		Seq:   atomic.AddUint64(&b.seq, 1),
		Table: table,
		Kind:  kind,
	}
	var err error
	if old != nil {
		if e.Old, err = EncodeRow(old); err != nil {
			return nil, err
		}
	}
	if new != nil {
		if e.New, err = EncodeRow(new); err != nil {
			return nil, err
		}
	}

	row := new
	if kind == KindDelete {
		row = old
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if sub.table != e.Table {
			continue
		}
		if row != nil && !sub.filter.Match(row) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
	return e, nil
}

// Subscribe registers a subscription for one table and filter.
func (b *Bus) Subscribe(table string, filter Filter) *BusSubscription {
	sub := &BusSubscription{
		bus:    b,
		table:  table,
		filter: filter,
		ch:     make(chan *Envelope, 64),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Events returns the subscription's delivery channel.
func (s *BusSubscription) Events() <-chan *Envelope {
	return s.ch
}

// Close removes the subscription from the bus.
func (s *BusSubscription) Close() {
	s.closeOnce.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}
