// Package feed carries row-level change events from the server to connected
// clients over WebSocket, CBOR-encoded and sequence-numbered so consumers
// can discard stale or out-of-order data.
package feed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Change kinds.
const (
	KindInsert = "insert"
	KindUpdate = "update"
	KindDelete = "delete"
)

// Tables published on the feed.
const (
	TablePoints   = "collection_points"
	TableProfiles = "profiles"
	TableMessages = "messages"
)

// Subscription statuses reported to consumers.
const (
	StatusSubscribed = "subscribed"
	StatusError      = "error"
	StatusTimedOut   = "timed_out"
	StatusClosed     = "closed"
)

// Envelope is a single change event. Seq increases monotonically per feed
// server; consumers drop envelopes whose Seq is not greater than the last
// one they applied.
type Envelope struct {
	Seq   uint64          `cbor:"seq"`
	Table string          `cbor:"table"`
	Kind  string          `cbor:"kind"`
	Old   cbor.RawMessage `cbor:"old,omitempty"`
	New   cbor.RawMessage `cbor:"new,omitempty"`
}

// ErrInvalidFilter is returned when a filter expression cannot be parsed.
var ErrInvalidFilter = errors.New("invalid filter expression")

// Filter narrows a subscription to rows matching a column equality, written
// as "column=eq.value". The zero Filter matches every row.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter parses a filter expression of the form "column=eq.value".
func ParseFilter(expr string) (Filter, error) {
	if expr == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(expr, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("%w: %q", ErrInvalidFilter, expr)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return Filter{}, fmt.Errorf("%w: unsupported operator in %q", ErrInvalidFilter, expr)
	}
	return Filter{Column: column, Value: value}, nil
}

// String renders the filter back to its expression form.
func (f Filter) String() string {
	if f.Column == "" {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Match reports whether a row satisfies the filter. Rows are evaluated
// against the new payload for inserts and updates and the old payload for
// deletes.
func (f Filter) Match(row map[string]any) bool {
	if f.Column == "" {
		return true
	}
	v, ok := row[f.Column]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == f.Value
}
