package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("user_id=eq.abc-123")
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	if f.Column != "user_id" || f.Value != "abc-123" {
		t.Errorf("got %+v, want user_id=eq.abc-123", f)
	}
	if f.String() != "user_id=eq.abc-123" {
		t.Errorf("String() = %q", f.String())
	}
}

func TestParseFilterEmpty(t *testing.T) {
	f, err := ParseFilter("")
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	if f.Column != "" {
		t.Error("empty expression should yield match-all filter")
	}
}

func TestParseFilterInvalid(t *testing.T) {
	for _, expr := range []string{"user_id", "=eq.x", "user_id=gt.5"} {
		if _, err := ParseFilter(expr); !errors.Is(err, ErrInvalidFilter) {
			t.Errorf("ParseFilter(%q) error = %v, want ErrInvalidFilter", expr, err)
		}
	}
}

func TestFilterMatch(t *testing.T) {
	f := Filter{Column: "status", Value: "available"}

	if !f.Match(map[string]any{"status": "available"}) {
		t.Error("matching row should match")
	}
	if f.Match(map[string]any{"status": "claimed"}) {
		t.Error("non-matching row should not match")
	}
	if f.Match(map[string]any{"other": "available"}) {
		t.Error("row without column should not match")
	}
	if !(Filter{}).Match(map[string]any{"anything": 1}) {
		t.Error("zero filter should match everything")
	}
}

func TestEnvelopeCodec(t *testing.T) {
	row, err := EncodeRow(map[string]any{"id": "p1", "status": "claimed"})
	if err != nil {
		t.Fatalf("EncodeRow failed: %v", err)
	}
	e := &Envelope{Seq: 42, Table: TablePoints, Kind: KindUpdate, New: row}

	data, err := EncodeEnvelope(e)
	if err != nil {
		t.Fatalf("EncodeEnvelope failed: %v", err)
	}
	decoded, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}
	if decoded.Seq != 42 || decoded.Table != TablePoints || decoded.Kind != KindUpdate {
		t.Errorf("decoded = %+v", decoded)
	}
	got, err := decoded.Row()
	if err != nil {
		t.Fatalf("Row failed: %v", err)
	}
	if got["status"] != "claimed" {
		t.Errorf("row status = %v, want claimed", got["status"])
	}
}

func TestDecodeEnvelopeEmpty(t *testing.T) {
	if _, err := DecodeEnvelope(nil); !errors.Is(err, ErrInvalidEnvelope) {
		t.Errorf("error = %v, want ErrInvalidEnvelope", err)
	}
}

func TestBusSequenceMonotonic(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TablePoints, Filter{})
	defer sub.Close()

	var last uint64
	for i := 0; i < 5; i++ {
		e, err := bus.Publish(TablePoints, KindInsert, nil, map[string]any{"id": i})
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		if e.Seq <= last {
			t.Errorf("seq %d not greater than previous %d", e.Seq, last)
		}
		last = e.Seq
	}
}

func TestBusFiltersSubscribers(t *testing.T) {
	bus := NewBus()
	mine := bus.Subscribe(TablePoints, Filter{Column: "user_id", Value: "u1"})
	defer mine.Close()
	other := bus.Subscribe(TablePoints, Filter{Column: "user_id", Value: "u2"})
	defer other.Close()
	messages := bus.Subscribe(TableMessages, Filter{})
	defer messages.Close()

	if _, err := bus.Publish(TablePoints, KindInsert, nil, map[string]any{"id": "p1", "user_id": "u1"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case e := <-mine.Events():
		if e.Kind != KindInsert {
			t.Errorf("kind = %q", e.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("matching subscriber received nothing")
	}

	select {
	case e := <-other.Events():
		t.Errorf("filtered-out subscriber received %+v", e)
	default:
	}
	select {
	case e := <-messages.Events():
		t.Errorf("other-table subscriber received %+v", e)
	default:
	}
}

func TestBusDeleteMatchesOldRow(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TablePoints, Filter{Column: "user_id", Value: "u1"})
	defer sub.Close()

	if _, err := bus.Publish(TablePoints, KindDelete, map[string]any{"id": "p1", "user_id": "u1"}, nil); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case e := <-sub.Events():
		if e.Kind != KindDelete {
			t.Errorf("kind = %q, want delete", e.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("delete envelope not delivered")
	}
}

type fixedBackoff struct {
	delay    time.Duration
	attempts int
}

func (b fixedBackoff) Delay(attempt int) time.Duration { return b.delay }
func (b fixedBackoff) MaxAttempts() int                { return b.attempts }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientReceivesEnvelopes(t *testing.T) {
	bus := NewBus()
	server := httptest.NewServer(NewHub(bus, discardLogger()))
	defer server.Close()

	received := make(chan *Envelope, 1)
	client, err := NewClient(ClientConfig{
		URL:     "ws" + strings.TrimPrefix(server.URL, "http"),
		Table:   TablePoints,
		Filter:  Filter{Column: "user_id", Value: "u1"},
		Backoff: fixedBackoff{delay: 10 * time.Millisecond, attempts: 3},
	}, func(e *Envelope) error {
		received <- e
		return nil
	}, nil, discardLogger())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(done)
	}()

	// Wait for the subscription to land on the hub before publishing.
	deadline := time.After(2 * time.Second)
	for !client.IsConnected() {
		select {
		case <-deadline:
			t.Fatal("client never connected")
		case <-time.After(10 * time.Millisecond):
		}
	}
	// Publish until the subscription delivers; the hub registers the
	// subscription shortly after the handshake completes.
	for {
		if _, err := bus.Publish(TablePoints, KindInsert, nil, map[string]any{"id": "p1", "user_id": "u1"}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		select {
		case e := <-received:
			if e.Table != TablePoints || e.Kind != KindInsert {
				t.Errorf("envelope = %+v", e)
			}
			cancel()
			<-done
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("envelope never delivered")
		}
	}
}

func TestClientExhaustsAttempts(t *testing.T) {
	client, err := NewClient(ClientConfig{
		URL:     "ws://127.0.0.1:1", // nothing listens here
		Table:   TablePoints,
		Backoff: fixedBackoff{delay: time.Millisecond, attempts: 2},
	}, nil, nil, discardLogger())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	var statuses []string
	client.status = func(s string) { statuses = append(statuses, s) }

	err = client.Run(context.Background())
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Run error = %v, want ErrAttemptsExhausted", err)
	}
	if len(statuses) == 0 || statuses[len(statuses)-1] != StatusTimedOut {
		t.Errorf("statuses = %v, want trailing %q", statuses, StatusTimedOut)
	}
}

func TestClientConfigValidate(t *testing.T) {
	cfg := ClientConfig{}
	if err := cfg.Validate(); err == nil {
		t.Error("empty config should fail validation")
	}
	cfg = ClientConfig{URL: "ws://x", Table: TablePoints, Backoff: fixedBackoff{}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config failed: %v", err)
	}
}
