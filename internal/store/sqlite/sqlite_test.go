package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vovakirdan/roomchat/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fixedClock returns a clock advancing one second per call.
func fixedClock() func() time.Time {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func mustSnapshot(t *testing.T, sub store.Subscription) store.Snapshot {
	t.Helper()

	select {
	case snap, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("expected snapshot not received")
	}
	return store.Snapshot{}
}

func TestGetSetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	s.now = fixedClock()
	ctx := context.Background()

	if _, err := s.Get(ctx, "rooms/ABC123"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	first, err := s.Set(ctx, "rooms/ABC123", nil)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if first.ID != "ABC123" || first.Path != "rooms/ABC123" || string(first.Data) != "{}" {
		t.Fatalf("unexpected document: %+v", first)
	}

	second, err := s.Set(ctx, "/rooms/ABC123/", json.RawMessage(`{"topic":"x"}`))
	if err != nil {
		t.Fatalf("second set: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at changed on upsert: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("updated_at not advanced: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}

	got, err := s.Get(ctx, "rooms/ABC123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var payload struct {
		Topic string `json:"topic"`
	}
	if err := got.Decode(&payload); err != nil || payload.Topic != "x" {
		t.Fatalf("decode: %+v %v", payload, err)
	}
}

func TestRejectsInvalidInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Set(ctx, "rooms", nil); !errors.Is(err, store.ErrInvalidPath) {
		t.Errorf("set on collection path: expected ErrInvalidPath, got %v", err)
	}
	if _, err := s.Add(ctx, "rooms/ABC123", nil); !errors.Is(err, store.ErrInvalidPath) {
		t.Errorf("add on document path: expected ErrInvalidPath, got %v", err)
	}
	if _, err := s.Add(ctx, "rooms/ABC123/messages", json.RawMessage(`[]`)); !errors.Is(err, store.ErrInvalidData) {
		t.Errorf("add array payload: expected ErrInvalidData, got %v", err)
	}
}

func TestQueryOrdersAndLimits(t *testing.T) {
	s := newTestStore(t)
	s.now = fixedClock()
	ctx := context.Background()

	const collection = "rooms/ABC123/messages"
	for i := range 5 {
		if _, err := s.Add(ctx, collection, json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	// Other collections never leak into results.
	if _, err := s.Add(ctx, "rooms/OTHER1/messages", nil); err != nil {
		t.Fatalf("add other: %v", err)
	}

	tests := []struct {
		name     string
		query    store.Query
		expected []int
	}{
		{
			name:     "ascending all",
			query:    store.Query{Collection: collection},
			expected: []int{0, 1, 2, 3, 4},
		},
		{
			name:     "ascending keeps most recent",
			query:    store.Query{Collection: collection, Limit: 3},
			expected: []int{2, 3, 4},
		},
		{
			name:     "descending",
			query:    store.Query{Collection: collection, Direction: store.Descending, Limit: 2},
			expected: []int{4, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.Query(ctx, tt.query)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(docs) != len(tt.expected) {
				t.Fatalf("expected %d docs, got %d", len(tt.expected), len(docs))
			}
			for i, doc := range docs {
				var payload struct {
					N int `json:"n"`
				}
				if err := doc.Decode(&payload); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if payload.N != tt.expected[i] {
					t.Errorf("expected n=%d at index %d, got %d", tt.expected[i], i, payload.N)
				}
			}
		})
	}
}

func TestQuerySameTimestampUsesInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }
	ctx := context.Background()

	var ids []string
	for range 3 {
		doc, err := s.Add(ctx, "rooms/ABC123/messages", nil)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		ids = append(ids, doc.ID)
	}

	docs, err := s.Query(ctx, store.Query{Collection: "rooms/ABC123/messages"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for i, doc := range docs {
		if doc.ID != ids[i] {
			t.Fatalf("expected %s at %d, got %s", ids[i], i, doc.ID)
		}
	}
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	s := newTestStore(t)
	s.now = fixedClock()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, store.Query{Collection: "rooms/ABC123/messages", Limit: 2})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	initial := mustSnapshot(t, sub)
	if initial.Err != nil || len(initial.Docs) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", initial)
	}

	for i := range 3 {
		if _, err := s.Add(ctx, "rooms/ABC123/messages", json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
			t.Fatalf("add: %v", err)
		}
		snap := mustSnapshot(t, sub)
		want := min(i+1, 2)
		if len(snap.Docs) != want {
			t.Fatalf("after write %d: expected %d docs, got %d", i, want, len(snap.Docs))
		}
	}

	// Writes elsewhere do not wake this subscription.
	if _, err := s.Set(ctx, "rooms/ABC123", nil); err != nil {
		t.Fatalf("set room: %v", err)
	}
	select {
	case snap := <-sub.C():
		t.Fatalf("unexpected snapshot: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeEndsWithContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := s.Subscribe(ctx, store.Query{Collection: "rooms/ABC123/messages"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	mustSnapshot(t, sub)

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.Subscriptions() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription still registered after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, ok := <-sub.C(); ok {
		t.Fatal("expected channel closed")
	}
}

func TestClosedStore(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sub, err := s.Subscribe(context.Background(), store.Query{Collection: "rooms"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	mustSnapshot(t, sub)

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-sub.C(); ok {
		t.Fatal("expected subscription closed with store")
	}
	if _, err := s.Set(context.Background(), "rooms/ABC123", nil); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
