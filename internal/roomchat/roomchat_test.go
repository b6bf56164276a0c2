package roomchat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

func newTestClient(t *testing.T) (*Client, *sqlite.SQLiteStore) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return NewClient(st, Config{}, nil), st
}

func TestGenerateRoomCode(t *testing.T) {
	for range 1000 {
		code := GenerateRoomCode()
		if len(code) != RoomCodeLength {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(RoomCodeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
		if !IsValidRoomCode(code) {
			t.Fatalf("generated code %q fails validation", code)
		}
	}
}

func TestValidation(t *testing.T) {
	codes := map[string]bool{
		"ABC123":  true,
		"000000":  true,
		"abc123":  false,
		"ABC12":   false,
		"ABC1234": false,
		"ABC-12":  false,
		"":        false,
	}
	for code, want := range codes {
		if got := IsValidRoomCode(code); got != want {
			t.Errorf("IsValidRoomCode(%q) = %v, want %v", code, got, want)
		}
	}

	names := map[string]bool{
		"Ed":     true,
		" Ed ":   true,
		"E":      false,
		"  E   ": false,
		"":       false,
		"Зо":     true,
	}
	for name, want := range names {
		if got := IsValidName(name); got != want {
			t.Errorf("IsValidName(%q) = %v, want %v", name, got, want)
		}
	}

	if got := NormalizeRoomCode("  ab12cd \n"); got != "AB12CD" {
		t.Errorf("NormalizeRoomCode = %q", got)
	}
}

func TestCreateRoomAndExists(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	code, err := client.CreateRoom(ctx, "")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if !IsValidRoomCode(code) {
		t.Fatalf("invalid code %q", code)
	}

	exists, err := client.RoomExists(ctx, code)
	if err != nil || !exists {
		t.Fatalf("expected room %s to exist, got %v %v", code, exists, err)
	}

	exists, err = client.RoomExists(ctx, "ZZZZZZ")
	if err != nil || exists {
		t.Fatalf("expected ZZZZZZ to be missing, got %v %v", exists, err)
	}
}

func TestCreateRoomRetriesOnCollision(t *testing.T) {
	client, st := newTestClient(t)
	ctx := context.Background()

	for _, taken := range []string{"AAAAAA", "BBBBBB"} {
		if _, err := st.Set(ctx, RoomPath(taken), nil); err != nil {
			t.Fatalf("seed %s: %v", taken, err)
		}
	}

	candidates := []string{"BBBBBB", "CCCCCC"}
	client.newCode = func() string {
		next := candidates[0]
		candidates = candidates[1:]
		return next
	}

	code, err := client.CreateRoom(ctx, "aaaaaa")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if code != "CCCCCC" {
		t.Fatalf("expected CCCCCC after two collisions, got %s", code)
	}
}

func TestCreateRoomRejectsMalformedPreferred(t *testing.T) {
	client, _ := newTestClient(t)
	if _, err := client.CreateRoom(context.Background(), "AB"); !errors.Is(err, ErrInvalidRoomCode) {
		t.Fatalf("expected ErrInvalidRoomCode, got %v", err)
	}
}

func TestCreateRoomStopsOnCancel(t *testing.T) {
	client, st := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := st.Set(ctx, RoomPath("AAAAAA"), nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Every candidate collides; only cancellation ends the loop.
	calls := 0
	client.newCode = func() string {
		calls++
		if calls == 3 {
			cancel()
		}
		return "AAAAAA"
	}

	if _, err := client.CreateRoom(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type feed struct {
	mu   sync.Mutex
	data [][]Message
	errs []error
}

func (f *feed) onData(msgs []Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = append(f.data, msgs)
}

func (f *feed) onError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *feed) waitFor(t *testing.T, cond func(data [][]Message, errs []error) bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		ok := cond(f.data, f.errs)
		f.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSubscribeAndSend(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	code, err := client.CreateRoom(ctx, "ROOM01")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	f := &feed{}
	unsubscribe, err := client.SubscribeMessages(ctx, code, f.onData, f.onError)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	f.waitFor(t, func(data [][]Message, _ []error) bool { return len(data) == 1 && len(data[0]) == 0 })

	if err := client.SendMessage(ctx, code, "alice", "  hello  "); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := client.SendMessage(ctx, code, "alice", "   "); err != nil {
		t.Fatalf("blank send: %v", err)
	}
	if err := client.SendMessage(ctx, code, "bob", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}

	f.waitFor(t, func(data [][]Message, _ []error) bool {
		return len(data) > 0 && len(data[len(data)-1]) == 2
	})

	f.mu.Lock()
	last := f.data[len(f.data)-1]
	f.mu.Unlock()
	if last[0].SenderName != "alice" || last[0].Text != "hello" {
		t.Fatalf("unexpected first message: %+v", last[0])
	}
	if last[1].SenderName != "bob" || last[1].Text != "hi" {
		t.Fatalf("unexpected second message: %+v", last[1])
	}
	if last[0].CreatedAt.After(last[1].CreatedAt) {
		t.Fatalf("messages out of order: %v > %v", last[0].CreatedAt, last[1].CreatedAt)
	}
}

func TestSubscribeToleratesMalformedMessage(t *testing.T) {
	client, st := newTestClient(t)
	ctx := context.Background()

	code, err := client.CreateRoom(ctx, "ROOM02")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := client.SendMessage(ctx, code, "alice", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := st.Add(ctx, MessagesPath(code), []byte(`{"senderName":"mallory","text":5}`)); err != nil {
		t.Fatalf("add malformed: %v", err)
	}

	f := &feed{}
	unsubscribe, err := client.SubscribeMessages(ctx, code, f.onData, f.onError)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	f.waitFor(t, func(data [][]Message, errs []error) bool { return len(data) > 0 || len(errs) > 0 })

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		t.Fatalf("malformed message failed the feed: %v", f.errs)
	}
	msgs := f.data[0]
	if len(msgs) != 2 {
		t.Fatalf("expected both messages, got %+v", msgs)
	}
	if msgs[0].SenderName != "alice" || msgs[0].Text != "hello" {
		t.Fatalf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].SenderName != "mallory" || msgs[1].Text != "" {
		t.Fatalf("expected malformed text left empty, got %+v", msgs[1])
	}
}

func TestSubscribeCapsToMostRecent(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()
	client := NewClient(st, Config{MessageLimit: 3}, nil)
	ctx := context.Background()

	for _, text := range []string{"1", "2", "3", "4", "5"} {
		if err := client.SendMessage(ctx, "ROOM01", "alice", text); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	f := &feed{}
	unsubscribe, err := client.SubscribeMessages(ctx, "ROOM01", f.onData, f.onError)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	f.waitFor(t, func(data [][]Message, _ []error) bool { return len(data) == 1 })
	got := f.data[0]
	if len(got) != 3 || got[0].Text != "3" || got[2].Text != "5" {
		t.Fatalf("expected most recent three in ascending order, got %+v", got)
	}
}

func TestUnsubscribeStopsCallbacks(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	f := &feed{}
	unsubscribe, err := client.SubscribeMessages(ctx, "ROOM01", f.onData, f.onError)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	f.waitFor(t, func(data [][]Message, _ []error) bool { return len(data) == 1 })

	unsubscribe()
	unsubscribe()

	if err := client.SendMessage(ctx, "ROOM01", "alice", "late"); err != nil {
		t.Fatalf("send: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.data) != 1 {
		t.Fatalf("expected no snapshots after unsubscribe, got %d", len(f.data))
	}
	if len(f.errs) != 0 {
		t.Fatalf("expected no errors after unsubscribe, got %v", f.errs)
	}
}

func TestFeedEndReportsConnectivityError(t *testing.T) {
	client, st := newTestClient(t)

	f := &feed{}
	unsubscribe, err := client.SubscribeMessages(context.Background(), "ROOM01", f.onData, f.onError)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()
	f.waitFor(t, func(data [][]Message, _ []error) bool { return len(data) == 1 })

	_ = st.Close()

	f.waitFor(t, func(_ [][]Message, errs []error) bool { return len(errs) == 1 })
	if !errors.Is(f.errs[0], store.ErrUnavailable) || !Retryable(f.errs[0]) {
		t.Fatalf("expected retryable unavailable error, got %v", f.errs[0])
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
	}{
		{err: ErrInvalidName, kind: KindValidation},
		{err: ErrInvalidRoomCode, kind: KindValidation},
		{err: ErrRoomNotFound, kind: KindNotFound},
		{err: store.ErrNotFound, kind: KindNotFound},
		{err: ErrTimeout, kind: KindConnectivity},
		{err: errors.Join(errors.New("dial"), store.ErrUnavailable), kind: KindConnectivity},
		{err: context.DeadlineExceeded, kind: KindConnectivity},
		{err: errors.New("boom"), kind: KindUnknown},
		{err: nil, kind: KindUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.kind {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.kind)
		}
	}
}
