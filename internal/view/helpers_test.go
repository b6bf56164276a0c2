package view

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vovakirdan/roomchat/internal/roomchat"
	"github.com/vovakirdan/roomchat/internal/session"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

// uiLoop is a single-threaded stand-in for the terminal event loop.
type uiLoop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

func newUILoop() *uiLoop {
	return &uiLoop{wake: make(chan struct{}, 1)}
}

func (l *uiLoop) Dispatch(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *uiLoop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()
		fn()
	}
}

// runUntil runs queued work on the calling goroutine until cond holds.
func (l *uiLoop) runUntil(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		l.drain()
		if cond() {
			return
		}
		select {
		case <-l.wake:
		case <-deadline:
			t.Fatal("condition not met before deadline")
		}
	}
}

// settle runs queued work for d.
func (l *uiLoop) settle(d time.Duration) {
	deadline := time.After(d)
	for {
		l.drain()
		select {
		case <-l.wake:
		case <-deadline:
			l.drain()
			return
		}
	}
}

type navigation struct {
	path    string
	replace bool
}

type navRecorder struct {
	navs []navigation
}

func (n *navRecorder) Navigate(path string, replace bool) {
	n.navs = append(n.navs, navigation{path: path, replace: replace})
}

func (n *navRecorder) last() (navigation, bool) {
	if len(n.navs) == 0 {
		return navigation{}, false
	}
	return n.navs[len(n.navs)-1], true
}

// fakeRooms counts calls and lets tests replace individual operations.
// Operations without a hook go to the wrapped client.
type fakeRooms struct {
	inner Rooms
	calls atomic.Int32

	exists func(ctx context.Context, code string) (bool, error)
	create func(ctx context.Context, preferred string) (string, error)
	send   func(ctx context.Context, code, senderName, text string) error
}

func (f *fakeRooms) RoomExists(ctx context.Context, code string) (bool, error) {
	f.calls.Add(1)
	if f.exists != nil {
		return f.exists(ctx, code)
	}
	return f.inner.RoomExists(ctx, code)
}

func (f *fakeRooms) CreateRoom(ctx context.Context, preferred string) (string, error) {
	f.calls.Add(1)
	if f.create != nil {
		return f.create(ctx, preferred)
	}
	return f.inner.CreateRoom(ctx, preferred)
}

func (f *fakeRooms) SendMessage(ctx context.Context, code, senderName, text string) error {
	f.calls.Add(1)
	if f.send != nil {
		return f.send(ctx, code, senderName, text)
	}
	return f.inner.SendMessage(ctx, code, senderName, text)
}

func (f *fakeRooms) SubscribeMessages(
	ctx context.Context,
	code string,
	onData func([]roomchat.Message),
	onError func(error),
) (roomchat.Unsubscribe, error) {
	f.calls.Add(1)
	return f.inner.SubscribeMessages(ctx, code, onData, onError)
}

type harness struct {
	loop    *uiLoop
	nav     *navRecorder
	session *session.MemoryStore
	store   *sqlite.SQLiteStore
	client  *roomchat.Client
	rooms   *fakeRooms
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	client := roomchat.NewClient(st, roomchat.Config{}, nil)
	return &harness{
		loop:    newUILoop(),
		nav:     &navRecorder{},
		session: session.NewMemoryStore(),
		store:   st,
		client:  client,
		rooms:   &fakeRooms{inner: client},
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Rooms:    h.rooms,
		Session:  h.session,
		Nav:      h.nav,
		Dispatch: h.loop.Dispatch,
		Timeout:  time.Second,
	}
}
