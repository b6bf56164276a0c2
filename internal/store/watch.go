package store

import (
	"sync"
)

// Watcher fans out live-query snapshots to subscribers of a collection.
//
// Each subscription keeps at most one pending snapshot: a newer one replaces
// an undelivered older one, so slow consumers skip straight to current state.
type Watcher struct {
	mu   sync.Mutex
	subs map[string]map[*WatchSubscription]struct{}
}

// NewWatcher constructs an empty watcher.
func NewWatcher() *Watcher {
	return &Watcher{subs: make(map[string]map[*WatchSubscription]struct{})}
}

// WatchSubscription is a Subscription registered with a Watcher.
type WatchSubscription struct {
	query   Query
	watcher *Watcher

	mu     sync.Mutex
	ch     chan Snapshot
	closed bool
}

// Add registers a subscription for q. q must already be normalized.
func (w *Watcher) Add(q Query) *WatchSubscription {
	sub := &WatchSubscription{
		query:   q,
		watcher: w,
		ch:      make(chan Snapshot, 1),
	}

	w.mu.Lock()
	set, ok := w.subs[q.Collection]
	if !ok {
		set = make(map[*WatchSubscription]struct{})
		w.subs[q.Collection] = set
	}
	set[sub] = struct{}{}
	w.mu.Unlock()

	return sub
}

// Subscribers returns the subscriptions currently watching collection.
func (w *Watcher) Subscribers(collection string) []*WatchSubscription {
	w.mu.Lock()
	defer w.mu.Unlock()

	set := w.subs[collection]
	out := make([]*WatchSubscription, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	return out
}

// Count returns the number of active subscriptions.
func (w *Watcher) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, set := range w.subs {
		n += len(set)
	}
	return n
}

// CloseAll closes every subscription.
func (w *Watcher) CloseAll() {
	w.mu.Lock()
	var all []*WatchSubscription
	for _, set := range w.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	w.mu.Unlock()

	for _, sub := range all {
		_ = sub.Close()
	}
}

func (w *Watcher) remove(sub *WatchSubscription) {
	w.mu.Lock()
	defer w.mu.Unlock()

	set, ok := w.subs[sub.query.Collection]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(w.subs, sub.query.Collection)
	}
}

// Query returns the normalized query of the subscription.
func (s *WatchSubscription) Query() Query {
	return s.query
}

// C implements Subscription.
func (s *WatchSubscription) C() <-chan Snapshot {
	return s.ch
}

// Deliver hands a snapshot to the subscriber, replacing any undelivered one.
// It never blocks. Returns false if the subscription is closed.
func (s *WatchSubscription) Deliver(snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
	return true
}

// Close implements Subscription. It is safe to call more than once.
func (s *WatchSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.watcher.remove(s)
	return nil
}
