package view

import (
	"testing"
	"time"

	"github.com/vovakirdan/roomchat/internal/roomchat"
)

func TestGroupMessages(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC)
	msg := func(id, sender string, minute int) roomchat.Message {
		return roomchat.Message{
			ID:         id,
			SenderName: sender,
			Text:       "text " + id,
			CreatedAt:  base.Add(time.Duration(minute) * time.Minute),
		}
	}

	msgs := []roomchat.Message{
		msg("1", "alice", 0),
		msg("2", "alice", 1),
		msg("3", "bob", 2),
		msg("4", "", 3),
		msg("5", "", 4),
		msg("6", "alice", 60),
	}

	groups := GroupMessages(msgs, time.UTC)
	want := []struct {
		sender string
		time   string
		ids    []string
	}{
		{sender: "alice", time: "09:05", ids: []string{"1", "2"}},
		{sender: "bob", time: "09:07", ids: []string{"3"}},
		{sender: UnknownSender, time: "09:08", ids: []string{"4", "5"}},
		{sender: "alice", time: "10:05", ids: []string{"6"}},
	}

	if len(groups) != len(want) {
		t.Fatalf("expected %d groups, got %d", len(want), len(groups))
	}
	for i, g := range groups {
		if g.Sender != want[i].sender || g.Time != want[i].time {
			t.Errorf("group %d header = %s %s, want %s %s", i, g.Sender, g.Time, want[i].sender, want[i].time)
		}
		if len(g.Messages) != len(want[i].ids) {
			t.Fatalf("group %d has %d messages, want %d", i, len(g.Messages), len(want[i].ids))
		}
		for j, m := range g.Messages {
			if m.ID != want[i].ids[j] {
				t.Errorf("group %d message %d = %s, want %s", i, j, m.ID, want[i].ids[j])
			}
		}
	}
}

func TestGroupMessagesEdgeCases(t *testing.T) {
	if groups := GroupMessages(nil, nil); len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}

	groups := GroupMessages([]roomchat.Message{{ID: "1", SenderName: "x"}}, time.UTC)
	if groups[0].Time != "" {
		t.Fatalf("zero timestamp rendered as %q", groups[0].Time)
	}
}

func TestScrollTracker(t *testing.T) {
	s := NewScrollTracker()

	// Scrolled far up before anything arrived: the first snapshot still scrolls.
	s.Observe(0, 10, 100)
	if !s.OnSnapshot() {
		t.Fatal("first snapshot must scroll")
	}

	s.Observe(0, 10, 100)
	if s.OnSnapshot() {
		t.Fatal("scrolled up: should not scroll")
	}

	s.Observe(87, 10, 100)
	if !s.NearBottom() || !s.OnSnapshot() {
		t.Fatal("within threshold: should scroll")
	}

	s.Observe(86, 10, 100)
	if s.NearBottom() {
		t.Fatal("beyond threshold counted as bottom")
	}

	s.Reset()
	if !s.OnSnapshot() {
		t.Fatal("reset tracker must scroll on next snapshot")
	}
}
