package view

import (
	"time"

	"github.com/vovakirdan/roomchat/internal/roomchat"
)

// UnknownSender labels messages without a sender name.
const UnknownSender = "Unknown"

// MessageGroup is a run of consecutive messages from one sender.
type MessageGroup struct {
	Sender   string
	Time     string // HH:MM of the first message
	Messages []roomchat.Message
}

// GroupMessages groups consecutive messages by sender, keeping delivery order.
// Times are rendered in loc, or local time when loc is nil.
func GroupMessages(msgs []roomchat.Message, loc *time.Location) []MessageGroup {
	if loc == nil {
		loc = time.Local
	}

	var groups []MessageGroup
	for _, msg := range msgs {
		if n := len(groups); n > 0 && groups[n-1].key() == msg.SenderName {
			groups[n-1].Messages = append(groups[n-1].Messages, msg)
			continue
		}
		groups = append(groups, MessageGroup{
			Sender:   senderLabel(msg.SenderName),
			Time:     formatTime(msg.CreatedAt, loc),
			Messages: []roomchat.Message{msg},
		})
	}
	return groups
}

func (g MessageGroup) key() string {
	return g.Messages[0].SenderName
}

func senderLabel(name string) string {
	if name == "" {
		return UnknownSender
	}
	return name
}

func formatTime(ts time.Time, loc *time.Location) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(loc).Format("15:04")
}
