// Package view holds the lobby and room view models.
//
// View models are not safe for concurrent use. Their fields are read and
// their methods called on a single UI loop; asynchronous results are posted
// back to that loop through Dispatch.
package view

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/roomchat"
	"github.com/vovakirdan/roomchat/internal/session"
)

// Dispatch runs fn on the UI loop.
type Dispatch func(fn func())

// Navigator switches the client to another path.
type Navigator interface {
	Navigate(path string, replace bool)
}

// Rooms is the data-access layer used by the views.
type Rooms interface {
	RoomExists(ctx context.Context, code string) (bool, error)
	CreateRoom(ctx context.Context, preferred string) (string, error)
	SendMessage(ctx context.Context, code, senderName, text string) error
	SubscribeMessages(
		ctx context.Context,
		code string,
		onData func([]roomchat.Message),
		onError func(error),
	) (roomchat.Unsubscribe, error)
}

// DefaultRequestTimeout bounds lobby and room requests when Deps leaves it unset.
const DefaultRequestTimeout = 10 * time.Second

// Deps are the collaborators shared by all views.
type Deps struct {
	Rooms    Rooms
	Session  session.Storage
	Nav      Navigator
	Dispatch Dispatch
	// Timeout bounds each store request. Zero means DefaultRequestTimeout.
	Timeout time.Duration
	Logger  *zerolog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Timeout == 0 {
		d.Timeout = DefaultRequestTimeout
	}
	if d.Logger == nil {
		nop := zerolog.Nop()
		d.Logger = &nop
	}
	return d
}

// User-facing copy.
const (
	msgInvalidName    = "Name must be at least 2 characters."
	msgInvalidCode    = "Room code must be exactly 6 chars A–Z/0–9."
	msgJoinNotFound   = "Room not found. Check the code or create a new room."
	msgRoomNotFound   = "Room not found."
	msgTimeout        = "Request timed out (offline?)"
	msgUnavailable    = "Can't reach the chat server."
	msgCreateFailed   = "Failed to create room."
	msgJoinFailed     = "Failed to join room."
	msgLoadRoomFailed = "Failed to load room."
	msgLoadMsgsFailed = "Failed to load messages."
	msgSendFailed     = "Failed to send."
	msgSomethingWrong = "Something went wrong."
)

// errorMessage turns err into UI copy, falling back to fallback for errors
// that carry no user-facing meaning.
func errorMessage(err error, fallback string) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, roomchat.ErrInvalidName):
		return msgInvalidName
	case errors.Is(err, roomchat.ErrInvalidRoomCode):
		return msgInvalidCode
	case errors.Is(err, roomchat.ErrTimeout):
		return msgTimeout
	case roomchat.Classify(err) == roomchat.KindConnectivity:
		return msgUnavailable
	default:
		return fallback
	}
}
