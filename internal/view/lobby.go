package view

import (
	"context"
	"strings"

	"github.com/vovakirdan/roomchat/internal/roomchat"
	"github.com/vovakirdan/roomchat/internal/router"
	"github.com/vovakirdan/roomchat/internal/session"
)

// Lobby is the view model of the entry page: pick a name, then create or join a room.
type Lobby struct {
	deps Deps

	// Name is the display name as typed.
	Name string
	// Code is the room code input, always normalized and at most six characters.
	Code string
	// Error is the inline error message, empty when there is none.
	Error string
	// Busy is set while a create or join request is in flight.
	Busy bool
}

// NewLobby constructs a lobby and loads the stored session.
func NewLobby(deps Deps) *Lobby {
	l := &Lobby{deps: deps.withDefaults()}
	l.Name = l.deps.Session.Get(session.KeyName)
	l.Code = clampCode(l.deps.Session.Get(session.KeyRoomCode))
	return l
}

// Reconnect re-enters the last room when both a name and a well-formed room
// code are stored. It reports whether it navigated away. A malformed stored
// code is cleared.
func (l *Lobby) Reconnect() bool {
	name := l.deps.Session.Get(session.KeyName)
	stored := l.deps.Session.Get(session.KeyRoomCode)
	if stored == "" {
		return false
	}

	code := roomchat.NormalizeRoomCode(stored)
	if !roomchat.IsValidRoomCode(code) {
		l.deps.Logger.Debug().Str("room", stored).Msg("clearing malformed stored room code")
		l.forget(session.KeyRoomCode)
		l.Code = ""
		return false
	}
	if name == "" {
		return false
	}

	l.deps.Logger.Info().Str("room", code).Msg("reconnecting to last room")
	l.deps.Nav.Navigate(router.RoomPath(code), true)
	return true
}

// SetName updates and persists the display name.
func (l *Lobby) SetName(name string) {
	l.Name = name
	l.remember(session.KeyName, name)
}

// SetCode updates the room code input.
func (l *Lobby) SetCode(code string) {
	l.Code = clampCode(code)
}

// Create allocates a new room and enters it.
func (l *Lobby) Create(ctx context.Context) {
	if l.Busy {
		return
	}
	l.Error = ""
	if !roomchat.IsValidName(l.Name) {
		l.Error = msgInvalidName
		return
	}

	l.Busy = true
	name := strings.TrimSpace(l.Name)
	l.remember(session.KeyName, name)

	go func() {
		code, err := roomchat.WithTimeout(ctx, l.deps.Timeout, func(ctx context.Context) (string, error) {
			return l.deps.Rooms.CreateRoom(ctx, "")
		})
		l.deps.Dispatch(func() {
			defer func() { l.Busy = false }()
			if err != nil {
				l.deps.Logger.Warn().Err(err).Msg("create room failed")
				l.Error = errorMessage(err, msgCreateFailed)
				return
			}
			l.remember(session.KeyRoomCode, code)
			l.deps.Nav.Navigate(router.RoomPath(code), false)
		})
	}()
}

// Join enters an existing room. Unknown rooms are never created.
func (l *Lobby) Join(ctx context.Context) {
	if l.Busy {
		return
	}
	l.Error = ""
	if !roomchat.IsValidName(l.Name) {
		l.Error = msgInvalidName
		return
	}
	code := roomchat.NormalizeRoomCode(l.Code)
	if !roomchat.IsValidRoomCode(code) {
		l.Error = msgInvalidCode
		return
	}

	l.Busy = true
	name := strings.TrimSpace(l.Name)

	go func() {
		exists, err := roomchat.WithTimeout(ctx, l.deps.Timeout, func(ctx context.Context) (bool, error) {
			return l.deps.Rooms.RoomExists(ctx, code)
		})
		l.deps.Dispatch(func() {
			defer func() { l.Busy = false }()
			switch {
			case err != nil:
				l.deps.Logger.Warn().Err(err).Str("room", code).Msg("join room failed")
				l.Error = errorMessage(err, msgJoinFailed)
			case !exists:
				l.Error = msgJoinNotFound
			default:
				l.remember(session.KeyName, name)
				l.remember(session.KeyRoomCode, code)
				l.deps.Nav.Navigate(router.RoomPath(code), false)
			}
		})
	}()
}

func (l *Lobby) remember(key, value string) {
	if err := l.deps.Session.Set(key, value); err != nil {
		l.deps.Logger.Warn().Err(err).Str("key", key).Msg("failed to persist session")
	}
}

func (l *Lobby) forget(key string) {
	if err := l.deps.Session.Remove(key); err != nil {
		l.deps.Logger.Warn().Err(err).Str("key", key).Msg("failed to clear session")
	}
}

func clampCode(code string) string {
	runes := []rune(roomchat.NormalizeRoomCode(code))
	if len(runes) > roomchat.RoomCodeLength {
		runes = runes[:roomchat.RoomCodeLength]
	}
	return string(runes)
}
