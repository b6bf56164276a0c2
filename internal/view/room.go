package view

import (
	"context"
	"errors"
	"strings"

	"github.com/vovakirdan/roomchat/internal/roomchat"
	"github.com/vovakirdan/roomchat/internal/router"
	"github.com/vovakirdan/roomchat/internal/session"
)

// Status is the load state of a room.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// Room is the view model of a chat room page.
type Room struct {
	deps Deps

	// Code is the normalized room code from the route.
	Code string
	// Name is the stored display name.
	Name   string
	Status Status
	// Error describes StatusError.
	Error     string
	ErrorKind roomchat.ErrorKind
	// Messages is the latest snapshot, in delivery order.
	Messages []roomchat.Message

	// Text is the composer input.
	Text string
	// SendError is a composer-scoped failure. It never changes Status.
	SendError string
	Sending   bool

	// ScrollToBottom is set by each snapshot that should move the list to the end.
	ScrollToBottom bool
	Scroll         *ScrollTracker

	mount *mount
}

// mount is the lifetime of one boot. cancelled is only touched on the UI loop.
type mount struct {
	cancelled bool
	cancel    context.CancelFunc
	unsub     roomchat.Unsubscribe
}

func (m *mount) stop() {
	m.cancelled = true
	m.cancel()
	if m.unsub != nil {
		m.unsub()
	}
}

// NewRoom constructs a room view. Call Mount to start it.
func NewRoom(deps Deps) *Room {
	return &Room{
		deps:   deps.withDefaults(),
		Status: StatusLoading,
		Scroll: NewScrollTracker(),
	}
}

// Mount starts the room for the raw route code. Without a stored display name
// it redirects to the lobby and reports false.
func (r *Room) Mount(ctx context.Context, rawCode string) bool {
	r.Unmount()

	r.Name = r.deps.Session.Get(session.KeyName)
	if r.Name == "" {
		r.deps.Nav.Navigate(router.LobbyPath, true)
		return false
	}

	r.Code = roomchat.NormalizeRoomCode(rawCode)
	if r.Code != "" {
		r.remember(session.KeyRoomCode, r.Code)
	}

	r.boot(ctx)
	return true
}

// Unmount tears down the subscription. Late callbacks of the mount are ignored.
func (r *Room) Unmount() {
	if r.mount != nil {
		r.mount.stop()
		r.mount = nil
	}
}

// CanRetry reports whether Retry may recover the current error.
func (r *Room) CanRetry() bool {
	return r.Status == StatusError && r.ErrorKind == roomchat.KindConnectivity
}

// Retry boots the room again after a connectivity failure.
func (r *Room) Retry(ctx context.Context) {
	if !r.CanRetry() {
		return
	}
	r.Unmount()
	r.boot(ctx)
}

// Leave forgets the room and returns to the lobby.
func (r *Room) Leave() {
	r.Unmount()
	r.forget(session.KeyRoomCode)
	r.deps.Nav.Navigate(router.LobbyPath, true)
}

// ComposerEnabled reports whether messages can be typed and sent.
func (r *Room) ComposerEnabled() bool {
	return r.Status == StatusReady || r.Status == StatusEmpty
}

// SetText updates the composer input.
func (r *Room) SetText(text string) {
	r.Text = text
}

// Send posts the composer text. On success the text is cleared; on failure
// it is kept and SendError is set.
func (r *Room) Send(ctx context.Context) {
	if !r.ComposerEnabled() || r.Sending || strings.TrimSpace(r.Text) == "" {
		return
	}
	m := r.mount
	if m == nil {
		return
	}

	r.Sending = true
	r.SendError = ""
	text := r.Text
	code, name := r.Code, r.Name

	go func() {
		err := roomchat.Do(ctx, r.deps.Timeout, func(ctx context.Context) error {
			return r.deps.Rooms.SendMessage(ctx, code, name, text)
		})
		r.deps.Dispatch(func() {
			if m.cancelled {
				return
			}
			r.Sending = false
			if err != nil {
				r.deps.Logger.Warn().Err(err).Str("room", code).Msg("send failed")
				r.SendError = errorMessage(err, msgSendFailed)
				return
			}
			if r.Text == text {
				r.Text = ""
			}
		})
	}()
}

// ErrorMessage returns the text to show for StatusError.
func (r *Room) ErrorMessage() string {
	if r.Error == "" {
		return msgSomethingWrong
	}
	return r.Error
}

func (r *Room) boot(parent context.Context) {
	r.Status = StatusLoading
	r.Error = ""
	r.ErrorKind = roomchat.KindUnknown
	r.Messages = nil
	r.SendError = ""
	r.Sending = false
	r.ScrollToBottom = false
	r.Scroll.Reset()

	if !roomchat.IsValidRoomCode(r.Code) {
		r.fail(roomchat.ErrInvalidRoomCode, msgInvalidCode)
		r.forget(session.KeyRoomCode)
		return
	}

	ctx, cancel := context.WithCancel(parent)
	m := &mount{cancel: cancel}
	r.mount = m
	code := r.Code

	go func() {
		exists, err := roomchat.WithTimeout(ctx, r.deps.Timeout, func(ctx context.Context) (bool, error) {
			return r.deps.Rooms.RoomExists(ctx, code)
		})
		if err == nil && !exists {
			err = roomchat.ErrRoomNotFound
		}
		if err != nil {
			r.deps.Dispatch(func() {
				if m.cancelled {
					return
				}
				r.deps.Logger.Warn().Err(err).Str("room", code).Msg("room boot failed")
				if errors.Is(err, roomchat.ErrRoomNotFound) {
					r.fail(err, msgRoomNotFound)
					r.forget(session.KeyRoomCode)
					return
				}
				r.fail(err, errorMessage(err, msgLoadRoomFailed))
			})
			return
		}

		unsub, err := r.deps.Rooms.SubscribeMessages(ctx, code,
			func(msgs []roomchat.Message) {
				r.deps.Dispatch(func() {
					if !m.cancelled {
						r.applySnapshot(msgs)
					}
				})
			},
			func(err error) {
				r.deps.Dispatch(func() {
					if m.cancelled {
						return
					}
					r.deps.Logger.Warn().Err(err).Str("room", code).Msg("message feed failed")
					r.fail(err, errorMessage(err, msgLoadMsgsFailed))
				})
			},
		)
		r.deps.Dispatch(func() {
			if err != nil {
				if !m.cancelled {
					r.fail(err, errorMessage(err, msgLoadRoomFailed))
				}
				return
			}
			if m.cancelled {
				unsub()
				return
			}
			m.unsub = unsub
		})
	}()
}

func (r *Room) applySnapshot(msgs []roomchat.Message) {
	r.Messages = msgs
	if len(msgs) > 0 {
		r.Status = StatusReady
	} else {
		r.Status = StatusEmpty
	}
	r.Error = ""
	r.ErrorKind = roomchat.KindUnknown
	r.ScrollToBottom = r.Scroll.OnSnapshot()
}

func (r *Room) fail(err error, msg string) {
	r.Status = StatusError
	r.Error = msg
	r.ErrorKind = roomchat.Classify(err)
}

func (r *Room) remember(key, value string) {
	if err := r.deps.Session.Set(key, value); err != nil {
		r.deps.Logger.Warn().Err(err).Str("key", key).Msg("failed to persist session")
	}
}

func (r *Room) forget(key string) {
	if err := r.deps.Session.Remove(key); err != nil {
		r.deps.Logger.Warn().Err(err).Str("key", key).Msg("failed to clear session")
	}
}
