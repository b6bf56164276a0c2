package roomchat

import (
	"context"
	"errors"
	"net"

	"github.com/vovakirdan/roomchat/internal/store"
)

var (
	// ErrInvalidName is returned for display names shorter than MinNameLength.
	ErrInvalidName = errors.New("name must be at least 2 characters")
	// ErrInvalidRoomCode is returned for codes that are not 6 chars of A-Z/0-9.
	ErrInvalidRoomCode = errors.New("room code must be exactly 6 chars A-Z/0-9")
	// ErrRoomNotFound is returned when a room code has no backing room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrTimeout is returned when an operation loses the timeout race.
	ErrTimeout = errors.New("request timed out (offline?)")
)

// ErrorKind groups failures by how the UI surfaces them.
type ErrorKind int

const (
	// KindUnknown is any failure not covered below.
	KindUnknown ErrorKind = iota
	// KindValidation is a malformed name or room code, reported inline.
	KindValidation
	// KindNotFound is a missing room, a blocking state with a way back to the lobby.
	KindNotFound
	// KindConnectivity is a timeout or transport failure, retryable.
	KindConnectivity
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConnectivity:
		return "connectivity"
	default:
		return "unknown"
	}
}

// Classify maps an error onto its ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidRoomCode):
		return KindValidation
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, store.ErrUnavailable),
		errors.Is(err, store.ErrClosed):
		return KindConnectivity
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnectivity
	}
	return KindUnknown
}

// Retryable reports whether retrying the same operation can succeed.
func Retryable(err error) bool {
	return Classify(err) == KindConnectivity
}
