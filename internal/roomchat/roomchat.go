package roomchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/store"
)

const (
	// RoomCodeLength is the number of characters in a room code.
	RoomCodeLength = 6
	// RoomCodeAlphabet is the set of characters a room code is drawn from.
	RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// MinNameLength is the minimum trimmed display name length.
	MinNameLength = 2
	// DefaultMessageLimit caps the live message feed of a room.
	DefaultMessageLimit = 100

	roomsCollection    = "rooms"
	messagesCollection = "messages"
)

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// NormalizeRoomCode trims and upper-cases user input.
func NormalizeRoomCode(input string) string {
	return strings.ToUpper(strings.TrimSpace(input))
}

// IsValidRoomCode reports whether code is exactly 6 chars of A-Z/0-9.
func IsValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

// IsValidName reports whether the trimmed name is long enough.
func IsValidName(name string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(name)) >= MinNameLength
}

// GenerateRoomCode returns a random room code.
func GenerateRoomCode() string {
	var b strings.Builder
	b.Grow(RoomCodeLength)
	for range RoomCodeLength {
		b.WriteByte(RoomCodeAlphabet[rand.IntN(len(RoomCodeAlphabet))])
	}
	return b.String()
}

// RoomPath returns the store path of a room document.
func RoomPath(code string) string {
	return store.Join(roomsCollection, code)
}

// MessagesPath returns the store path of a room's message collection.
func MessagesPath(code string) string {
	return store.Join(roomsCollection, code, messagesCollection)
}

// Message is a chat message as delivered by the live feed.
type Message struct {
	ID         string
	SenderName string
	Text       string
	CreatedAt  time.Time
}

type messagePayload struct {
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
}

// Config tunes a Client.
type Config struct {
	MessageLimit int
}

// Client is the data-access layer over the document store.
type Client struct {
	store   store.Store
	limit   int
	log     *zerolog.Logger
	newCode func() string
}

// NewClient constructs a client over st.
func NewClient(st store.Store, cfg Config, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	limit := cfg.MessageLimit
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	return &Client{
		store:   st,
		limit:   limit,
		log:     logger,
		newCode: GenerateRoomCode,
	}
}

// RoomExists checks whether a room document exists for code.
func (c *Client) RoomExists(ctx context.Context, code string) (bool, error) {
	_, err := c.store.Get(ctx, RoomPath(code))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("check room %s: %w", code, err)
	}
}

// CreateRoom allocates a free room code and creates the room.
//
// The preferred code is tried first when non-empty. On collision a fresh code
// is generated, without bound, until ctx ends. The check and the write are not
// atomic: two callers racing on one code both succeed and share the room.
func (c *Client) CreateRoom(ctx context.Context, preferred string) (string, error) {
	code := NormalizeRoomCode(preferred)
	switch {
	case code == "":
		code = c.newCode()
	case !IsValidRoomCode(code):
		return "", ErrInvalidRoomCode
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		exists, err := c.RoomExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			if _, err := c.store.Set(ctx, RoomPath(code), json.RawMessage("{}")); err != nil {
				return "", fmt.Errorf("create room %s: %w", code, err)
			}
			c.log.Info().Str("room", code).Int("attempts", attempt).Msg("room created")
			return code, nil
		}

		c.log.Debug().Str("room", code).Msg("room code taken, regenerating")
		code = c.newCode()
	}
}

// SendMessage appends a message to the room. Blank text is ignored.
func (c *Client) SendMessage(ctx context.Context, code, senderName, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	data, err := json.Marshal(messagePayload{SenderName: senderName, Text: trimmed})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, err := c.store.Add(ctx, MessagesPath(code), data); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Unsubscribe stops a message subscription. It is safe to call more than once.
type Unsubscribe func()

// SubscribeMessages opens a live feed of the newest messages of a room in
// ascending creation order. onData receives every snapshot as a whole list.
// onError receives snapshot errors and an unexpected end of the feed.
//
// A callback already in flight may still run after Unsubscribe returns, so
// callers that tear down state must also ignore late callbacks.
func (c *Client) SubscribeMessages(
	ctx context.Context,
	code string,
	onData func([]Message),
	onError func(error),
) (Unsubscribe, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub, err := c.store.Subscribe(subCtx, store.Query{
		Collection: MessagesPath(code),
		Direction:  store.Ascending,
		Limit:      c.limit,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to room %s: %w", code, err)
	}

	var stopped atomic.Bool
	reportErr := func(err error) {
		if onError != nil && !stopped.Load() {
			onError(err)
		}
	}

	go func() {
		for snap := range sub.C() {
			if stopped.Load() {
				continue
			}
			if snap.Err != nil {
				reportErr(snap.Err)
				continue
			}
			msgs := c.decodeMessages(code, snap.Docs)
			if onData != nil && !stopped.Load() {
				onData(msgs)
			}
		}
		if subCtx.Err() == nil {
			reportErr(fmt.Errorf("message feed ended: %w", store.ErrUnavailable))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			cancel()
			_ = sub.Close()
			c.log.Debug().Str("room", code).Msg("message feed closed")
		})
	}, nil
}

// decodeMessages keeps every document in the window. A field of the wrong
// type is left empty and a document that is not an object is dropped, so one
// bad write cannot take down the feed for the whole room.
func (c *Client) decodeMessages(code string, docs []store.Document) []Message {
	msgs := make([]Message, 0, len(docs))
	for i := range docs {
		var fields map[string]json.RawMessage
		if err := docs[i].Decode(&fields); err != nil {
			c.log.Warn().Err(err).Str("room", code).Str("message_id", docs[i].ID).Msg("skipping undecodable message")
			continue
		}
		msgs = append(msgs, Message{
			ID:         docs[i].ID,
			SenderName: c.stringField(code, docs[i].ID, fields, "senderName"),
			Text:       c.stringField(code, docs[i].ID, fields, "text"),
			CreatedAt:  docs[i].CreatedAt,
		})
	}
	return msgs
}

func (c *Client) stringField(code, id string, fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		c.log.Warn().Err(err).Str("room", code).Str("message_id", id).Str("field", name).Msg("ignoring malformed message field")
		return ""
	}
	return v
}
