package proto

import (
	"encoding/json"

	"github.com/vovakirdan/roomchat/internal/store"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeSubscribe   = "subscribe"
	InboundTypeUnsubscribe = "unsubscribe"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventSnapshot = "snapshot"
)

// SubscribeData starts a live query identified by a client-chosen ID.
type SubscribeData struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Direction  store.Direction `json:"direction,omitempty"`
	Limit      int             `json:"limit,omitempty"`
}

// Query converts the request into a store query.
func (d SubscribeData) Query() store.Query {
	return store.Query{
		Collection: d.Collection,
		Direction:  d.Direction,
		Limit:      d.Limit,
	}
}

// UnsubscribeData ends a live query.
type UnsubscribeData struct {
	ID string `json:"id"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventSnapshotData carries the full result set of a live query.
type EventSnapshotData struct {
	ID   string           `json:"id"`
	Docs []store.Document `json:"docs"`
}

// ErrorData names the subscription an error belongs to, if any.
type ErrorData struct {
	ID string `json:"id,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Error codes.
const (
	CodeBadRequest         = "bad_request"
	CodeInvalidQuery       = "invalid_query"
	CodeUnknownType        = "unknown_type"
	CodeRateLimited        = "rate_limited"
	CodeDuplicateID        = "duplicate_id"
	CodeSubscription       = "subscription_failed"
	CodeUnsupportedVersion = "unsupported_version"
	CodeInternalError      = "internal_error"
)

// Snapshot builds a snapshot event frame.
func Snapshot(id string, docs []store.Document) Outbound {
	if docs == nil {
		docs = []store.Document{}
	}
	return Outbound{
		Type:  OutboundTypeEvent,
		Event: EventSnapshot,
		Data:  EventSnapshotData{ID: id, Docs: docs},
	}
}

// ErrorFrame builds an error frame, optionally tied to subscription id.
func ErrorFrame(id, code, msg string) Outbound {
	out := Outbound{
		Type:  OutboundTypeError,
		Error: &Error{Code: code, Msg: msg},
	}
	if id != "" {
		out.Data = ErrorData{ID: id}
	}
	return out
}

// Error implements error.
func (e *Error) Error() string {
	return e.Code + ": " + e.Msg
}
