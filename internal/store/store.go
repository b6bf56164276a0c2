package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidPath is returned for malformed document or collection paths.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidData is returned when a payload is not a JSON object.
	ErrInvalidData = errors.New("document data must be a JSON object")
	// ErrUnavailable wraps transport failures talking to a remote store.
	ErrUnavailable = errors.New("store unavailable")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// Document is a single JSON document addressed by its path.
type Document struct {
	ID        string          `json:"id"`
	Path      string          `json:"path"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"` // server-assigned on first write
	UpdatedAt time.Time       `json:"updated_at"`
}

// Decode unmarshals the document payload into v.
func (d *Document) Decode(v any) error {
	if len(d.Data) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(d.Data, v)
}

// NormalizeData checks that data is a JSON object. Empty data becomes {}.
func NormalizeData(data json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return json.RawMessage("{}"), nil
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, ErrInvalidData
	}
	return json.RawMessage(trimmed), nil
}

// Direction orders query results by creation time.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

const (
	// DefaultLimit applies when a query leaves Limit unset.
	DefaultLimit = 100
	// MaxLimit caps any query.
	MaxLimit = 500
)

// Query selects documents of one collection ordered by CreatedAt.
//
// With a Limit, the most recent Limit documents are selected and then returned
// in the requested Direction.
type Query struct {
	Collection string    `json:"collection"`
	Direction  Direction `json:"direction,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

// Normalize validates the query and fills defaults.
func (q Query) Normalize() (Query, error) {
	if err := ValidateCollectionPath(q.Collection); err != nil {
		return q, err
	}
	q.Collection = CleanPath(q.Collection)
	switch q.Direction {
	case "":
		q.Direction = Ascending
	case Ascending, Descending:
	default:
		return q, errors.New("invalid direction")
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	return q, nil
}

// Snapshot is the full result set of a live query at one point in time.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Subscription delivers snapshots of a live query.
// The channel is closed after Close or when the subscription fails terminally.
type Subscription interface {
	C() <-chan Snapshot
	Close() error
}

// DocumentStore handles document reads and writes.
type DocumentStore interface {
	// Get returns the document at path or ErrNotFound.
	Get(ctx context.Context, path string) (*Document, error)

	// Set creates or replaces the payload of the document at path.
	// CreatedAt of an existing document is kept.
	Set(ctx context.Context, path string, data json.RawMessage) (*Document, error)

	// Add appends a document with a generated ID to the collection.
	Add(ctx context.Context, collection string, data json.RawMessage) (*Document, error)

	// Query runs a one-shot query.
	Query(ctx context.Context, q Query) ([]Document, error)
}

// LiveStore handles realtime queries.
type LiveStore interface {
	// Subscribe starts a live query. The first snapshot is delivered right away,
	// then a fresh one after every write to the collection.
	Subscribe(ctx context.Context, q Query) (Subscription, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	DocumentStore
	LiveStore

	// Close releases the underlying resources.
	Close() error
}
