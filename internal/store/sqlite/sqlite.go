package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/utils"
)

// Schema is applied by New. Timestamps are unix nanoseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	path       TEXT    NOT NULL UNIQUE,
	parent     TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	data       TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents(parent, created_at DESC, seq DESC);
`

// SQLiteStore implements store.Store for SQLite with in-process live queries.
type SQLiteStore struct {
	db      *sql.DB
	watcher *store.Watcher
	now     func() time.Time

	// writeMu orders writes and the snapshots they trigger.
	writeMu sync.Mutex
	closed  bool
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file, or ":memory:".
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single connection: SQLite works best that way and ":memory:" needs it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{
		db:      db,
		watcher: store.NewWatcher(),
		now:     time.Now,
	}, nil
}

// Close closes live subscriptions and the database connection.
func (s *SQLiteStore) Close() error {
	s.writeMu.Lock()
	if s.closed {
		s.writeMu.Unlock()
		return nil
	}
	s.closed = true
	s.writeMu.Unlock()

	s.watcher.CloseAll()
	return s.db.Close()
}

// Subscriptions returns the number of active live queries.
func (s *SQLiteStore) Subscriptions() int {
	return s.watcher.Count()
}

// ==== DocumentStore implementation ====

// Get retrieves the document at path.
func (s *SQLiteStore) Get(ctx context.Context, path string) (*store.Document, error) {
	if err := store.ValidateDocumentPath(path); err != nil {
		return nil, err
	}

	query := `
		SELECT id, path, data, created_at, updated_at
		FROM documents
		WHERE path = ?
	`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, store.CleanPath(path)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get %s: %w", path, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query document: %w", err)
	}
	return doc, nil
}

// Set creates or replaces the document payload, keeping CreatedAt of an existing document.
func (s *SQLiteStore) Set(ctx context.Context, path string, data json.RawMessage) (*store.Document, error) {
	collection, id, err := store.SplitDocumentPath(path)
	if err != nil {
		return nil, err
	}
	payload, err := store.NormalizeData(data)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	now := s.now().UnixNano()
	query := `
		INSERT INTO documents (path, parent, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`
	cleaned := store.CleanPath(path)
	if _, err := s.db.ExecContext(ctx, query, cleaned, collection, id, string(payload), now, now); err != nil {
		return nil, fmt.Errorf("upsert document: %w", err)
	}

	doc, err := s.Get(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, collection)
	return doc, nil
}

// Add appends a document with a generated ID to the collection.
func (s *SQLiteStore) Add(ctx context.Context, collection string, data json.RawMessage) (*store.Document, error) {
	if err := store.ValidateCollectionPath(collection); err != nil {
		return nil, err
	}
	payload, err := store.NormalizeData(data)
	if err != nil {
		return nil, err
	}
	collection = store.CleanPath(collection)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	id := utils.NewID()
	path := store.Join(collection, id)
	now := s.now().UnixNano()
	query := `
		INSERT INTO documents (path, parent, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, path, collection, id, string(payload), now, now); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	doc, err := s.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, collection)
	return doc, nil
}

// Query runs a one-shot query: the most recent q.Limit documents, in q.Direction order.
func (s *SQLiteStore) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	return s.runQuery(ctx, q)
}

func (s *SQLiteStore) runQuery(ctx context.Context, q store.Query) ([]store.Document, error) {
	query := `
		SELECT id, path, data, created_at, updated_at
		FROM documents
		WHERE parent = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, q.Collection, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]store.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if q.Direction == store.Ascending {
		for i := range len(docs) / 2 {
			docs[i], docs[len(docs)-1-i] = docs[len(docs)-1-i], docs[i]
		}
	}
	return docs, nil
}

// ==== LiveStore implementation ====

type subscription struct {
	*store.WatchSubscription
	stop func() bool
}

func (s *subscription) Close() error {
	s.stop()
	return s.WatchSubscription.Close()
}

// Subscribe registers a live query. The subscription ends when ctx is done or Close is called.
func (s *SQLiteStore) Subscribe(ctx context.Context, q store.Query) (store.Subscription, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	docs, err := s.runQuery(ctx, q)
	if err != nil {
		return nil, err
	}

	ws := s.watcher.Add(q)
	ws.Deliver(store.Snapshot{Docs: docs})

	return &subscription{
		WatchSubscription: ws,
		stop:              context.AfterFunc(ctx, func() { _ = ws.Close() }),
	}, nil
}

// notify pushes fresh snapshots to subscribers of collection. Caller holds writeMu.
func (s *SQLiteStore) notify(ctx context.Context, collection string) {
	for _, sub := range s.watcher.Subscribers(collection) {
		docs, err := s.runQuery(context.WithoutCancel(ctx), sub.Query())
		if err != nil {
			sub.Deliver(store.Snapshot{Err: err})
			continue
		}
		sub.Deliver(store.Snapshot{Docs: docs})
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*store.Document, error) {
	var (
		doc       store.Document
		data      string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&doc.ID, &doc.Path, &data, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Data = json.RawMessage(data)
	doc.CreatedAt = time.Unix(0, createdAt).UTC()
	doc.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &doc, nil
}
