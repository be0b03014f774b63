package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records in a single SQLite table. Live subscriptions are
// served in-process, so only one process should write to a database file.
type SQLiteStore struct {
	db   *sql.DB
	hub  *hub
	opts options

	mu        sync.Mutex
	revisions map[string]uint64
	closed    bool
}

func OpenSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{
		db:        db,
		hub:       newHub(),
		opts:      buildOptions(opts),
		revisions: make(map[string]uint64),
	}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			doc TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS records_collection_created ON records(collection, created_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Name() string {
	return "sqlite"
}

func (s *SQLiteStore) Append(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}
	doc, err := normalizeData(data)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	id := s.opts.newID()
	createdAt := s.opts.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records(id, collection, created_at, doc) VALUES(?, ?, ?, ?)`,
		id, collection, createdAt.UnixNano(), string(raw))
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	s.revisions[collection]++

	records, err := s.load(context.Background(), collection)
	if err != nil {
		s.hub.fail(collection, err)
		return id, nil
	}
	s.hub.publish(collection, records)
	return id, nil
}

func (s *SQLiteStore) SubscribeOrdered(collection, orderBy string, direction Direction, onChange func([]Record), onError func(error)) Unsubscribe {
	sub := newSubscription(collection, orderBy, direction, onChange, onError)
	if err := validateSubscription(collection, orderBy, direction); err != nil {
		return s.hub.add(sub, event{err: err})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.hub.add(sub, event{err: ErrClosed})
	}
	records, err := s.load(context.Background(), collection)
	if err != nil {
		return s.hub.add(sub, event{err: err})
	}
	return s.hub.add(sub, sub.snapshot(records))
}

func (s *SQLiteStore) QueryWhere(ctx context.Context, collection, field string, value any) ([]Record, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := ValidateField(field); err != nil {
		return nil, err
	}
	want, err := normalizeValue(value)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	path := "$." + field
	var rows *sql.Rows
	switch v := want.(type) {
	case nil:
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, created_at, doc FROM records
			 WHERE collection = ? AND json_type(doc, ?) = 'null'
			 ORDER BY id`, collection, path)
	case bool:
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, created_at, doc FROM records
			 WHERE collection = ? AND json_type(doc, ?) = ?
			 ORDER BY id`, collection, path, boolJSONType(v))
	default:
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, created_at, doc FROM records
			 WHERE collection = ? AND json_extract(doc, ?) = ?
			 ORDER BY id`, collection, path, v)
	}
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	return scanRecords(rows)
}

func boolJSONType(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// load must be called with s.mu held.
func (s *SQLiteStore) load(ctx context.Context, collection string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, doc FROM records WHERE collection = ? ORDER BY created_at, id`, collection)
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", collection, err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			id        string
			createdAt int64
			raw       string
		)
		if err := rows.Scan(&id, &createdAt, &raw); err != nil {
			return nil, err
		}
		data := make(map[string]any)
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
		out = append(out, Record{
			ID:        id,
			CreatedAt: time.Unix(0, createdAt).UTC(),
			Data:      data,
		})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Revision(collection string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revisions[collection]
}

func (s *SQLiteStore) Subscriptions() int {
	return s.hub.count()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.hub.failAll(ErrClosed)
	return s.db.Close()
}
