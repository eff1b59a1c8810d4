// Package localstore holds the client-resident copy of the dataset and the
// client's sync scalars in a small SQLite key/value file.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lherron/hmp/internal/db"
	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/mode"
)

// Keys of the kv table. The feco.* names are shared with existing client
// installations.
const (
	KeyDocument    = "hmp.v1"
	KeyLegacy      = "hmp.config.v1"
	KeyAccessToken = "feco.accessToken"
	KeyLastSyncAt  = "feco.lastSyncAt"
	KeyMode        = "feco.mode"
	KeyAPIBase     = "feco.apiBase"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// Store is the client document store. One Store is opened per process and
// shared by reference; it is safe for concurrent use.
type Store struct {
	db  *db.DB
	now func() time.Time

	mu  sync.Mutex
	doc *legacy.Document
}

// Open opens (creating if needed) the local store at path.
func Open(path string) (*Store, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create local store schema: %w", err)
	}
	return &Store{db: database, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock replaces the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, domain.FormatTime(s.now()))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) del(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) persist(ctx context.Context, doc *legacy.Document) error {
	data, err := legacy.Encode(doc)
	if err != nil {
		return err
	}
	return s.put(ctx, KeyDocument, string(data))
}

// ensureLoaded loads the document once. Callers hold s.mu.
func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.doc == nil {
		doc, err := s.load(ctx)
		if err != nil {
			return err
		}
		s.doc = doc
	}
	s.doc.Normalize()

	if s.doc.FoldIncidents() {
		s.doc.Touch(s.now())
		return s.persist(ctx, s.doc)
	}
	return nil
}

// load reads the versioned document, else migrates the pre-versioning one,
// else starts a fresh dataset. Only migrated and fresh documents are
// written back; a stored versioned document is left byte for byte.
func (s *Store) load(ctx context.Context) (*legacy.Document, error) {
	raw, ok, err := s.get(ctx, KeyDocument)
	if err != nil {
		return nil, err
	}
	if ok {
		if doc, err := legacy.Decode([]byte(raw)); err == nil && doc.Version != 0 {
			doc.Normalize()
			return doc, nil
		}
	}

	old, ok, err := s.get(ctx, KeyLegacy)
	if err != nil {
		return nil, err
	}
	if ok {
		if prev, err := legacy.Decode([]byte(old)); err == nil {
			migrated := legacy.MigrateLegacy(prev, s.now())
			return migrated, s.persist(ctx, migrated)
		}
	}

	fresh := legacy.New(s.now())
	return fresh, s.persist(ctx, fresh)
}

// Load returns a copy of the current document.
func (s *Store) Load(ctx context.Context) (*legacy.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return legacy.Clone(s.doc)
}

// Snapshot returns a copy of the current document together with its
// encoding, as sent to the server.
func (s *Store) Snapshot(ctx context.Context) (*legacy.Document, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, nil, err
	}
	data, err := legacy.Encode(s.doc)
	if err != nil {
		return nil, nil, err
	}
	doc, err := legacy.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// Mutate applies fn to the document, stamps updatedAt and persists. The
// document is unchanged when fn fails.
func (s *Store) Mutate(ctx context.Context, fn func(*legacy.Document) error) (*legacy.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	next, err := legacy.Clone(s.doc)
	if err != nil {
		return nil, err
	}
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Normalize()
	next.Touch(s.now())
	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}
	s.doc = next
	return legacy.Clone(next)
}

// Replace stores a document pulled from the server as is; updatedAt is
// not restamped.
func (s *Store) Replace(ctx context.Context, doc *legacy.Document) error {
	next, err := legacy.Clone(doc)
	if err != nil {
		return err
	}
	next.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

// Raw returns the persisted document bytes, or nil when nothing has been
// stored yet.
func (s *Store) Raw(ctx context.Context) ([]byte, error) {
	raw, ok, err := s.get(ctx, KeyDocument)
	if err != nil || !ok {
		return nil, err
	}
	return []byte(raw), nil
}

// UpdatedAt returns the document's updatedAt stamp.
func (s *Store) UpdatedAt(ctx context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return time.Time{}, false, err
	}
	t, ok := s.doc.UpdatedTime()
	return t, ok, nil
}

// AccessToken returns the stored access token, or "".
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	v, _, err := s.get(ctx, KeyAccessToken)
	return strings.TrimSpace(v), err
}

// SetAccessToken stores the access token. An empty token removes it.
func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.del(ctx, KeyAccessToken)
	}
	return s.put(ctx, KeyAccessToken, token)
}

// LastSyncAt returns the time of the last successful sync.
func (s *Store) LastSyncAt(ctx context.Context) (time.Time, bool, error) {
	v, ok, err := s.get(ctx, KeyLastSyncAt)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, ok := domain.ParseTime(v)
	return t, ok, nil
}

// SetLastSyncAt records a successful sync.
func (s *Store) SetLastSyncAt(ctx context.Context, t time.Time) error {
	return s.put(ctx, KeyLastSyncAt, domain.FormatTime(t))
}

// StoredMode returns the stored mode preference, or "".
func (s *Store) StoredMode(ctx context.Context) (string, error) {
	v, _, err := s.get(ctx, KeyMode)
	return v, err
}

// SetStoredMode stores the mode preference.
func (s *Store) SetStoredMode(ctx context.Context, m mode.Mode) error {
	return s.put(ctx, KeyMode, string(m))
}

// APIBase returns the stored API base URL, or "".
func (s *Store) APIBase(ctx context.Context) (string, error) {
	v, _, err := s.get(ctx, KeyAPIBase)
	return v, err
}

// SetAPIBase stores the API base URL without trailing slashes.
func (s *Store) SetAPIBase(ctx context.Context, base string) error {
	return s.put(ctx, KeyAPIBase, strings.TrimRight(strings.TrimSpace(base), "/"))
}

// SetRaw writes a value under key verbatim. Used to seed older client
// states.
func (s *Store) SetRaw(ctx context.Context, key, value string) error {
	return s.put(ctx, key, value)
}
