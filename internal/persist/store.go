// Package persist gives handler code durable side effects without a C
// toolchain: a SQLite-backed key/value table (modernc.org/sqlite, a
// pure-Go driver), wrapped as a value.ForeignRef so it can be passed
// around and stored in Scheme data the same way the teacher passes
// opaque host handles through its HostObject variant
// (pkg/embed/marshaller.go's reflect.Ptr -> HostObject case).
package persist

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// Store is an opaque key/value table backed by a SQLite table, string
// keys to the Write()-form of whatever Value was stored (round-tripped
// through the reader on Get is the caller's responsibility; Store only
// persists text).
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite-backed store at path. Use
// ":memory:" for a store that does not outlive the process, matching
// the teacher's in-memory test fixtures.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Put persists v's written representation under key, overwriting any
// existing entry.
func (s *Store) Put(key string, v value.Value) error {
	_, err := s.db.Exec(
		`INSERT INTO kv(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, v.Write())
	if err != nil {
		return fmt.Errorf("persist: put %q: %w", key, err)
	}
	return nil
}

// Get returns the written representation previously stored under key,
// and false if no entry exists.
func (s *Store) Get(key string) (string, bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("persist: get %q: %w", key, err)
	}
	return raw, true, nil
}

// Delete removes key, a no-op if it is absent.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("persist: delete %q: %w", key, err)
	}
	return nil
}

// Ref wraps s as a value.ForeignRef so it can be bound into a Scheme
// environment via Runtime.Define's host-handler pattern and threaded
// through ordinary Scheme data.
func (s *Store) Ref() *value.ForeignRef {
	return &value.ForeignRef{Native: s, Label: "persist-store"}
}
