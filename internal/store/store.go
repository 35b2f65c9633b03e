// Package store provides SQLite persistence for vertigo: the last fetched
// feed pages per kind (so a restart shows content immediately), watch
// impressions queued while offline, and small persisted preferences.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/davecarlow/vertigo/internal/api"
	"github.com/davecarlow/vertigo/internal/feed"
)

// Store handles SQLite persistence. Concrete type, not an interface.
// All methods are safe for concurrent use via the internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// PendingImpression is a queued impression with its row id for deletion
// after a successful flush.
type PendingImpression struct {
	ID int64
	api.Impression
}

// Open creates a Store at dbPath, creating tables as needed. File-based
// databases run in WAL mode.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feed_cache (
		kind TEXT NOT NULL,
		position INTEGER NOT NULL,
		item_json TEXT NOT NULL,
		cached_at DATETIME NOT NULL,
		PRIMARY KEY (kind, position)
	);

	CREATE TABLE IF NOT EXISTS impressions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id TEXT NOT NULL,
		watched_seconds REAL NOT NULL,
		completed INTEGER NOT NULL,
		recorded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveFeed replaces the cached item sequence for a feed kind.
func (s *Store) SaveFeed(kind feed.Kind, items []feed.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM feed_cache WHERE kind = ?", string(kind)); err != nil {
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO feed_cache (kind, position, item_json, cached_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for i, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode item %s: %w", item.ID, err)
		}
		if _, err := stmt.Exec(string(kind), i, string(data), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadFeed returns the cached item sequence for a feed kind, in position
// order. Rows that fail to decode are skipped rather than failing the load.
func (s *Store) LoadFeed(kind feed.Kind) ([]feed.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT item_json FROM feed_cache WHERE kind = ? ORDER BY position", string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []feed.Item
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var item feed.Item
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// QueueImpression persists an impression that could not be delivered.
func (s *Store) QueueImpression(imp api.Impression) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO impressions (item_id, watched_seconds, completed, recorded_at) VALUES (?, ?, ?, ?)",
		imp.ItemID, imp.WatchedSeconds, boolToInt(imp.Completed), imp.RecordedAt)
	return err
}

// PendingImpressions returns all queued impressions in insertion order.
func (s *Store) PendingImpressions() ([]PendingImpression, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, item_id, watched_seconds, completed, recorded_at FROM impressions ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []PendingImpression
	for rows.Next() {
		var p PendingImpression
		var completed int
		if err := rows.Scan(&p.ID, &p.ItemID, &p.WatchedSeconds, &completed, &p.RecordedAt); err != nil {
			return nil, err
		}
		p.Completed = completed != 0
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// DeleteImpression removes a flushed impression by row id.
func (s *Store) DeleteImpression(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM impressions WHERE id = ?", id)
	return err
}

// SetPref persists a small string preference.
func (s *Store) SetPref(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO prefs (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// GetPref returns a persisted preference, or fallback when unset.
func (s *Store) GetPref(key, fallback string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	return value, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
