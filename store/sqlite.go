package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/transitops/trafficwatch/model"
	"github.com/transitops/trafficwatch/scheduler"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS quota_snapshots (
	source_id   TEXT PRIMARY KEY,
	calls_today INTEGER NOT NULL,
	window_date TEXT NOT NULL,
	last_call_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS blobs (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
`

const feedKey = "last_feed"

// Store wraps a SQLite database connection with write serialization.
type Store struct {
	conn    *sql.DB
	writeMu sync.Mutex // SQLite supports one writer at a time
}

// Open opens (creating if needed) the state database with WAL mode enabled.
func Open(path string) (*Store, error) {
	dsn := path + "?_journal=WAL&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.conn.Close() }

// SaveQuota upserts one source's quota snapshot.
func (s *Store) SaveQuota(sourceID string, snap scheduler.Snapshot) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Exec(`
		INSERT INTO quota_snapshots (source_id, calls_today, window_date, last_call_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			calls_today = excluded.calls_today,
			window_date = excluded.window_date,
			last_call_at = excluded.last_call_at`,
		sourceID, snap.CallsToday, snap.WindowDate, snap.LastCallAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save quota snapshot: %w", err)
	}
	return nil
}

// LoadQuotas returns all persisted quota snapshots keyed by source id.
func (s *Store) LoadQuotas() (map[string]scheduler.Snapshot, error) {
	rows, err := s.conn.Query(`SELECT source_id, calls_today, window_date, last_call_at FROM quota_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("load quota snapshots: %w", err)
	}
	defer rows.Close()
	out := map[string]scheduler.Snapshot{}
	for rows.Next() {
		var id, windowDate, lastCall string
		var calls int
		if err := rows.Scan(&id, &calls, &windowDate, &lastCall); err != nil {
			return nil, fmt.Errorf("scan quota snapshot: %w", err)
		}
		t, _ := time.Parse(time.RFC3339, lastCall)
		out[id] = scheduler.Snapshot{CallsToday: calls, WindowDate: windowDate, LastCallAt: t}
	}
	return out, rows.Err()
}

// SaveFeed stores the published feed as a JSON blob.
func (s *Store) SaveFeed(feed model.Feed) error {
	data, err := json.Marshal(feed)
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.conn.Exec(`
		INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		feedKey, data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save feed: %w", err)
	}
	return nil
}

// LoadFeed returns the most recently stored feed. The second return is false
// when no feed has been stored yet.
func (s *Store) LoadFeed() (model.Feed, bool, error) {
	var data []byte
	err := s.conn.QueryRow(`SELECT value FROM blobs WHERE key = ?`, feedKey).Scan(&data)
	if err == sql.ErrNoRows {
		return model.Feed{}, false, nil
	}
	if err != nil {
		return model.Feed{}, false, fmt.Errorf("load feed: %w", err)
	}
	var feed model.Feed
	if err := json.Unmarshal(data, &feed); err != nil {
		return model.Feed{}, false, fmt.Errorf("unmarshal feed: %w", err)
	}
	return feed, true, nil
}
