// Package storage persists deals, their temperature history, outcomes, the
// tunable system config, and the subscriber roster in SQLite.
//
// All timestamps are stored as Unix seconds (UTC) and converted at the edges.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// Store wraps the database handle. All methods are safe for concurrent use;
// SQLite serializes writers and WAL keeps readers unblocked.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS deals (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	url             TEXT NOT NULL UNIQUE,
	title           TEXT NOT NULL DEFAULT '',
	merchant        TEXT NOT NULL DEFAULT '',
	image_url       TEXT NOT NULL DEFAULT '',
	max_seen_rating INTEGER NOT NULL DEFAULT 0,
	is_active       INTEGER NOT NULL DEFAULT 1,
	activity_status TEXT NOT NULL DEFAULT 'active',
	created_at      INTEGER NOT NULL,
	last_tracked_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_deals_created ON deals(created_at);
CREATE INDEX IF NOT EXISTS idx_deals_active_tracked ON deals(is_active, last_tracked_at);

CREATE TABLE IF NOT EXISTS deal_history (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	deal_id            INTEGER NOT NULL REFERENCES deals(id),
	temperature        REAL NOT NULL DEFAULT 0,
	velocity           REAL NOT NULL DEFAULT 0,
	viral_score        REAL NOT NULL DEFAULT 0,
	hours_since_posted REAL NOT NULL DEFAULT 0,
	source             TEXT NOT NULL DEFAULT 'hunter',
	recorded_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deal_history_deal_hours ON deal_history(deal_id, hours_since_posted);

CREATE TABLE IF NOT EXISTS deal_outcomes (
	deal_id          INTEGER PRIMARY KEY REFERENCES deals(id),
	final_max_temp   REAL NOT NULL DEFAULT 0,
	reached_200      INTEGER NOT NULL DEFAULT 0,
	reached_500      INTEGER NOT NULL DEFAULT 0,
	reached_1000     INTEGER NOT NULL DEFAULT 0,
	time_to_200_mins REAL,
	updated_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS system_config (
	key        TEXT PRIMARY KEY,
	value      REAL NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subscribers (
	chat_id    TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
`

// Seed values for a fresh database. Existing rows always win.
var defaultConfig = map[string]float64{
	"viral_threshold":       50.0,
	"min_seed_temp":         15.0,
	"score_tier_4":          500.0,
	"score_tier_3":          200.0,
	"score_tier_2":          100.0,
	"cold_freeze_hours":     2.0,
	"cold_freeze_temp":      150.0,
	"velocity_instant_kill": 4.0,
	"velocity_fast_rising":  3.0,
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema. Paths starting with "file:" are passed through untouched so
// tests can use in-memory databases.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if !strings.HasPrefix(path, "file:") {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = "file:" + abs
	}
	dsn += dsnParams(dsn)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection sidesteps SQLITE_BUSY churn between the four loops and
	// keeps in-memory test databases coherent.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := &Store{db: db, now: time.Now}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func dsnParams(dsn string) string {
	v := url.Values{}
	v.Add("_pragma", "busy_timeout(10000)")
	v.Add("_pragma", "journal_mode(WAL)")
	v.Add("_pragma", "foreign_keys(1)")
	v.Add("_pragma", "synchronous(NORMAL)")
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return sep + v.Encode()
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	now := s.now().UTC().Unix()
	for key, value := range defaultConfig {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO system_config (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT (key) DO NOTHING`,
			key, value, now)
		if err != nil {
			return fmt.Errorf("seed config %s: %w", key, err)
		}
	}
	slog.Info("Storage initialized")
	return nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}
