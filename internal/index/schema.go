// Package index provides the SQLite-backed file index: schema management,
// incremental indexing, ranked full-text search with a TTL result cache,
// and the append-only deletion/movement audit tables.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/pool"
)

// DSN builds the SQLite connection string for the index database. WAL
// journaling allows concurrent readers alongside the single writer; the
// enlarged page cache keeps hot FTS pages resident.
func DSN(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=10000"
}

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	path              TEXT UNIQUE NOT NULL,
	name              TEXT NOT NULL,
	extension         TEXT NOT NULL DEFAULT '',
	size              INTEGER NOT NULL DEFAULT 0,
	modified_time     REAL NOT NULL DEFAULT 0,
	content_hash      TEXT NOT NULL DEFAULT '',
	text_content      TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL DEFAULT 'other',
	media_type        TEXT NOT NULL DEFAULT 'other',
	processing_status TEXT NOT NULL DEFAULT '{}',
	metadata_json     TEXT NOT NULL DEFAULT '{}',
	indexed_at        REAL NOT NULL DEFAULT 0,
	last_analyzed     REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_files_name      ON files(name);
CREATE INDEX IF NOT EXISTS idx_files_extension ON files(extension);
CREATE INDEX IF NOT EXISTS idx_files_modified  ON files(modified_time);
CREATE INDEX IF NOT EXISTS idx_files_category  ON files(category);

CREATE TABLE IF NOT EXISTS query_cache (
	query_hash TEXT PRIMARY KEY,
	query      TEXT NOT NULL DEFAULT '',
	results    TEXT NOT NULL DEFAULT '[]',
	created_at REAL NOT NULL DEFAULT 0,
	expires_at REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS deleted_files (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	original_path     TEXT NOT NULL,
	filename          TEXT NOT NULL,
	size              INTEGER NOT NULL DEFAULT 0,
	category          TEXT NOT NULL DEFAULT 'other',
	reason            TEXT NOT NULL DEFAULT '',
	deleted_at        REAL NOT NULL DEFAULT 0,
	backup_path       TEXT NOT NULL DEFAULT '',
	recovery_possible INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_deleted_files_path ON deleted_files(original_path);
CREATE INDEX IF NOT EXISTS idx_deleted_files_date ON deleted_files(deleted_at);

CREATE TABLE IF NOT EXISTS file_movements (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	original_path TEXT NOT NULL,
	new_path      TEXT NOT NULL,
	movement_type TEXT NOT NULL DEFAULT 'reorganize',
	reason        TEXT NOT NULL DEFAULT '',
	moved_at      REAL NOT NULL DEFAULT 0,
	size          INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_file_movements_date ON file_movements(moved_at);

CREATE TABLE IF NOT EXISTS recovery_log (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	deleted_file_id INTEGER NOT NULL,
	recovery_path   TEXT NOT NULL DEFAULT '',
	recovered_at    REAL NOT NULL DEFAULT 0,
	recovery_status TEXT NOT NULL DEFAULT '',
	notes           TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (deleted_file_id) REFERENCES deleted_files(id)
);
`

// Store wraps the connection pool with index-specific operations.
type Store struct {
	pool     *pool.Pool
	cacheTTL time.Duration
}

// NewStore creates the store and applies the schema. Schema creation is
// idempotent and safe to run on every startup; any failure here means the
// database cannot be trusted and startup must abort.
func NewStore(ctx context.Context, p *pool.Pool) (*Store, error) {
	s := &Store{pool: p}

	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(conn)

	if _, err := conn.DB().ExecContext(ctx, coreSchemaSQL); err != nil {
		return nil, fmt.Errorf("index: apply core schema: %w (%w)", err, apperr.ErrSchemaCorruption)
	}
	if err := initFTS(ctx, conn); err != nil {
		return nil, fmt.Errorf("index: apply fts schema: %w (%w)", err, apperr.ErrSchemaCorruption)
	}
	return s, nil
}

// Pool exposes the underlying pool for components that share it.
func (s *Store) Pool() *pool.Pool { return s.pool }
