package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/raido/internal/apperr"
)

// GetFile returns the indexed record for a path.
func (s *Store) GetFile(ctx context.Context, path string) (*FileRecord, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	var r FileRecord
	var status string
	err = conn.DB().QueryRowContext(ctx, `
		SELECT id, path, name, extension, size, modified_time, content_hash,
		       text_content, category, media_type, processing_status,
		       indexed_at, last_analyzed
		FROM files WHERE path = ?
	`, path).Scan(&r.ID, &r.Path, &r.Name, &r.Extension, &r.Size, &r.ModifiedTime,
		&r.ContentHash, &r.TextContent, &r.Category, &r.MediaType, &status,
		&r.IndexedAt, &r.LastAnalyzed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get file %s: %w", path, err)
	}
	r.ProcessingStatus = unmarshalStatus(status)
	return &r, nil
}

// RecentPaths returns paths of files modified since the cutoff, newest
// first. Drives the quick reindex pass.
func (s *Store) RecentPaths(ctx context.Context, since time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	rows, err := conn.DB().QueryContext(ctx, `
		SELECT path FROM files
		WHERE modified_time > ?
		ORDER BY modified_time DESC
		LIMIT ?
	`, float64(since.UnixMilli())/1000, limit)
	if err != nil {
		return nil, fmt.Errorf("index: recent paths: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteFile logically removes a path from the index. The FTS triggers
// drop the matching files_fts entry in the same statement.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Release(conn)

	if _, err := conn.DB().ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete %s: %w", path, err)
	}
	return nil
}

// CategoryCount is one row of the per-category breakdown.
type CategoryCount struct {
	Category  string `json:"category"`
	Count     int64  `json:"count"`
	TotalSize int64  `json:"total_size"`
}

// Stats summarizes index contents for observability.
type Stats struct {
	TotalFiles    int64           `json:"total_files"`
	TotalSize     int64           `json:"total_size"`
	ByCategory    []CategoryCount `json:"by_category"`
	ByMediaType   []CategoryCount `json:"by_media_type"`
	ActiveCache   int64           `json:"active_cache_entries"`
	Deletions     int64           `json:"deletions"`
	Movements     int64           `json:"movements"`
	IndexedLast24 int64           `json:"indexed_last_24h"`
}

// Stats gathers counters across the primary and audit tables.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	db := conn.DB()
	out := &Stats{}

	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files`).
		Scan(&out.TotalFiles, &out.TotalSize); err != nil {
		return nil, fmt.Errorf("index: stats totals: %w", err)
	}

	groupBy := func(col string) ([]CategoryCount, error) {
		rows, err := db.QueryContext(ctx, fmt.Sprintf(`
			SELECT %s, COUNT(*), COALESCE(SUM(size), 0)
			FROM files GROUP BY %s ORDER BY COUNT(*) DESC
		`, col, col))
		if err != nil {
			return nil, fmt.Errorf("index: stats by %s: %w", col, err)
		}
		defer rows.Close()
		var cc []CategoryCount
		for rows.Next() {
			var c CategoryCount
			if err := rows.Scan(&c.Category, &c.Count, &c.TotalSize); err != nil {
				return nil, err
			}
			cc = append(cc, c)
		}
		return cc, rows.Err()
	}

	if out.ByCategory, err = groupBy("category"); err != nil {
		return nil, err
	}
	if out.ByMediaType, err = groupBy("media_type"); err != nil {
		return nil, err
	}

	_ = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM query_cache WHERE expires_at > ?`, unixNow()).
		Scan(&out.ActiveCache)
	_ = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deleted_files`).Scan(&out.Deletions)
	_ = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_movements`).Scan(&out.Movements)
	_ = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files WHERE indexed_at > ?`, unixNow()-86400).
		Scan(&out.IndexedLast24)

	return out, nil
}

// Housekeep reclaims space and refreshes the query planner statistics.
func (s *Store) Housekeep(ctx context.Context) error {
	if _, err := s.PurgeExpiredCache(ctx); err != nil {
		return err
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Release(conn)

	for _, stmt := range []string{`VACUUM`, `ANALYZE`, `PRAGMA optimize`} {
		if _, err := conn.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("index: housekeeping %s: %w", stmt, err)
		}
	}
	return nil
}
