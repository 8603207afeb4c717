package index

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DuplicateGroup is a set of indexed files sharing one content
// fingerprint. PotentialSavings is the space reclaimed by keeping a
// single copy.
type DuplicateGroup struct {
	ContentHash      string   `json:"content_hash"`
	Size             int64    `json:"size"`
	Count            int64    `json:"count"`
	Paths            []string `json:"paths"`
	PotentialSavings int64    `json:"potential_savings"`
}

// FileSummary is a slim file row for report listings.
type FileSummary struct {
	Path         string  `json:"path"`
	Name         string  `json:"name"`
	Size         int64   `json:"size"`
	ModifiedTime float64 `json:"modified_time"`
}

// FindDuplicates groups non-empty files by content fingerprint and
// returns groups with more than one member, largest first.
func (s *Store) FindDuplicates(ctx context.Context, limit int) ([]DuplicateGroup, error) {
	if limit <= 0 {
		limit = 100
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	rows, err := conn.DB().QueryContext(ctx, `
		SELECT content_hash, size, COUNT(*), GROUP_CONCAT(path, char(10))
		FROM files
		WHERE size > 0
		GROUP BY content_hash, size
		HAVING COUNT(*) > 1
		ORDER BY size DESC, COUNT(*) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: find duplicates: %w", err)
	}
	defer rows.Close()

	var out []DuplicateGroup
	for rows.Next() {
		var g DuplicateGroup
		var paths string
		if err := rows.Scan(&g.ContentHash, &g.Size, &g.Count, &paths); err != nil {
			return nil, err
		}
		g.Paths = strings.Split(paths, "\n")
		g.PotentialSavings = g.Size * (g.Count - 1)
		out = append(out, g)
	}
	return out, rows.Err()
}

// LargeFiles lists files above minSize bytes, largest first. Zero
// minSize means 100 MiB.
func (s *Store) LargeFiles(ctx context.Context, minSize int64, limit int) ([]FileSummary, error) {
	if minSize <= 0 {
		minSize = 100 << 20
	}
	return s.summaries(ctx, `
		SELECT path, name, size, modified_time FROM files
		WHERE size > ?
		ORDER BY size DESC
		LIMIT ?
	`, "large files", minSize, normalizeLimit(limit))
}

// OldFiles lists files not modified within olderThan, oldest first.
// Zero olderThan means one year.
func (s *Store) OldFiles(ctx context.Context, olderThan time.Duration, limit int) ([]FileSummary, error) {
	if olderThan <= 0 {
		olderThan = 365 * 24 * time.Hour
	}
	cutoff := unixNow() - olderThan.Seconds()
	return s.summaries(ctx, `
		SELECT path, name, size, modified_time FROM files
		WHERE modified_time < ?
		ORDER BY modified_time ASC
		LIMIT ?
	`, "old files", cutoff, normalizeLimit(limit))
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func (s *Store) summaries(ctx context.Context, query, op string, args ...any) ([]FileSummary, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	rows, err := conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: %s: %w", op, err)
	}
	defer rows.Close()

	var out []FileSummary
	for rows.Next() {
		var f FileSummary
		if err := rows.Scan(&f.Path, &f.Name, &f.Size, &f.ModifiedTime); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
