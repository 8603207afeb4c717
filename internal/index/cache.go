package index

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/pool"
)

// DefaultCacheTTL is how long a cached result set stays servable.
const DefaultCacheTTL = time.Hour

// cacheTTL is set per-store; zero means DefaultCacheTTL.
func (s *Store) ttl() time.Duration {
	if s.cacheTTL > 0 {
		return s.cacheTTL
	}
	return DefaultCacheTTL
}

// SetCacheTTL overrides the query cache TTL.
func (s *Store) SetCacheTTL(d time.Duration) { s.cacheTTL = d }

// cacheKey hashes (query, directory filter, limit) into the cache key.
func cacheKey(query string, dirs []string, limit int) string {
	var b strings.Builder
	b.WriteString(query)
	b.WriteByte(0)
	b.WriteString(strings.Join(dirs, "\x00"))
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(limit))
	return checksum.Sum([]byte(b.String()))
}

// cachedResults returns a live cache entry, if any. Expired entries are
// never served.
func (s *Store) cachedResults(ctx context.Context, key string) ([]SearchResult, bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	defer s.pool.Release(conn)

	var raw string
	err = conn.DB().QueryRowContext(ctx, `
		SELECT results FROM query_cache
		WHERE query_hash = ? AND expires_at > ?
	`, key, unixNow()).Scan(&raw)
	if err != nil {
		return nil, false, nil // miss
	}

	var results []SearchResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, false, nil
	}
	return results, true, nil
}

// cacheResults stores a non-empty result set with the configured TTL.
func (s *Store) cacheResults(ctx context.Context, conn *pool.Conn, key, query string, results []SearchResult) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("index: marshal cache entry: %w", err)
	}
	now := unixNow()
	_, err = conn.DB().ExecContext(ctx, `
		INSERT OR REPLACE INTO query_cache (query_hash, query, results, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, key, query, string(raw), now, now+s.ttl().Seconds())
	if err != nil {
		return fmt.Errorf("index: write cache entry: %w", err)
	}
	return nil
}

// PurgeExpiredCache removes dead cache rows and returns how many went.
func (s *Store) PurgeExpiredCache(ctx context.Context) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Release(conn)

	res, err := conn.DB().ExecContext(ctx,
		`DELETE FROM query_cache WHERE expires_at < ?`, unixNow())
	if err != nil {
		return 0, fmt.Errorf("index: purge cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// InvalidateCache drops every cache row; used after bulk writes.
func (s *Store) InvalidateCache(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Release(conn)

	if _, err := conn.DB().ExecContext(ctx, `DELETE FROM query_cache`); err != nil {
		return fmt.Errorf("index: invalidate cache: %w", err)
	}
	return nil
}

func unixNow() float64 {
	return float64(time.Now().UnixMilli()) / 1000
}
