package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/raido/internal/pool"
)

// ftsReserved is the set of characters that would be interpreted as FTS5
// operators or phrase syntax. A query containing any of them is wrapped
// in double quotes so the engine treats it as one literal phrase.
const ftsReserved = `"'.()[]:*?!-+`

// EscapeQuery rewrites a raw user query into a form that always parses as
// a valid full-text query. Inner double quotes are doubled per the FTS5
// string rules before wrapping.
func EscapeQuery(query string) string {
	if !strings.ContainsAny(query, ftsReserved) {
		return query
	}
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}

// trimPhraseQuotes undoes EscapeQuery for the LIKE fallback, which wants
// the raw text back.
func trimPhraseQuotes(escaped string) string {
	if len(escaped) >= 2 && strings.HasPrefix(escaped, `"`) && strings.HasSuffix(escaped, `"`) {
		return strings.ReplaceAll(escaped[1:len(escaped)-1], `""`, `"`)
	}
	return escaped
}

// dirFilter builds the optional directory containment clause. Filters are
// exact-path containment, not pattern matching.
func dirFilter(dirs []string) (string, []any) {
	if len(dirs) == 0 {
		return "", nil
	}
	clauses := make([]string, len(dirs))
	args := make([]any, len(dirs))
	for i, d := range dirs {
		clauses[i] = "f.path LIKE ?"
		args[i] = strings.TrimRight(d, "/") + "/%"
	}
	return " AND (" + strings.Join(clauses, " OR ") + ")", args
}

// Search executes a ranked full-text query, consulting the result cache
// first. Only non-empty result sets are cached: caching a miss would mask
// files indexed moments later for a whole TTL.
func (s *Store) Search(ctx context.Context, query string, dirs []string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	key := cacheKey(query, dirs, limit)
	if cached, ok, err := s.cachedResults(ctx, key); err == nil && ok {
		return cached, nil
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	var results []SearchResult
	if strings.TrimSpace(query) == "" {
		results, err = browseRows(ctx, conn, dirs, limit)
	} else {
		results, err = searchRows(ctx, conn, EscapeQuery(query), dirs, limit)
	}
	if err != nil {
		return nil, err
	}

	if len(results) > 0 {
		if cacheErr := s.cacheResults(ctx, conn, key, query, results); cacheErr != nil {
			// A failed cache write must not fail the search.
			return results, nil
		}
	}
	return results, nil
}

// browseRows serves the empty-query case: newest files first, optionally
// constrained to directories.
func browseRows(ctx context.Context, conn *pool.Conn, dirs []string, limit int) ([]SearchResult, error) {
	dirSQL, args := dirFilter(dirs)
	q := fmt.Sprintf(`
		SELECT f.path, f.name, f.extension, f.size, f.modified_time,
		       f.category, f.media_type
		FROM files f
		WHERE 1=1%s
		ORDER BY f.modified_time DESC
		LIMIT ?
	`, dirSQL)
	params := append(args, limit)

	rows, err := conn.DB().QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("index: browse: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Name, &r.Extension, &r.Size, &r.ModifiedTime,
			&r.Category, &r.MediaType); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
