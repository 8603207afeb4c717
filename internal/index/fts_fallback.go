//go:build !sqlite_fts5

package index

import (
	"context"
	"fmt"

	"github.com/starford/raido/internal/pool"
)

func initFTS(_ context.Context, _ *pool.Conn) error {
	// FTS5 not compiled in; search falls back to LIKE over the files table.
	return nil
}

// searchRows performs a LIKE-based match when FTS5 is unavailable. All
// hits score 1.0 and order by modified_time descending.
func searchRows(ctx context.Context, conn *pool.Conn, escaped string, dirs []string, limit int) ([]SearchResult, error) {
	dirSQL, args := dirFilter(dirs)
	q := fmt.Sprintf(`
		SELECT f.path, f.name, f.extension, f.size, f.modified_time,
		       f.category, f.media_type,
		       substr(f.text_content, 1, 200)
		FROM files f
		WHERE (f.name LIKE ? OR f.path LIKE ? OR f.text_content LIKE ?)%s
		ORDER BY f.modified_time DESC
		LIMIT ?
	`, dirSQL)

	like := "%" + trimPhraseQuotes(escaped) + "%"
	params := append([]any{like, like, like}, args...)
	params = append(params, limit)

	rows, err := conn.DB().QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("index: like search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Name, &r.Extension, &r.Size, &r.ModifiedTime,
			&r.Category, &r.MediaType, &r.Snippet); err != nil {
			return nil, err
		}
		r.Score = 1.0
		out = append(out, r)
	}
	return out, rows.Err()
}
