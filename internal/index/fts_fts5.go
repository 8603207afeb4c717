//go:build sqlite_fts5

package index

import (
	"context"
	"fmt"

	"github.com/starford/raido/internal/pool"
)

// initFTS creates the external-content FTS5 table over (name, path,
// text_content) plus the insert/update/delete triggers that keep it in
// lockstep with the files table. The triggers are the only writers of
// files_fts, so it can never drift from the primary table.
func initFTS(ctx context.Context, conn *pool.Conn) error {
	_, err := conn.DB().ExecContext(ctx, `
		CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
			name,
			path,
			text_content,
			content='files',
			content_rowid='id',
			tokenize = 'unicode61 remove_diacritics 2'
		);

		CREATE TRIGGER IF NOT EXISTS files_fts_ai AFTER INSERT ON files BEGIN
			INSERT INTO files_fts(rowid, name, path, text_content)
			VALUES (new.id, new.name, new.path, new.text_content);
		END;

		CREATE TRIGGER IF NOT EXISTS files_fts_ad AFTER DELETE ON files BEGIN
			INSERT INTO files_fts(files_fts, rowid, name, path, text_content)
			VALUES ('delete', old.id, old.name, old.path, old.text_content);
		END;

		CREATE TRIGGER IF NOT EXISTS files_fts_au AFTER UPDATE ON files BEGIN
			INSERT INTO files_fts(files_fts, rowid, name, path, text_content)
			VALUES ('delete', old.id, old.name, old.path, old.text_content);
			INSERT INTO files_fts(rowid, name, path, text_content)
			VALUES (new.id, new.name, new.path, new.text_content);
		END;
	`)
	return err
}

// searchRows runs the ranked FTS5 match. Rank values from FTS5 are
// negative bm25 scores; abs() makes them comparable across queries.
// Equal ranks tie-break on modified_time descending.
func searchRows(ctx context.Context, conn *pool.Conn, escaped string, dirs []string, limit int) ([]SearchResult, error) {
	dirSQL, args := dirFilter(dirs)
	q := fmt.Sprintf(`
		SELECT f.path, f.name, f.extension, f.size, f.modified_time,
		       f.category, f.media_type,
		       abs(files_fts.rank),
		       highlight(files_fts, 0, '<mark>', '</mark>'),
		       highlight(files_fts, 1, '<mark>', '</mark>'),
		       snippet(files_fts, 2, '<mark>', '</mark>', '...', 20)
		FROM files_fts
		JOIN files f ON f.id = files_fts.rowid
		WHERE files_fts MATCH ?%s
		ORDER BY files_fts.rank, f.modified_time DESC
		LIMIT ?
	`, dirSQL)

	params := append([]any{escaped}, args...)
	params = append(params, limit)

	rows, err := conn.DB().QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("index: fts search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Name, &r.Extension, &r.Size, &r.ModifiedTime,
			&r.Category, &r.MediaType, &r.Score,
			&r.HighlightedName, &r.HighlightedPath, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
