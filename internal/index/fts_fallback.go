//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on the notes.body column.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT id, title, substr(body, 1, 200)
		FROM notes
		WHERE title LIKE ? OR body LIKE ?
		ORDER BY title
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var raw string
		var r SearchResult
		if err := rows.Scan(&raw, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		if r.ID, err = uuid.Parse(raw); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
