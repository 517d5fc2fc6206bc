package index

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	ID        uuid.UUID
	Title     string
	Checksum  string
	Elements  int
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Snippet string    `json:"snippet"`
}

// UpsertNote inserts or replaces a note and its FTS entry within a transaction.
func (db *DB) UpsertNote(n NoteRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO notes (id, title, checksum, body, elements, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			body       = excluded.body,
			elements   = excluded.elements,
			updated_at = excluded.updated_at
	`, n.ID.String(), n.Title, n.Checksum, body, n.Elements, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n.ID.String(), n.Title, body); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteNote removes a note, its FTS entry and every file reference it holds.
func (db *DB) DeleteNote(id uuid.UUID) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id.String())
	if _, err := tx.Exec(`DELETE FROM file_refs WHERE note_id = ?`, id.String()); err != nil {
		return fmt.Errorf("index: delete note refs: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(id uuid.UUID) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE id = ?`, id.String()).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns the checksum of every indexed note.
func (db *DB) AllChecksums() (map[uuid.UUID]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID]string)
	for rows.Next() {
		var raw, cs string
		if err := rows.Scan(&raw, &cs); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		out[id] = cs
	}
	return out, rows.Err()
}
