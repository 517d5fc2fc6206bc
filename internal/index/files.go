package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
)

// FileRow represents a row in the files table.
type FileRow struct {
	ID        uuid.UUID
	Name      string
	MediaType string
	Size      int64
	CreatedAt time.Time
}

// Ref is one holder keeping a file alive.
type Ref struct {
	HolderID uuid.UUID
	FileID   uuid.UUID
}

// RegisterFile records an uploaded blob.
func (db *DB) RegisterFile(f FileRow) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	res, err := db.conn.Exec(`
		INSERT INTO files (id, name, media_type, size, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, f.ID.String(), f.Name, f.MediaType, f.Size, f.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: register file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: register file %s: %w", f.ID, apperr.ErrAlreadyExists)
	}
	return nil
}

const fileInfoSQL = `
	SELECT f.id, f.name, f.media_type, f.size, f.created_at, COALESCE(SUM(r.count), 0)
	FROM files f
	LEFT JOIN file_refs r ON r.file_id = f.id
`

func scanFileInfo(sc interface{ Scan(...any) error }) (models.FileInfo, error) {
	var raw string
	var fi models.FileInfo
	if err := sc.Scan(&raw, &fi.Name, &fi.MediaType, &fi.Size, &fi.CreatedAt, &fi.Refs); err != nil {
		return fi, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return fi, fmt.Errorf("index: bad file id %q: %w", raw, err)
	}
	fi.ID = id
	return fi, nil
}

// GetFile returns a registered file with its current reference count.
func (db *DB) GetFile(id uuid.UUID) (*models.FileInfo, error) {
	row := db.conn.QueryRow(fileInfoSQL+` WHERE f.id = ? GROUP BY f.id`, id.String())
	fi, err := scanFileInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: get file %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get file: %w", err)
	}
	return &fi, nil
}

// ListFiles returns every registered file, newest first.
func (db *DB) ListFiles() ([]models.FileInfo, error) {
	rows, err := db.conn.Query(fileInfoSQL + ` GROUP BY f.id ORDER BY f.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("index: list files: %w", err)
	}
	defer rows.Close()
	var out []models.FileInfo
	for rows.Next() {
		fi, err := scanFileInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fi)
	}
	return out, rows.Err()
}

// AddReference records that holderID in noteID embeds fileID.
func (db *DB) AddReference(noteID, holderID, fileID uuid.UUID) error {
	var exists int
	if err := db.conn.QueryRow(`SELECT count(*) FROM files WHERE id = ?`, fileID.String()).Scan(&exists); err != nil {
		return fmt.Errorf("index: add reference: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("index: add reference: file %s: %w", fileID, apperr.ErrNotFound)
	}
	_, err := db.conn.Exec(`
		INSERT INTO file_refs (note_id, holder_id, file_id, count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(note_id, holder_id, file_id) DO UPDATE SET count = count + 1
	`, noteID.String(), holderID.String(), fileID.String())
	if err != nil {
		return fmt.Errorf("index: add reference: %w", err)
	}
	return nil
}

// RemoveReference drops one reference previously added by AddReference.
func (db *DB) RemoveReference(noteID, holderID, fileID uuid.UUID) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	args := []any{noteID.String(), holderID.String(), fileID.String()}
	res, err := tx.Exec(`
		UPDATE file_refs SET count = count - 1
		WHERE note_id = ? AND holder_id = ? AND file_id = ? AND count > 1
	`, args...)
	if err != nil {
		return fmt.Errorf("index: remove reference: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		res, err = tx.Exec(`DELETE FROM file_refs WHERE note_id = ? AND holder_id = ? AND file_id = ?`, args...)
		if err != nil {
			return fmt.Errorf("index: remove reference: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("index: remove reference %s/%s: %w", holderID, fileID, apperr.ErrNotFound)
		}
	}
	return tx.Commit()
}

// RefCount returns the total number of references to fileID.
func (db *DB) RefCount(fileID uuid.UUID) (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COALESCE(SUM(count), 0) FROM file_refs WHERE file_id = ?`, fileID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("index: ref count: %w", err)
	}
	return n, nil
}

// SetNoteReferences replaces every reference held by noteID, placeholders
// included, with refs. References to unregistered files are skipped.
func (db *DB) SetNoteReferences(noteID uuid.UUID, refs []Ref) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM file_refs WHERE note_id = ?`, noteID.String()); err != nil {
		return fmt.Errorf("index: clear note refs: %w", err)
	}
	if len(refs) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO file_refs (note_id, holder_id, file_id, count)
			SELECT ?, ?, id, 1 FROM files WHERE id = ?
			ON CONFLICT(note_id, holder_id, file_id) DO UPDATE SET count = count + 1
		`)
		if err != nil {
			return fmt.Errorf("index: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range refs {
			if _, err := stmt.Exec(noteID.String(), r.HolderID.String(), r.FileID.String()); err != nil {
				return fmt.Errorf("index: insert ref: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Unreferenced returns files without references that were registered
// before createdBefore.
func (db *DB) Unreferenced(createdBefore time.Time) ([]uuid.UUID, error) {
	rows, err := db.conn.Query(`
		SELECT f.id FROM files f
		WHERE f.created_at < ?
		  AND NOT EXISTS (SELECT 1 FROM file_refs r WHERE r.file_id = f.id)
	`, createdBefore.UTC())
	if err != nil {
		return nil, fmt.Errorf("index: unreferenced: %w", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if id, err := uuid.Parse(raw); err == nil {
			out = append(out, id)
		}
	}
	return out, rows.Err()
}

// DeleteFile removes a file record and any references to it.
func (db *DB) DeleteFile(id uuid.UUID) error {
	if _, err := db.conn.Exec(`DELETE FROM files WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("index: delete file: %w", err)
	}
	return nil
}
