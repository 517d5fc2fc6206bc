package index

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/document"
	"github.com/starford/sowilo/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed notes are decoded, upserted and get their file
//     references rebuilt from the images they contain
//   - notes removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.ListNotes()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[uuid.UUID]struct{}, len(metas))
	for _, m := range metas {
		disk[m.ID] = struct{}{}

		if checksums[m.ID] == m.Checksum {
			continue
		}

		data, err := store.ReadNote(m.ID)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("note", m.ID.String()), slog.String("error", err.Error()))
			continue
		}
		n, err := document.DecodeNote(data)
		if err != nil {
			logger.Warn("sync: decode failed", slog.String("note", m.ID.String()), slog.String("error", err.Error()))
			continue
		}
		if err := IndexNote(db, n, document.Checksum(data)); err != nil {
			logger.Warn("sync: index failed", slog.String("note", m.ID.String()), slog.String("error", err.Error()))
			continue
		}
		if err := db.SetNoteReferences(n.ID, ImageRefs(n)); err != nil {
			logger.Warn("sync: file references failed", slog.String("note", m.ID.String()), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: indexed", slog.String("note", m.ID.String()))
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteNote(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("note", id.String()), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("note", id.String()))
			}
		}
	}

	return nil
}

// IndexNote upserts the searchable form of n.
func IndexNote(db NoteIndex, n *document.Note, checksum string) error {
	updated := n.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return db.UpsertNote(NoteRow{
		ID:        n.ID,
		Title:     n.Title,
		Checksum:  checksum,
		Elements:  n.Len(),
		UpdatedAt: updated,
	}, NoteBody(n))
}

// NoteBody flattens the text of every element, one per line, indented by depth.
func NoteBody(n *document.Note) string {
	var b strings.Builder
	var walk func(e *document.Element, depth int)
	walk = func(e *document.Element, depth int) {
		for _, c := range e.Children() {
			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString(c.Text.String())
			b.WriteByte('\n')
			walk(c, depth+1)
		}
	}
	walk(n.Root(), 0)
	return b.String()
}

// ImageRefs lists the file references held by the images of n.
func ImageRefs(n *document.Note) []Ref {
	var refs []Ref
	n.Walk(func(e *document.Element) bool {
		if e.Kind.IsImage() && e.Kind.Image.FileID != uuid.Nil {
			refs = append(refs, Ref{HolderID: e.ID, FileID: e.Kind.Image.FileID})
		}
		return true
	})
	return refs
}
