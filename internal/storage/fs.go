package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/document"
	"github.com/starford/sowilo/internal/models"
)

const (
	notesDir = "notes"
	blobsDir = "files"
	noteExt  = ".json"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to vault directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist; the notes and files subdirectories
// are created on demand.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	for _, d := range []string{notesDir, blobsDir} {
		if err := os.MkdirAll(filepath.Join(abs, d), 0o755); err != nil {
			return nil, fmt.Errorf("storage: mkdir %s: %w", d, err)
		}
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// NotesDir returns the absolute directory holding note documents.
func (f *FS) NotesDir() string { return filepath.Join(f.root, notesDir) }

// NoteIDFromPath maps a note document path back to its note id.
func NoteIDFromPath(path string) (uuid.UUID, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, noteExt) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSuffix(name, noteExt))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (f *FS) notePath(id uuid.UUID) string {
	return filepath.Join(f.root, notesDir, id.String()+noteExt)
}

func (f *FS) blobPath(id uuid.UUID) string {
	return filepath.Join(f.root, blobsDir, id.String())
}

// ListNotes returns metadata for every well-named document under notes/.
// Temp files and foreign files are skipped.
func (f *FS) ListNotes() ([]models.NoteMetadata, error) {
	entries, err := os.ReadDir(filepath.Join(f.root, notesDir))
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []models.NoteMetadata
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := NoteIDFromPath(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		data, err := os.ReadFile(f.notePath(id))
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		out = append(out, models.NoteMetadata{
			ID:        id,
			Path:      filepath.Join(notesDir, e.Name()),
			Checksum:  document.Checksum(data),
			UpdatedAt: info.ModTime(),
		})
	}
	return out, nil
}

// ReadNote returns the raw document of a note.
func (f *FS) ReadNote(id uuid.UUID) ([]byte, error) {
	data, err := os.ReadFile(f.notePath(id))
	if err != nil {
		return nil, wrapNotExist("read note", id, err)
	}
	return data, nil
}

// WriteNote atomically writes a note document.
func (f *FS) WriteNote(id uuid.UUID, data []byte) error {
	_, err := writeAtomic(f.notePath(id), bytes.NewReader(data))
	return err
}

// DeleteNote removes a note document.
func (f *FS) DeleteNote(id uuid.UUID) error {
	if err := os.Remove(f.notePath(id)); err != nil {
		return wrapNotExist("delete note", id, err)
	}
	return nil
}

// WriteBlob atomically stores a blob.
func (f *FS) WriteBlob(id uuid.UUID, r io.Reader) (int64, error) {
	return writeAtomic(f.blobPath(id), r)
}

// OpenBlob opens a blob for reading.
func (f *FS) OpenBlob(id uuid.UUID) (io.ReadCloser, error) {
	fh, err := os.Open(f.blobPath(id))
	if err != nil {
		return nil, wrapNotExist("open blob", id, err)
	}
	return fh, nil
}

// DeleteBlob removes a blob.
func (f *FS) DeleteBlob(id uuid.UUID) error {
	if err := os.Remove(f.blobPath(id)); err != nil {
		return wrapNotExist("delete blob", id, err)
	}
	return nil
}

func wrapNotExist(op string, id uuid.UUID, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: %s %s: %w", op, id, apperr.ErrNotFound)
	}
	return fmt.Errorf("storage: %s %s: %w", op, id, err)
}

// writeAtomic writes r to abs: tmp file → fsync → rename.
func writeAtomic(abs string, r io.Reader) (int64, error) {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sowilo-tmp-*")
	if err != nil {
		return 0, fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return 0, fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return 0, fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return n, nil
}

var _ Provider = (*FS)(nil)
