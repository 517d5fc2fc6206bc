package index

import (
	"time"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/command"
	"github.com/starford/sowilo/internal/models"
)

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow, body string) error
	DeleteNote(id uuid.UUID) error
	GetChecksum(id uuid.UUID) (string, error)
	AllChecksums() (map[uuid.UUID]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// FileStore is the reference-counting store of uploaded files.
type FileStore interface {
	command.FileRefs
	RegisterFile(f FileRow) error
	GetFile(id uuid.UUID) (*models.FileInfo, error)
	ListFiles() ([]models.FileInfo, error)
	RefCount(fileID uuid.UUID) (int, error)
	SetNoteReferences(noteID uuid.UUID, refs []Ref) error
	Unreferenced(createdBefore time.Time) ([]uuid.UUID, error)
	DeleteFile(id uuid.UUID) error
}

// Verify *DB satisfies the interfaces at compile time.
var (
	_ NoteIndex = (*DB)(nil)
	_ FileStore = (*DB)(nil)
)
