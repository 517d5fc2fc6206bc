// Package storage defines the vault file-system abstraction. A vault holds
// note documents under notes/ and uploaded blobs under files/, both named
// by uuid.
package storage

import (
	"io"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/models"
)

// Provider is the interface for vault file operations.
type Provider interface {
	// ListNotes returns metadata for every note document in the vault.
	ListNotes() ([]models.NoteMetadata, error)
	// ReadNote returns the encoded document of note id.
	ReadNote(id uuid.UUID) ([]byte, error)
	// WriteNote atomically replaces the document of note id.
	WriteNote(id uuid.UUID, data []byte) error
	// DeleteNote removes the document of note id.
	DeleteNote(id uuid.UUID) error

	// WriteBlob atomically stores the contents of r as blob id.
	WriteBlob(id uuid.UUID, r io.Reader) (int64, error)
	// OpenBlob opens blob id for reading.
	OpenBlob(id uuid.UUID) (io.ReadCloser, error)
	// DeleteBlob removes blob id.
	DeleteBlob(id uuid.UUID) error
}
