// Package models defines the lightweight types shared between the vault,
// the index and the outer surfaces.
package models

import (
	"time"

	"github.com/google/uuid"
)

// NoteMetadata describes a note document stored in the vault.
type NoteMetadata struct {
	ID        uuid.UUID `json:"id"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteSummary is a list entry for a loaded note.
type NoteSummary struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Elements  int       `json:"elements"`
	Checksum  string    `json:"checksum,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileInfo describes an uploaded blob and how many holders keep it alive.
type FileInfo struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	MediaType string    `json:"media_type"`
	Size      int64     `json:"size"`
	Refs      int       `json:"refs"`
	CreatedAt time.Time `json:"created_at"`
}

// History is the undo/redo state of an editing session.
type History struct {
	CanUndo  bool   `json:"can_undo"`
	CanRedo  bool   `json:"can_redo"`
	UndoName string `json:"undo_name,omitempty"`
	RedoName string `json:"redo_name,omitempty"`
	Undo     int    `json:"undo"`
	Redo     int    `json:"redo"`
}
