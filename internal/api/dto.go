package api

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/script"
	"github.com/starford/sowilo/internal/session"
)

// CreateNoteRequest is the request body for creating an empty note.
type CreateNoteRequest struct {
	Title string `json:"title" example:"Groceries"`
}

// NoteListResponse wraps the loaded notes.
type NoteListResponse struct {
	Notes []models.NoteSummary `json:"notes" validate:"required"`
	Total int                  `json:"total" example:"42" validate:"required"`
}

// NoteDocument is a full note in its stored JSON form.
type NoteDocument = json.RawMessage

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	ID      uuid.UUID `json:"id" validate:"required"`
	Title   string    `json:"title" example:"Groceries" validate:"required"`
	Snippet string    `json:"snippet" example:"...matched text..." validate:"required"`
}

// OpenSessionRequest starts an editing session on a note.
type OpenSessionRequest struct {
	NoteID uuid.UUID `json:"note_id" validate:"required"`
}

// SessionResponse describes an open session.
type SessionResponse struct {
	ID      uuid.UUID      `json:"id"`
	NoteID  uuid.UUID      `json:"note_id"`
	History models.History `json:"history"`
	State   *session.State `json:"state,omitempty"`
}

// StepsRequest is a batch of edit steps for a session.
type StepsRequest struct {
	Steps []script.Step `json:"steps" validate:"required"`
}

// StepsResponse reports the applied steps. Error is set when a step failed;
// the steps listed in Results stay applied.
type StepsResponse struct {
	Results []script.Result `json:"results"`
	History models.History  `json:"history"`
	Error   string          `json:"error,omitempty"`
}

// FileListResponse wraps the uploaded files.
type FileListResponse struct {
	Files []models.FileInfo `json:"files" validate:"required"`
}
