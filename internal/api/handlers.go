package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/starford/sowilo/internal/document"
	"github.com/starford/sowilo/internal/notebook"
	"github.com/starford/sowilo/internal/outline"
	"github.com/starford/sowilo/internal/session"
)

const (
	maxBodyBytes   = 10 << 20
	maxUploadBytes = 50 << 20
)

// Handler holds API route handlers.
type Handler struct {
	book     *notebook.Service
	sessions *session.Registry
}

// NewHandler creates a new Handler.
func NewHandler(book *notebook.Service, sessions *session.Registry) *Handler {
	return &Handler{book: book, sessions: sessions}
}

// ListNotes handles GET /notes.
//
//	@Summary	List loaded notes
//	@Tags		notes
//	@Produce	json
//	@Success	200	{object}	NoteListResponse
//	@Security	BearerAuth
//	@Router		/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes := h.book.ListNotes()
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// CreateNote handles POST /notes.
//
//	@Summary	Create an empty note
//	@Tags		notes
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateNoteRequest	true	"Note to create"
//	@Success	201		{object}	models.NoteSummary
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sum, err := h.book.CreateNote(req.Title)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}

// GetNote handles GET /notes/{id}.
//
//	@Summary	Get a note document
//	@Tags		notes
//	@Produce	json
//	@Param		id	path		string	true	"Note id"
//	@Success	200	{object}	NoteDocument
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	data, err := h.book.GetNote(id)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteDocument(data))
}

// DeleteNote handles DELETE /notes/{id}. Sessions on the note are closed.
//
//	@Summary	Delete a note
//	@Tags		notes
//	@Param		id	path	string	true	"Note id"
//	@Success	204	"Note deleted"
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.book.DeleteNote(id); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportNote handles POST /notes/import with a Markdown outline body.
//
//	@Summary	Import a Markdown outline as a new note
//	@Tags		notes
//	@Accept		text/markdown
//	@Produce	json
//	@Success	201	{object}	models.NoteSummary
//	@Failure	400	{object}	errResponse
//	@Failure	409	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/import [post]
func (h *Handler) ImportNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	n, err := outline.Import(data)
	if err != nil {
		writeError(w, "import note", err)
		return
	}
	sum, err := h.book.AddNote(n)
	if err != nil {
		writeError(w, "import note", err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}

// ExportNote handles GET /notes/{id}/export.
//
//	@Summary	Export a note as a Markdown outline
//	@Tags		notes
//	@Produce	text/markdown
//	@Param		id	path	string	true	"Note id"
//	@Success	200	{string}	string
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id}/export [get]
func (h *Handler) ExportNote(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var out []byte
	err := h.book.WithNote(id, func(n *document.Note) error {
		var err error
		out, err = outline.Export(n)
		return err
	})
	if err != nil {
		writeError(w, "export note", err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// Search handles GET /search.
//
//	@Summary	Full-text search across notes
//	@Tags		search
//	@Produce	json
//	@Param		q		query		string	true	"Search query"
//	@Param		limit	query		int		false	"Max results"
//	@Success	200		{object}	SearchResponse
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.book.Search(q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	results := make([]SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = SearchResult{ID: hit.ID, Title: hit.Title, Snippet: hit.Snippet}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
