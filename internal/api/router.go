package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sowilo/internal/notebook"
	"github.com/starford/sowilo/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(book *notebook.Service, sessions *session.Registry, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(book, sessions)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Post("/notes/import", h.ImportNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Delete("/notes/{id}", h.DeleteNote)
	r.Get("/notes/{id}/export", h.ExportNote)

	// Search.
	r.Get("/search", h.Search)

	// Editing sessions.
	r.Post("/sessions", h.OpenSession)
	r.Get("/sessions/{id}", h.GetSession)
	r.Delete("/sessions/{id}", h.CloseSession)
	r.Post("/sessions/{id}/steps", h.ApplySteps)
	r.Post("/sessions/{id}/undo", h.Undo)
	r.Post("/sessions/{id}/redo", h.Redo)

	// Files referenced by image elements.
	r.Post("/files", h.UploadFile)
	r.Get("/files", h.ListFiles)
	r.Get("/files/{id}", h.ServeFile)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
