package api

import (
	"net/http"

	"github.com/google/uuid"
)

// OpenSession handles POST /sessions.
//
//	@Summary	Open an editing session on a note
//	@Tags		sessions
//	@Accept		json
//	@Produce	json
//	@Param		body	body		OpenSessionRequest	true	"Note to edit"
//	@Success	201		{object}	SessionResponse
//	@Failure	404		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/sessions [post]
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.NoteID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorBody("note_id is required"))
		return
	}
	s, err := h.sessions.Open(req.NoteID)
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{ID: s.ID, NoteID: s.NoteID})
}

// GetSession handles GET /sessions/{id}.
//
//	@Summary	Get the history and view state of a session
//	@Tags		sessions
//	@Produce	json
//	@Param		id	path		string	true	"Session id"
//	@Success	200	{object}	SessionResponse
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/sessions/{id} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, "get session", err)
		return
	}
	hist, state, err := h.sessions.State(id)
	if err != nil {
		writeError(w, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{ID: s.ID, NoteID: s.NoteID, History: hist, State: &state})
}

// CloseSession handles DELETE /sessions/{id}.
//
//	@Summary	Close a session and drop its history
//	@Tags		sessions
//	@Param		id	path	string	true	"Session id"
//	@Success	204	"Session closed"
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/sessions/{id} [delete]
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Close(id); err != nil {
		writeError(w, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplySteps handles POST /sessions/{id}/steps. Steps run in order; on a
// failure the earlier steps stay applied and are reported with the error.
//
//	@Summary	Apply edit steps in a session
//	@Tags		sessions
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string			true	"Session id"
//	@Param		body	body		StepsRequest	true	"Steps"
//	@Success	200		{object}	StepsResponse
//	@Failure	400		{object}	StepsResponse
//	@Failure	409		{object}	StepsResponse
//	@Security	BearerAuth
//	@Router		/sessions/{id}/steps [post]
func (h *Handler) ApplySteps(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req StepsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Steps) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("steps are required"))
		return
	}
	results, hist, err := h.sessions.Apply(id, req.Steps)
	if err != nil && results == nil {
		writeError(w, "apply steps", err)
		return
	}
	resp := StepsResponse{Results: results, History: hist}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		resp.Error = err.Error()
	}
	writeJSON(w, status, resp)
}

// Undo handles POST /sessions/{id}/undo.
//
//	@Summary	Undo the newest history entry
//	@Tags		sessions
//	@Produce	json
//	@Param		id	path		string	true	"Session id"
//	@Success	200	{object}	models.History
//	@Failure	409	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/sessions/{id}/undo [post]
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	hist, err := h.sessions.Undo(id)
	if err != nil {
		writeError(w, "undo", err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// Redo handles POST /sessions/{id}/redo.
//
//	@Summary	Redo the newest undone entry
//	@Tags		sessions
//	@Produce	json
//	@Param		id	path		string	true	"Session id"
//	@Success	200	{object}	models.History
//	@Failure	409	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/sessions/{id}/redo [post]
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	hist, err := h.sessions.Redo(id)
	if err != nil {
		writeError(w, "redo", err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}
