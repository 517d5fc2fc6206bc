package api

import (
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
)

// UploadFile handles POST /files (multipart/form-data, field "file").
//
//	@Summary	Upload a file for image elements
//	@Tags		files
//	@Accept		multipart/form-data
//	@Produce	json
//	@Success	201	{object}	models.FileInfo
//	@Failure	400	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/files [post]
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	fi, err := h.book.UploadFile(name, mediaType, file)
	if err != nil {
		writeError(w, "upload file", err)
		return
	}
	writeJSON(w, http.StatusCreated, fi)
}

// ListFiles handles GET /files.
//
//	@Summary	List uploaded files with their reference counts
//	@Tags		files
//	@Produce	json
//	@Success	200	{object}	FileListResponse
//	@Security	BearerAuth
//	@Router		/files [get]
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.book.Files().ListFiles()
	if err != nil {
		writeError(w, "list files", err)
		return
	}
	writeJSON(w, http.StatusOK, FileListResponse{Files: files})
}

// ServeFile handles GET /files/{id}.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	fi, rc, err := h.book.OpenFile(id)
	if err != nil {
		writeError(w, "serve file", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", fi.MediaType)
	w.Header().Set("Content-Length", strconv.FormatInt(fi.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("serve file interrupted", slog.String("file", id.String()), slog.String("error", err.Error()))
	}
}
