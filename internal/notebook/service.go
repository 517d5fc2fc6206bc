// Package notebook keeps the in-memory document.Store, the vault on disk
// and the SQLite index in step. Every mutation of a loaded note goes
// through Service.Edit, which serializes the engine and persists the
// result.
package notebook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/document"
	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/storage"
)

// ReloadFunc is called, with the engine locked, after a note was replaced
// or removed by a change on disk. It must not call back into Service.
type ReloadFunc func(noteID uuid.UUID, deleted bool)

// Service coordinates the document store, storage and index.
type Service struct {
	store  storage.Provider
	db     *index.DB
	notes  *document.Store
	logger *slog.Logger

	saveDelay time.Duration

	mu      sync.Mutex // engine lock
	written map[uuid.UUID]string
	dirty   map[uuid.UUID]struct{}
	reload  []ReloadFunc
}

// Option configures a Service.
type Option func(*Service)

// WithSaveDelay defers saving edited notes by d. Zero saves synchronously.
func WithSaveDelay(d time.Duration) Option {
	return func(s *Service) { s.saveDelay = d }
}

// NewService creates a new notebook service.
func NewService(store storage.Provider, db *index.DB, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		db:      db,
		notes:   document.NewStore(),
		logger:  logger,
		written: make(map[uuid.UUID]string),
		dirty:   make(map[uuid.UUID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notes returns the in-memory note registry commands run against.
func (s *Service) Notes() *document.Store { return s.notes }

// Files returns the file reference store.
func (s *Service) Files() *index.DB { return s.db }

// OnReload registers fn to run after notes change on disk.
func (s *Service) OnReload(fn ReloadFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reload = append(s.reload, fn)
}

// Load reads every note of the vault into memory and brings the index up
// to date. Notes that fail to decode are skipped.
func (s *Service) Load() error {
	metas, err := s.store.ListNotes()
	if err != nil {
		return fmt.Errorf("notebook: load: %w", err)
	}
	s.mu.Lock()
	for _, m := range metas {
		data, err := s.store.ReadNote(m.ID)
		if err != nil {
			s.logger.Warn("notebook: read failed", slog.String("note", m.ID.String()), slog.String("error", err.Error()))
			continue
		}
		n, err := document.DecodeNote(data)
		if err != nil {
			s.logger.Warn("notebook: decode failed", slog.String("note", m.ID.String()), slog.String("error", err.Error()))
			continue
		}
		s.notes.Put(n)
		s.written[n.ID] = m.Checksum
	}
	s.mu.Unlock()
	s.logger.Info("notebook: loaded", slog.Int("notes", len(metas)))
	if err := index.Sync(s.db, s.store, s.logger); err != nil {
		return err
	}
	s.resetReferences()
	return nil
}

// resetReferences rebuilds the file references of every loaded note from
// its images. Undo history does not survive a restart, so placeholders
// left by an earlier process are dropped and their blobs become
// collectable.
func (s *Service) resetReferences() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notes.List() {
		if err := s.db.SetNoteReferences(n.ID, index.ImageRefs(n)); err != nil {
			s.logger.Warn("notebook: reset file references failed",
				slog.String("note", n.ID.String()), slog.String("error", err.Error()))
		}
	}
}

// Edit runs fn with the engine locked. When fn reports a change the note
// is saved, immediately or after the configured delay.
func (s *Service) Edit(noteID uuid.UUID, fn func() bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fn() {
		return false, nil
	}
	if s.saveDelay > 0 {
		s.dirty[noteID] = struct{}{}
		return true, nil
	}
	return true, s.saveLocked(noteID)
}

// View runs fn with the engine locked, without saving.
func (s *Service) View(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Save writes note id to the vault and reindexes it.
func (s *Service) Save(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(id)
}

func (s *Service) saveLocked(id uuid.UUID) error {
	delete(s.dirty, id)
	n, ok := s.notes.Note(id)
	if !ok {
		return fmt.Errorf("notebook: save %s: %w", id, apperr.ErrNotFound)
	}
	n.UpdatedAt = time.Now().UTC()
	data, err := document.EncodeNote(n)
	if err != nil {
		return fmt.Errorf("notebook: save: %w", err)
	}
	cs := document.Checksum(data)
	// Recorded before the write so the watcher event is recognised.
	s.written[id] = cs
	if err := s.store.WriteNote(id, data); err != nil {
		return fmt.Errorf("notebook: save: %w", err)
	}
	if err := index.IndexNote(s.db, n, cs); err != nil {
		s.logger.Warn("notebook: index failed", slog.String("note", id.String()), slog.String("error", err.Error()))
	}
	s.logger.Debug("notebook: saved", slog.String("note", id.String()))
	return nil
}

// Flush saves every note with pending edits.
func (s *Service) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for id := range s.dirty {
		if err := s.saveLocked(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunSaver flushes pending edits every save delay until ctx is cancelled,
// then flushes once more.
func (s *Service) RunSaver(ctx context.Context) error {
	if s.saveDelay <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(s.saveDelay)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return s.Flush()
		case <-t.C:
			if err := s.Flush(); err != nil {
				s.logger.Warn("notebook: flush failed", slog.String("error", err.Error()))
			}
		}
	}
}

// CreateNote adds an empty note and saves it.
func (s *Service) CreateNote(title string) (*models.NoteSummary, error) {
	n := document.NewNote(title)
	return s.AddNote(n)
}

// AddNote stores a fully built note, e.g. an imported outline.
func (s *Service) AddNote(n *document.Note) (*models.NoteSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes.Note(n.ID); ok {
		return nil, fmt.Errorf("notebook: add note %s: %w", n.ID, apperr.ErrAlreadyExists)
	}
	s.notes.Put(n)
	if err := s.saveLocked(n.ID); err != nil {
		s.notes.Delete(n.ID)
		return nil, err
	}
	if err := s.db.SetNoteReferences(n.ID, index.ImageRefs(n)); err != nil {
		s.logger.Warn("notebook: file references failed", slog.String("note", n.ID.String()), slog.String("error", err.Error()))
	}
	sum := s.summaryLocked(n)
	return &sum, nil
}

// DeleteNote removes a note from memory, the vault and the index.
func (s *Service) DeleteNote(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.notes.Delete(id) {
		return fmt.Errorf("notebook: delete %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.dirty, id)
	delete(s.written, id)
	s.notifyLocked(id, true)
	if err := s.store.DeleteNote(id); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("notebook: delete: %w", err)
	}
	return s.db.DeleteNote(id)
}

// ListNotes returns a summary of every loaded note.
func (s *Service) ListNotes() []models.NoteSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := s.notes.List()
	out := make([]models.NoteSummary, len(notes))
	for i, n := range notes {
		out[i] = s.summaryLocked(n)
	}
	return out
}

// GetNote returns the encoded document of a loaded note.
func (s *Service) GetNote(id uuid.UUID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes.Note(id)
	if !ok {
		return nil, fmt.Errorf("notebook: get %s: %w", id, apperr.ErrNotFound)
	}
	return document.EncodeNote(n)
}

// WithNote runs fn on a loaded note with the engine locked. fn must not
// modify the note.
func (s *Service) WithNote(id uuid.UUID, fn func(n *document.Note) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes.Note(id)
	if !ok {
		return fmt.Errorf("notebook: note %s: %w", id, apperr.ErrNotFound)
	}
	return fn(n)
}

// Search delegates full-text search to the index.
func (s *Service) Search(query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

func (s *Service) summaryLocked(n *document.Note) models.NoteSummary {
	return models.NoteSummary{
		ID:        n.ID,
		Title:     n.Title,
		Elements:  n.Len(),
		Checksum:  s.written[n.ID],
		UpdatedAt: n.UpdatedAt,
	}
}

func (s *Service) notifyLocked(id uuid.UUID, deleted bool) {
	for _, fn := range s.reload {
		fn(id, deleted)
	}
}

// UploadFile stores r as a new blob and registers it.
func (s *Service) UploadFile(name, mediaType string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New()
	size, err := s.store.WriteBlob(id, r)
	if err != nil {
		return nil, fmt.Errorf("notebook: upload: %w", err)
	}
	row := index.FileRow{ID: id, Name: name, MediaType: mediaType, Size: size, CreatedAt: time.Now().UTC()}
	if err := s.db.RegisterFile(row); err != nil {
		_ = s.store.DeleteBlob(id)
		return nil, fmt.Errorf("notebook: upload: %w", err)
	}
	s.logger.Info("notebook: file uploaded", slog.String("file", id.String()), slog.Int64("size", size))
	return &models.FileInfo{ID: id, Name: name, MediaType: mediaType, Size: size, CreatedAt: row.CreatedAt}, nil
}

// OpenFile returns a registered file and its contents.
func (s *Service) OpenFile(id uuid.UUID) (*models.FileInfo, io.ReadCloser, error) {
	fi, err := s.db.GetFile(id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.OpenBlob(id)
	if err != nil {
		return nil, nil, err
	}
	return fi, rc, nil
}

// CollectGarbage deletes files that have had no references for at least
// grace. It returns the number of files removed.
func (s *Service) CollectGarbage(grace time.Duration) (int, error) {
	ids, err := s.db.Unreferenced(time.Now().Add(-grace))
	if err != nil {
		return 0, fmt.Errorf("notebook: collect: %w", err)
	}
	removed := 0
	for _, id := range ids {
		if err := s.store.DeleteBlob(id); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("notebook: delete blob failed", slog.String("file", id.String()), slog.String("error", err.Error()))
			continue
		}
		if err := s.db.DeleteFile(id); err != nil {
			s.logger.Warn("notebook: delete file failed", slog.String("file", id.String()), slog.String("error", err.Error()))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("notebook: collected files", slog.Int("removed", removed))
	}
	return removed, nil
}

// RunCollector calls CollectGarbage every interval until ctx is cancelled.
func (s *Service) RunCollector(ctx context.Context, interval, grace time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := s.CollectGarbage(grace); err != nil {
				s.logger.Warn("notebook: collect failed", slog.String("error", err.Error()))
			}
		}
	}
}

// reloadNote replaces the in-memory copy of a note with data read from
// disk. It reports false for our own writes and unchanged content.
func (s *Service) reloadNote(id uuid.UUID, data []byte) (bool, error) {
	cs := document.Checksum(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written[id] == cs {
		return false, nil
	}
	n, err := document.DecodeNote(data)
	if err != nil {
		return false, err
	}
	if n.ID != id {
		return false, fmt.Errorf("notebook: reload: document id %s in file of %s: %w", n.ID, id, apperr.ErrInvalid)
	}
	s.notes.Put(n)
	s.written[id] = cs
	delete(s.dirty, id)
	s.notifyLocked(id, false)
	if err := s.db.SetNoteReferences(id, index.ImageRefs(n)); err != nil {
		s.logger.Warn("notebook: file references failed", slog.String("note", id.String()), slog.String("error", err.Error()))
	}
	if err := index.IndexNote(s.db, n, cs); err != nil {
		return true, err
	}
	return true, nil
}

// forgetNote drops a note whose file disappeared from the vault.
func (s *Service) forgetNote(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.notes.Delete(id) {
		return false
	}
	delete(s.written, id)
	delete(s.dirty, id)
	s.notifyLocked(id, true)
	if err := s.db.DeleteNote(id); err != nil {
		s.logger.Warn("notebook: unindex failed", slog.String("note", id.String()), slog.String("error", err.Error()))
	}
	return true
}
