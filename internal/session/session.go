// Package session manages editing contexts. A Session is one editor open
// on one note: its own undo history and its own headless View. All engine
// work runs under the notebook's lock, so sessions on the same note never
// interleave.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/command"
	"github.com/starford/sowilo/internal/document"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/script"
)

// Event kinds published after a session changed its note.
const (
	EventEdited = "note.edited"
	EventUndone = "note.undone"
	EventRedone = "note.redone"
)

// Event describes one change made through a session.
type Event struct {
	Kind      string         `json:"kind"`
	SessionID uuid.UUID      `json:"session_id"`
	NoteID    uuid.UUID      `json:"note_id"`
	Command   string         `json:"command"`
	History   models.History `json:"history"`
}

// Engine is the serialized access to the loaded notes, implemented by
// notebook.Service.
type Engine interface {
	Edit(noteID uuid.UUID, fn func() bool) (bool, error)
	View(fn func())
	Notes() *document.Store
}

// Session is one editing context.
type Session struct {
	ID        uuid.UUID `json:"id"`
	NoteID    uuid.UUID `json:"note_id"`
	CreatedAt time.Time `json:"created_at"`

	mgr  *command.Manager
	view *View
}

func (s *Session) history() models.History {
	h, r := s.mgr.Len()
	return models.History{
		CanUndo:  s.mgr.CanUndo(),
		CanRedo:  s.mgr.CanRedo(),
		UndoName: s.mgr.UndoName(),
		RedoName: s.mgr.RedoName(),
		Undo:     h,
		Redo:     r,
	}
}

// Registry tracks the open sessions.
type Registry struct {
	engine Engine
	env    *command.Env
	limit  int
	logger *slog.Logger

	publish func(Event)

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// Option configures a Registry.
type Option func(*Registry)

// WithHistoryLimit caps the undo history of every session.
func WithHistoryLimit(n int) Option {
	return func(r *Registry) { r.limit = n }
}

// WithPublisher sets the function receiving change events.
func WithPublisher(fn func(Event)) Option {
	return func(r *Registry) { r.publish = fn }
}

// NewRegistry creates a registry running commands against engine. files
// may be nil.
func NewRegistry(engine Engine, files command.FileRefs, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		engine:   engine,
		env:      &command.Env{Notes: engine.Notes(), Files: files, Logger: logger},
		logger:   logger,
		sessions: make(map[uuid.UUID]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open starts a session on a loaded note.
func (r *Registry) Open(noteID uuid.UUID) (*Session, error) {
	if _, ok := r.engine.Notes().Note(noteID); !ok {
		return nil, fmt.Errorf("session: open: note %s: %w", noteID, apperr.ErrNotFound)
	}
	s := &Session{
		ID:        uuid.New(),
		NoteID:    noteID,
		CreatedAt: time.Now().UTC(),
		mgr:       command.NewManager(r.env, command.WithHistoryLimit(r.limit)),
		view:      NewView(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.logger.Debug("session: opened", slog.String("session", s.ID.String()), slog.String("note", noteID.String()))
	return s, nil
}

// Get returns an open session.
func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session: %s: %w", id, apperr.ErrNotFound)
	}
	return s, nil
}

// List returns the open sessions.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Close ends a session and releases its history.
func (r *Registry) Close(id uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: close %s: %w", id, apperr.ErrNotFound)
	}
	r.engine.View(s.mgr.Clear)
	r.logger.Debug("session: closed", slog.String("session", id.String()))
	return nil
}

// CloseAll ends every open session and releases its history.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[uuid.UUID]*Session)
	r.mu.Unlock()
	r.engine.View(func() {
		for _, s := range sessions {
			s.mgr.Clear()
		}
	})
	r.logger.Debug("session: closed all", slog.Int("sessions", len(sessions)))
}

// Apply runs steps in a session. Each step that changes the note is
// saved and published. On failure the steps before it stay applied.
func (r *Registry) Apply(id uuid.UUID, steps []script.Step) ([]script.Result, models.History, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, models.History{}, err
	}
	runner := &script.Runner{Manager: s.mgr, Context: s.view, Notes: r.env.Notes, NoteID: s.NoteID}

	var (
		results []script.Result
		hist    models.History
		events  []Event
		runErr  error
	)
	_, saveErr := r.engine.Edit(s.NoteID, func() bool {
		results, runErr = runner.Apply(steps)
		hist = s.history()
		for _, res := range results {
			if script.IsNavigation(res.Op) {
				continue
			}
			events = append(events, Event{Kind: eventKind(res.Op), SessionID: s.ID, NoteID: s.NoteID, Command: res.Command})
		}
		return len(events) > 0
	})
	for _, ev := range events {
		ev.History = hist
		r.emit(ev)
	}
	return results, hist, errors.Join(runErr, saveErr)
}

// Run executes a single command in a session.
func (r *Registry) Run(id uuid.UUID, cmd command.Command) (models.History, error) {
	return r.do(id, EventEdited, cmd.Name(), func(s *Session) bool { return s.mgr.Run(cmd, s.view) })
}

// Undo reverts the newest history entry of a session.
func (r *Registry) Undo(id uuid.UUID) (models.History, error) {
	return r.do(id, EventUndone, "", func(s *Session) bool { return s.mgr.Undo(s.view) })
}

// Redo re-runs the newest undone entry of a session.
func (r *Registry) Redo(id uuid.UUID) (models.History, error) {
	return r.do(id, EventRedone, "", func(s *Session) bool { return s.mgr.Redo(s.view) })
}

func (r *Registry) do(id uuid.UUID, kind, name string, fn func(*Session) bool) (models.History, error) {
	s, err := r.Get(id)
	if err != nil {
		return models.History{}, err
	}
	var hist models.History
	changed, err := r.engine.Edit(s.NoteID, func() bool {
		if name == "" {
			if kind == EventUndone {
				name = s.mgr.UndoName()
			} else {
				name = s.mgr.RedoName()
			}
		}
		ok := fn(s)
		hist = s.history()
		return ok
	})
	if err != nil {
		return hist, err
	}
	if !changed {
		return hist, fmt.Errorf("session: %s %q: %w", kind, name, script.ErrRejected)
	}
	r.emit(Event{Kind: kind, SessionID: s.ID, NoteID: s.NoteID, Command: name, History: hist})
	return hist, nil
}

// State returns the history and view of a session.
func (r *Registry) State(id uuid.UUID) (models.History, State, error) {
	s, err := r.Get(id)
	if err != nil {
		return models.History{}, State{}, err
	}
	var (
		hist  models.History
		state State
	)
	r.engine.View(func() {
		hist = s.history()
		state = s.view.Snapshot()
		if f := state.Focus; f != nil && f.Cursor > 0 {
			if _, el, ok := r.engine.Notes().ResolveElement(s.NoteID, f.ElementID); ok && f.Cursor <= el.Text.Len() {
				for _, a := range el.Text.AttributesAt(f.Cursor - 1) {
					state.Caret = append(state.Caret, a.String())
				}
				slices.Sort(state.Caret)
			}
		}
	})
	return hist, state, nil
}

// NoteChanged is the notebook reload hook: sessions on a note replaced on
// disk lose their history and view, sessions on a deleted note are closed.
// It runs with the engine locked.
func (r *Registry) NoteChanged(noteID uuid.UUID, deleted bool) {
	r.mu.Lock()
	var affected []*Session
	for id, s := range r.sessions {
		if s.NoteID != noteID {
			continue
		}
		affected = append(affected, s)
		if deleted {
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range affected {
		s.mgr.Clear()
		s.view.Reset()
		r.logger.Info("session: reset after reload",
			slog.String("session", s.ID.String()),
			slog.String("note", noteID.String()),
			slog.Bool("closed", deleted))
	}
}

func (r *Registry) emit(ev Event) {
	if r.publish != nil {
		r.publish(ev)
	}
}

func eventKind(op string) string {
	switch op {
	case script.OpUndo:
		return EventUndone
	case script.OpRedo:
		return EventRedone
	}
	return EventEdited
}
