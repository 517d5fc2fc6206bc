// Package command implements the undoable edit engine: every change to a
// note goes through a Command run by a Manager, which keeps the undo and
// redo history of one editing context and coalesces rapid low-level edits
// (keystrokes) into coarser undo steps.
//
// Commands are a closed set of variants. They hold ids, ranges and value
// snapshots only, never live elements, and look notes up again on every
// call, so they survive a note being reloaded between invocations.
package command

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/document"
)

// Command is a reversible unit of document mutation.
type Command interface {
	// Name is a static label used for logging and menu titles.
	Name() string
	// Run applies the forward effect. On false nothing was changed.
	Run(env *Env, ctx Context) bool
	// Undo reverses the most recent successful Run.
	Undo(env *Env, ctx Context) bool
	// Coalesce absorbs next, which has already run, into the receiver.
	// On false neither command is modified.
	Coalesce(next Command) bool

	// release is called once the command leaves the history for good.
	release(env *Env)
}

// NoteResolver looks notes up by id.
type NoteResolver interface {
	Note(id uuid.UUID) (*document.Note, bool)
}

// FileRefs is the reference-counting store of embedded files. Holder is the
// element (or placeholder) keeping fileID alive.
type FileRefs interface {
	AddReference(noteID, holderID, fileID uuid.UUID) error
	RemoveReference(noteID, holderID, fileID uuid.UUID) error
}

// Env carries the collaborators commands are executed against.
type Env struct {
	Notes  NoteResolver
	Files  FileRefs // optional
	Logger *slog.Logger
}

func (e *Env) log() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Env) note(id uuid.UUID) (*document.Note, bool) {
	if e.Notes == nil {
		return nil, false
	}
	return e.Notes.Note(id)
}

func (e *Env) resolve(noteID, elementID uuid.UUID) (*document.Note, *document.Element, bool) {
	n, ok := e.note(noteID)
	if !ok {
		return nil, nil, false
	}
	el, ok := n.Find(elementID)
	if !ok {
		return nil, nil, false
	}
	return n, el, true
}

func (e *Env) notFound(op string, noteID, elementID uuid.UUID) bool {
	e.log().Debug(op+": element not found",
		slog.String("note", noteID.String()),
		slog.String("element", elementID.String()))
	return false
}
