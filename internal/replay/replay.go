// Package replay runs a script headlessly: the starting outline is imported
// into a private store, the steps run through a history manager with a
// headless view, and the result is exported back to an outline.
package replay

import (
	"fmt"
	"log/slog"

	"github.com/starford/sowilo/internal/command"
	"github.com/starford/sowilo/internal/document"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/outline"
	"github.com/starford/sowilo/internal/script"
	"github.com/starford/sowilo/internal/session"
)

// Report is the outcome of a replay. Steps lists the steps that applied;
// when Run fails, Outline still holds the note as far as it got.
type Report struct {
	Note    *document.Note
	Outline []byte
	Steps   []script.Result
	History models.History
	View    session.State
}

// Run replays s. historyLimit caps the undo stack as in a live session.
func Run(s *script.Script, historyLimit int, logger *slog.Logger) (*Report, error) {
	n, err := startNote(s)
	if err != nil {
		return nil, err
	}
	notes := document.NewStore()
	notes.Put(n)

	env := &command.Env{Notes: notes, Logger: logger}
	mgr := command.NewManager(env, command.WithHistoryLimit(historyLimit))
	view := session.NewView()
	runner := &script.Runner{Manager: mgr, Context: view, Notes: notes, NoteID: n.ID}

	results, runErr := runner.Apply(s.Steps)
	logger.Debug("replay: steps applied",
		slog.Int("applied", len(results)),
		slog.Int("total", len(s.Steps)))

	out, err := outline.Export(n)
	if err != nil {
		return nil, err
	}
	undo, redo := mgr.Len()
	rep := &Report{
		Note:    n,
		Outline: out,
		Steps:   results,
		History: models.History{
			CanUndo:  mgr.CanUndo(),
			CanRedo:  mgr.CanRedo(),
			UndoName: mgr.UndoName(),
			RedoName: mgr.RedoName(),
			Undo:     undo,
			Redo:     redo,
		},
		View: view.Snapshot(),
	}
	if runErr != nil {
		return rep, fmt.Errorf("replay: %w", runErr)
	}
	return rep, nil
}

func startNote(s *script.Script) (*document.Note, error) {
	if s.Outline == "" {
		return document.NewNote(s.Title), nil
	}
	n, err := outline.Import([]byte(s.Outline))
	if err != nil {
		return nil, fmt.Errorf("replay: outline: %w", err)
	}
	if s.Title != "" {
		n.Title = s.Title
	}
	return n, nil
}
