package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/document"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/outline"
)

// ImportOutline adds a Markdown outline to the vault as a new note.
// A running server picks the note up through its watcher.
func ImportOutline(_ context.Context, r io.Reader, opts ...Option) (*models.NoteSummary, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read outline: %w", err)
	}
	n, err := outline.Import(data)
	if err != nil {
		return nil, err
	}

	logger := newLogger(os.Stderr, app.config.App.LogLevel)
	eng, err := openEngine(app.config, logger, nil)
	if err != nil {
		return nil, err
	}
	defer eng.close(logger)
	return eng.book.AddNote(n)
}

// ExportOutline renders a note of the vault as a Markdown outline.
func ExportOutline(_ context.Context, noteID uuid.UUID, opts ...Option) ([]byte, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(os.Stderr, app.config.App.LogLevel)
	eng, err := openEngine(app.config, logger, nil)
	if err != nil {
		return nil, err
	}
	defer eng.close(logger)

	var out []byte
	err = eng.book.WithNote(noteID, func(n *document.Note) error {
		var exportErr error
		out, exportErr = outline.Export(n)
		return exportErr
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("note exported", slog.String("note", noteID.String()), slog.Int("bytes", len(out)))
	return out, nil
}
