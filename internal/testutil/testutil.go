// Package testutil provides shared test helpers for setting up vaults, databases
// and a loaded notebook with its session registry.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/sowilo/internal/document"
	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/notebook"
	"github.com/starford/sowilo/internal/session"
	"github.com/starford/sowilo/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "sowilo-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Stack is a loaded notebook wired to a session registry the way the
// server wires them.
type Stack struct {
	Vault    string
	Store    *storage.FS
	DB       *index.DB
	Book     *notebook.Service
	Sessions *session.Registry
	Events   chan session.Event
}

// NewStack builds an empty notebook in temporary storage. Session events
// are buffered in Events.
func NewStack(t *testing.T) *Stack {
	t.Helper()
	vault, store := TestVault(t)
	db := TestDB(t)
	logger := Logger()
	book := notebook.NewService(store, db, logger)
	if err := book.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	events := make(chan session.Event, 64)
	reg := session.NewRegistry(book, db, logger, session.WithPublisher(func(ev session.Event) {
		select {
		case events <- ev:
		default:
		}
	}))
	book.OnReload(reg.NoteChanged)
	return &Stack{Vault: vault, Store: store, DB: db, Book: book, Sessions: reg, Events: events}
}

// SampleNote builds a note with one plain top-level element per text.
func SampleNote(title string, texts ...string) *document.Note {
	n := document.NewNote(title)
	for i, s := range texts {
		_ = n.Insert(n.Root().ID, document.NewElement(document.Plain(), document.NewText(s)), i)
	}
	return n
}

// AddNote stores n in the stack's notebook.
func (s *Stack) AddNote(t *testing.T, n *document.Note) {
	t.Helper()
	if _, err := s.Book.AddNote(n); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
}
