package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/command"
	"github.com/starford/sowilo/internal/document"
	"github.com/starford/sowilo/internal/script"
)

type fakeEngine struct {
	mu    sync.Mutex
	notes *document.Store
	saves int
}

func (e *fakeEngine) Edit(_ uuid.UUID, fn func() bool) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !fn() {
		return false, nil
	}
	e.saves++
	return true, nil
}

func (e *fakeEngine) View(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

func (e *fakeEngine) Notes() *document.Store { return e.notes }

type fixture struct {
	engine *fakeEngine
	reg    *Registry
	note   *document.Note
	events []Event
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	n := document.NewNote("session")
	_ = n.Insert(n.Root().ID, document.NewElement(document.Plain(), document.NewText("hello")), 0)
	store := document.NewStore()
	store.Put(n)
	f := &fixture{engine: &fakeEngine{notes: store}, note: n}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append(opts, WithPublisher(func(ev Event) { f.events = append(f.events, ev) }))
	f.reg = NewRegistry(f.engine, nil, logger, opts...)
	return f
}

func (f *fixture) text() string { return f.note.Root().Child(0).Text.String() }

func TestOpenUnknownNote(t *testing.T) {
	f := newFixture(t)
	if _, err := f.reg.Open(uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApplyUndoRedo(t *testing.T) {
	f := newFixture(t)
	s, err := f.reg.Open(f.note.ID)
	if err != nil {
		t.Fatal(err)
	}

	_, hist, err := f.reg.Apply(s.ID, []script.Step{
		{Op: script.OpType, Element: "0", Text: " ", Cursor: 5},
		{Op: script.OpType, Element: "0", Text: "you", Cursor: 6},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if f.text() != "hello you" {
		t.Fatalf("text = %q", f.text())
	}
	if hist.Undo != 1 || !hist.CanUndo || hist.UndoName != "Typing" {
		t.Errorf("history = %+v", hist)
	}
	if len(f.events) != 2 || f.events[0].Kind != EventEdited || f.events[1].History.Undo != 1 {
		t.Errorf("events = %+v", f.events)
	}

	hist, err = f.reg.Undo(s.ID)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if f.text() != "hello" || !hist.CanRedo || hist.RedoName != "Typing" {
		t.Errorf("after undo: %q %+v", f.text(), hist)
	}
	if last := f.events[len(f.events)-1]; last.Kind != EventUndone || last.Command != "Typing" {
		t.Errorf("undo event = %+v", last)
	}

	if _, err := f.reg.Redo(s.ID); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if f.text() != "hello you" {
		t.Errorf("after redo: %q", f.text())
	}
	if _, err := f.reg.Redo(s.ID); !errors.Is(err, script.ErrRejected) {
		t.Errorf("second redo err = %v, want ErrRejected", err)
	}
}

func TestSessionsHaveOwnHistory(t *testing.T) {
	f := newFixture(t)
	a, _ := f.reg.Open(f.note.ID)
	b, _ := f.reg.Open(f.note.ID)

	el := f.note.Root().Child(0).ID
	if _, err := f.reg.Run(a.ID, command.TypeText(f.note.ID, el, "!", 5)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reg.Undo(b.ID); !errors.Is(err, script.ErrRejected) {
		t.Fatalf("undo in other session err = %v", err)
	}
	if _, err := f.reg.Undo(a.ID); err != nil {
		t.Fatalf("Undo: %v", err)
	}
}

func TestApplyStopsAndReportsPartial(t *testing.T) {
	f := newFixture(t)
	s, _ := f.reg.Open(f.note.ID)
	results, hist, err := f.reg.Apply(s.ID, []script.Step{
		{Op: script.OpType, Element: "0", Text: "!", Cursor: 5},
		{Op: script.OpDeleteElement, Element: "7"},
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(results) != 1 || hist.Undo != 1 {
		t.Errorf("results = %d, history = %+v", len(results), hist)
	}
	if f.engine.saves != 1 {
		t.Errorf("saves = %d, want 1", f.engine.saves)
	}
}

func TestViewState(t *testing.T) {
	f := newFixture(t)
	s, _ := f.reg.Open(f.note.ID)
	_, _, err := f.reg.Apply(s.ID, []script.Step{
		{Op: script.OpType, Element: "0", Text: "!", Cursor: 5},
		{Op: script.OpSelect, Start: 1, End: 3},
		{Op: script.OpFormatAttribute, Element: "0", Attribute: "bold", Start: 1, End: 3},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	_, state, err := f.reg.State(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if state.Focus == nil || state.Focus.Cursor != 6 {
		t.Errorf("focus = %+v", state.Focus)
	}
	if state.Selection == nil || *state.Selection != document.NewRange(1, 3) {
		t.Errorf("selection = %+v", state.Selection)
	}
	if len(state.Active) != 1 || state.Active[0] != "bold" {
		t.Errorf("active = %v", state.Active)
	}
	if len(state.Caret) != 0 {
		t.Errorf("caret after plain text = %v, want none", state.Caret)
	}

	if _, _, err := f.reg.Apply(s.ID, []script.Step{{Op: script.OpFocus, Element: "0", Cursor: 3}}); err != nil {
		t.Fatalf("Apply focus: %v", err)
	}
	_, state, _ = f.reg.State(s.ID)
	if len(state.Caret) != 1 || state.Caret[0] != "bold" {
		t.Errorf("caret = %v, want [bold]", state.Caret)
	}
}

func TestZoomFollowsMovedElement(t *testing.T) {
	f := newFixture(t)
	child := document.NewElement(document.Plain(), document.NewText("child"))
	_ = f.note.Insert(f.note.Root().ID, child, 1)
	s, _ := f.reg.Open(f.note.ID)

	results, hist, err := f.reg.Apply(s.ID, []script.Step{{Op: script.OpZoom, Element: "1"}})
	if err != nil {
		t.Fatalf("Apply zoom: %v", err)
	}
	if results[0].Element != child.ID {
		t.Errorf("zoomed element = %s, want %s", results[0].Element, child.ID)
	}
	if hist.Undo != 0 || f.engine.saves != 0 || len(f.events) != 0 {
		t.Errorf("zoom recorded: history %+v, saves %d, events %d", hist, f.engine.saves, len(f.events))
	}
	_, state, _ := f.reg.State(s.ID)
	if len(state.Breadcrumb) != 1 || state.Breadcrumb[0] != child.ID {
		t.Fatalf("breadcrumb = %v", state.Breadcrumb)
	}

	if _, _, err := f.reg.Apply(s.ID, []script.Step{{Op: script.OpReparent, Element: "1", Parent: "0"}}); err != nil {
		t.Fatalf("Apply reparent: %v", err)
	}
	_, state, _ = f.reg.State(s.ID)
	if len(state.Breadcrumb) != 0 {
		t.Errorf("breadcrumb after move = %v, want empty", state.Breadcrumb)
	}

	_, _, err = f.reg.Apply(s.ID, []script.Step{{Op: script.OpZoomOut}})
	if !errors.Is(err, script.ErrRejected) {
		t.Errorf("zoom out at top err = %v, want ErrRejected", err)
	}
}

func TestNoteChangedResetsSessions(t *testing.T) {
	f := newFixture(t)
	s, _ := f.reg.Open(f.note.ID)
	other, _ := f.reg.Open(f.note.ID)
	_, _, _ = f.reg.Apply(s.ID, []script.Step{{Op: script.OpType, Element: "0", Text: "!", Cursor: 5}})

	f.engine.View(func() { f.reg.NoteChanged(f.note.ID, false) })
	hist, state, err := f.reg.State(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if hist.CanUndo || state.Focus != nil {
		t.Errorf("session not reset: %+v %+v", hist, state)
	}

	f.engine.View(func() { f.reg.NoteChanged(f.note.ID, true) })
	if _, err := f.reg.Get(other.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("session on deleted note still open: %v", err)
	}
}

func TestCloseReleasesHistory(t *testing.T) {
	f := newFixture(t)
	s, _ := f.reg.Open(f.note.ID)
	if err := f.reg.Close(s.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.reg.Close(s.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second close err = %v", err)
	}
	if len(f.reg.List()) != 0 {
		t.Error("closed session still listed")
	}
}

type countingFiles struct {
	mu   sync.Mutex
	refs map[uuid.UUID]int
}

func (c *countingFiles) AddReference(_, _, file uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[file]++
	return nil
}

func (c *countingFiles) RemoveReference(_, _, file uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[file]--
	return nil
}

func TestCloseAllReleasesPlaceholders(t *testing.T) {
	f := newFixture(t)
	files := &countingFiles{refs: make(map[uuid.UUID]int)}
	f.reg = NewRegistry(f.engine, files, slog.New(slog.NewTextHandler(io.Discard, nil)))

	fileID := uuid.New()
	img := document.NewElement(document.Image(fileID, "", document.DisplayInfo{}), document.Text{})
	_ = f.note.Insert(f.note.Root().ID, img, 1)
	files.refs[fileID] = 1

	s, _ := f.reg.Open(f.note.ID)
	other, _ := f.reg.Open(f.note.ID)
	if _, err := f.reg.Run(s.ID, command.NewDeleteElement(f.note.ID, img.ID)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := files.refs[fileID]; got != 1 {
		t.Fatalf("refs while undoable = %d, want 1", got)
	}

	f.reg.CloseAll()
	if got := files.refs[fileID]; got != 0 {
		t.Errorf("refs after CloseAll = %d, want 0", got)
	}
	if len(f.reg.List()) != 0 {
		t.Error("sessions still listed")
	}
	if _, err := f.reg.Get(other.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after CloseAll err = %v", err)
	}
}

func TestHistoryLimit(t *testing.T) {
	f := newFixture(t, WithHistoryLimit(2))
	s, _ := f.reg.Open(f.note.ID)
	for i := range 3 {
		_, _, err := f.reg.Apply(s.ID, []script.Step{{Op: script.OpFormatKind, Element: "0", Kind: "quote"}})
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	hist, _, _ := f.reg.State(s.ID)
	if hist.Undo != 2 {
		t.Errorf("history = %d, want 2", hist.Undo)
	}
}
