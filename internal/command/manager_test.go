package command

import (
	"testing"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/document"
)

func TestTypingCoalescesIntoOneEntry(t *testing.T) {
	f, els := newFixture(t, "")
	id := els[0].ID
	m := NewManager(f.env)

	if !m.Run(TypeText(f.note.ID, id, "a", 0), nil) {
		t.Fatal("first keystroke rejected")
	}
	if !m.Run(TypeText(f.note.ID, id, "b", 1), nil) {
		t.Fatal("second keystroke rejected")
	}
	if got := f.text(t, id); got != "ab" {
		t.Fatalf("text = %q, want %q", got, "ab")
	}
	if h, _ := m.Len(); h != 1 {
		t.Fatalf("history = %d, want 1", h)
	}
	if !m.Undo(nil) {
		t.Fatal("Undo failed")
	}
	if got := f.text(t, id); got != "" {
		t.Errorf("text after undo = %q, want empty", got)
	}
}

func TestNewlineStartsOwnStep(t *testing.T) {
	f, els := newFixture(t, "")
	id := els[0].ID
	m := NewManager(f.env)

	cursor := 0
	for _, s := range []string{"h", "e", "l", "l", "o", "\n", "w", "o", "r", "l", "d"} {
		if !m.Run(TypeText(f.note.ID, id, s, cursor), nil) {
			t.Fatalf("typing %q at %d rejected", s, cursor)
		}
		cursor++
	}
	if got := f.text(t, id); got != "hello\nworld" {
		t.Fatalf("text = %q", got)
	}
	h, _ := m.Len()
	if h != 3 {
		t.Fatalf("history = %d, want 3", h)
	}
	m.Undo(nil)
	if got := f.text(t, id); got != "hello\n" {
		t.Errorf("after one undo = %q, want %q", got, "hello\n")
	}
	m.Undo(nil)
	if got := f.text(t, id); got != "hello" {
		t.Errorf("after two undos = %q, want %q", got, "hello")
	}
}

func TestNonAdjacentInsertsDoNotCoalesce(t *testing.T) {
	f, els := newFixture(t, "xyz")
	id := els[0].ID
	m := NewManager(f.env)

	m.Run(NewInsertText(f.note.ID, id, document.NewText("a"), 0), nil)
	m.Run(NewInsertText(f.note.ID, id, document.NewText("b"), 3), nil)
	if h, _ := m.Len(); h != 2 {
		t.Fatalf("history = %d, want 2", h)
	}
	if got := f.text(t, id); got != "axybz" {
		t.Fatalf("text = %q", got)
	}
}

func TestRedoClearedByNewCommand(t *testing.T) {
	f, els := newFixture(t, "one", "two")
	m := NewManager(f.env)

	m.Run(NewDeleteElement(f.note.ID, els[0].ID), nil)
	m.Run(NewDeleteElement(f.note.ID, els[1].ID), nil)
	m.Undo(nil)
	if !m.CanRedo() {
		t.Fatal("expected redo entry")
	}
	m.Run(TypeText(f.note.ID, els[1].ID, "!", 3), nil)
	if m.CanRedo() {
		t.Fatal("redo stack should be cleared by a new command")
	}
	if m.Redo(nil) {
		t.Fatal("Redo succeeded on empty stack")
	}
}

func TestEditAfterUndoDoesNotCoalesce(t *testing.T) {
	f, els := newFixture(t, "")
	id := els[0].ID
	m := NewManager(f.env)

	m.Run(TypeText(f.note.ID, id, "a", 0), nil)
	m.Run(NewFormatKind(f.note.ID, id, document.Heading(1)), nil)
	m.Undo(nil)
	m.Run(TypeText(f.note.ID, id, "b", 1), nil)
	if h, r := m.Len(); h != 2 || r != 0 {
		t.Fatalf("history, redo = %d, %d; want 2, 0", h, r)
	}
	m.Undo(nil)
	if got := f.text(t, id); got != "a" {
		t.Fatalf("text = %q, want %q", got, "a")
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	f, els := newFixture(t, "alpha", "beta", "gamma")
	nid := f.note.ID
	m := NewManager(f.env)
	before := f.encode(t)

	cmds := []Command{
		NewReplaceText(nid, els[0].ID, document.NewRange(0, 1), document.NewText("A")),
		NewFormatAttribute(nid, els[1].ID, document.Bold, document.NewRange(0, 4)),
		NewReparentElement(nid, els[2].ID, els[0].ID, 0),
		NewFormatKind(nid, els[0].ID, document.Heading(1)),
		NewDeleteText(nid, els[1].ID, document.NewRange(1, 3)),
		NewDeleteElement(nid, els[1].ID),
	}
	for _, c := range cmds {
		if !m.Run(c, nil) {
			t.Fatalf("%s rejected", c.Name())
		}
	}
	after := f.encode(t)
	if h, _ := m.Len(); h != len(cmds) {
		t.Fatalf("history = %d, want %d", h, len(cmds))
	}

	for range cmds {
		if !m.Undo(nil) {
			t.Fatal("Undo failed")
		}
	}
	if got := f.encode(t); got != before {
		t.Fatalf("undo all mismatch:\n got %s\nwant %s", got, before)
	}
	for range cmds {
		if !m.Redo(nil) {
			t.Fatal("Redo failed")
		}
	}
	if got := f.encode(t); got != after {
		t.Fatalf("redo all mismatch:\n got %s\nwant %s", got, after)
	}
}

func TestFailedRunRecordsNothing(t *testing.T) {
	f, els := newFixture(t, "abc")
	m := NewManager(f.env)
	before := f.encode(t)

	missing := uuid.New()
	cmds := []Command{
		TypeText(f.note.ID, missing, "x", 0),
		NewDeleteText(f.note.ID, missing, document.NewRange(0, 1)),
		NewReplaceText(f.note.ID, missing, document.NewRange(0, 1), document.NewText("y")),
		NewDeleteElement(f.note.ID, missing),
		NewReparentElement(f.note.ID, missing, f.note.Root().ID, 0),
		NewFormatKind(f.note.ID, missing, document.Heading(2)),
		NewFormatAttribute(uuid.New(), els[0].ID, document.Bold, document.NewRange(0, 1)),
		TypeText(f.note.ID, els[0].ID, "x", 10),
		NewDeleteText(f.note.ID, els[0].ID, document.NewRange(2, 9)),
	}
	for _, c := range cmds {
		if m.Run(c, nil) {
			t.Errorf("%s on missing target succeeded", c.Name())
		}
	}
	if m.CanUndo() {
		t.Error("failed commands were recorded")
	}
	if got := f.encode(t); got != before {
		t.Errorf("document changed:\n got %s\nwant %s", got, before)
	}
}

func TestUndoWithoutRunFails(t *testing.T) {
	f, els := newFixture(t, "abc")
	env := f.env
	cmds := []Command{
		TypeText(f.note.ID, els[0].ID, "x", 0),
		NewDeleteText(f.note.ID, els[0].ID, document.NewRange(0, 1)),
		NewReplaceText(f.note.ID, els[0].ID, document.NewRange(0, 1), document.NewText("y")),
		NewDeleteElement(f.note.ID, els[0].ID),
		NewReparentElement(f.note.ID, els[0].ID, f.note.Root().ID, 0),
		NewFormatKind(f.note.ID, els[0].ID, document.Heading(2)),
		NewFormatAttribute(f.note.ID, els[0].ID, document.Bold, document.NewRange(0, 1)),
	}
	for _, c := range cmds {
		if c.Undo(env, nil) {
			t.Errorf("%s: undo before run succeeded", c.Name())
		}
	}
	if got := f.text(t, els[0].ID); got != "abc" {
		t.Errorf("text = %q, want %q", got, "abc")
	}
}

func TestHistoryLimitReleasesEvicted(t *testing.T) {
	f, _ := newFixture(t)
	nid, root := f.note.ID, f.note.Root().ID
	m := NewManager(f.env, WithHistoryLimit(2))

	fileID := uuid.New()
	img := document.NewElement(document.Image(fileID, "https://example.com/a.png", document.DisplayInfo{}), document.Text{})
	ins, err := NewInsertElement(nid, root, img, uuid.Nil)
	if err != nil {
		t.Fatal(err)
	}
	m.Run(ins, nil)
	m.Run(NewDeleteElement(nid, img.ID), nil)
	if got := f.files.count(fileID); got != 1 {
		t.Fatalf("refs after delete = %d, want 1 (retained)", got)
	}

	// Two more entries push both image commands out of the history.
	for i := range 2 {
		el := document.NewElement(document.Plain(), document.NewText("x"))
		c, err := NewInsertElement(nid, root, el, uuid.Nil)
		if err != nil {
			t.Fatal(err)
		}
		if !m.Run(c, nil) {
			t.Fatalf("insert %d rejected", i)
		}
	}
	if h, _ := m.Len(); h != 2 {
		t.Fatalf("history = %d, want 2", h)
	}
	if got := f.files.count(fileID); got != 0 {
		t.Fatalf("refs after eviction = %d, want 0", got)
	}
}

func TestClearReleasesUndoneInsert(t *testing.T) {
	f, _ := newFixture(t)
	nid, root := f.note.ID, f.note.Root().ID
	m := NewManager(f.env)

	fileID := uuid.New()
	img := document.NewElement(document.Image(fileID, "", document.DisplayInfo{}), document.Text{})
	ins, _ := NewInsertElement(nid, root, img, uuid.Nil)
	m.Run(ins, nil)
	m.Undo(nil)
	if got := f.files.count(fileID); got != 1 {
		t.Fatalf("refs after undo = %d, want 1 (retained)", got)
	}
	m.Clear()
	if got := f.files.count(fileID); got != 0 {
		t.Fatalf("refs after clear = %d, want 0", got)
	}
	if m.CanUndo() || m.CanRedo() {
		t.Fatal("stacks not empty after Clear")
	}
}

func TestUndoRedoNames(t *testing.T) {
	f, els := newFixture(t, "abc")
	m := NewManager(f.env)
	if m.UndoName() != "" || m.RedoName() != "" {
		t.Fatal("names on empty manager")
	}
	m.Run(TypeText(f.note.ID, els[0].ID, "x", 0), nil)
	if got := m.UndoName(); got != "Typing" {
		t.Errorf("UndoName = %q, want %q", got, "Typing")
	}
	m.Undo(nil)
	if got := m.RedoName(); got != "Typing" {
		t.Errorf("RedoName = %q, want %q", got, "Typing")
	}
}
