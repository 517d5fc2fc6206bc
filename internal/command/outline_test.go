package command

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
)

func TestIndentOutdent(t *testing.T) {
	f, els := newFixture(t, "a", "b", "c")
	m := NewManager(f.env)

	if _, err := Indent(f.note, els[0].ID); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("indent first: err = %v, want ErrInvalid", err)
	}

	in, err := Indent(f.note, els[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	m.Run(in, nil)
	if p, _ := f.note.Parent(els[1].ID); p.ID != els[0].ID {
		t.Fatalf("parent after indent = %s, want a", p.ID)
	}

	out, err := Outdent(f.note, els[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	m.Run(out, nil)
	if i, _ := f.note.IndexInParent(els[1].ID); i != 1 {
		t.Fatalf("index after outdent = %d, want 1", i)
	}
	if p, _ := f.note.Parent(els[1].ID); p.ID != f.note.Root().ID {
		t.Fatal("outdent did not return to root")
	}

	if _, err := Outdent(f.note, els[2].ID); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("outdent top level: err = %v, want ErrInvalid", err)
	}
}

func TestSplitElement(t *testing.T) {
	f, els := newFixture(t, "hello world")
	ctx := newFakeContext()
	m := NewManager(f.env)
	before := f.encode(t)

	g, err := SplitElement(f.note, els[0].ID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Run(g, ctx) {
		t.Fatal("split rejected")
	}
	if got := f.text(t, els[0].ID); got != "hello" {
		t.Fatalf("head = %q, want %q", got, "hello")
	}
	next := f.note.Root().Child(1)
	if got := next.Text.String(); got != " world" {
		t.Fatalf("tail = %q, want %q", got, " world")
	}
	if ctx.focus.ElementID != next.ID || ctx.focus.Cursor != 0 {
		t.Errorf("focus = %+v, want start of new element", ctx.focus)
	}

	m.Undo(ctx)
	if got := f.encode(t); got != before {
		t.Fatalf("undo split mismatch:\n got %s\nwant %s", got, before)
	}
}

func TestSplitHeadless(t *testing.T) {
	f, els := newFixture(t, "abc")
	g, err := SplitElement(f.note, els[0].ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !NewManager(f.env).Run(g, nil) {
		t.Fatal("split rejected without context")
	}
	if f.note.Len() != 2 {
		t.Fatalf("note len = %d, want 2", f.note.Len())
	}
}

func TestGroupRollsBackOnFailure(t *testing.T) {
	f, els := newFixture(t, "abc")
	before := f.encode(t)
	m := NewManager(f.env)

	g := NewGroup("Broken",
		TypeText(f.note.ID, els[0].ID, "x", 0),
		NewDeleteElement(f.note.ID, uuid.New()),
	)
	if m.Run(g, nil) {
		t.Fatal("group with failing step succeeded")
	}
	if got := f.encode(t); got != before {
		t.Fatalf("document changed:\n got %s\nwant %s", got, before)
	}
	if m.CanUndo() {
		t.Fatal("failed group recorded")
	}
}
