package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
)

func buildNote(t *testing.T) (*Note, *Element, *Element, *Element) {
	t.Helper()
	n := NewNote("Groceries")
	a := NewElement(Plain(), NewText("fruit"))
	b := NewElement(Plain(), NewText("apples"))
	c := NewElement(Heading(1), NewText("dairy"))
	if err := n.Insert(n.Root().ID, a, 0); err != nil {
		t.Fatal(err)
	}
	if err := n.Insert(a.ID, b, 0); err != nil {
		t.Fatal(err)
	}
	if err := n.InsertAfter(n.Root().ID, c, a.ID); err != nil {
		t.Fatal(err)
	}
	return n, a, b, c
}

func TestNoteInsertAndFind(t *testing.T) {
	n, a, b, c := buildNote(t)
	if n.Len() != 3 {
		t.Fatalf("Len = %d, want 3", n.Len())
	}
	if p, ok := n.Parent(b.ID); !ok || p.ID != a.ID {
		t.Fatal("b not under a")
	}
	if i, _ := n.IndexInParent(c.ID); i != 1 {
		t.Errorf("c index = %d, want 1", i)
	}
	if b.Parent() != a.ID {
		t.Errorf("b.Parent = %s, want %s", b.Parent(), a.ID)
	}

	var order []string
	n.Walk(func(e *Element) bool {
		order = append(order, e.Text.String())
		return true
	})
	if got := strings.Join(order, ","); got != "fruit,apples,dairy" {
		t.Errorf("walk order = %s", got)
	}
}

func TestNoteInsertRejects(t *testing.T) {
	n, a, _, _ := buildNote(t)
	if err := n.Insert(uuid.New(), NewElement(Plain(), Text{}), 0); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing parent: err = %v", err)
	}
	if err := n.Insert(a.ID, NewElement(Plain(), Text{}), 5); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bad index: err = %v", err)
	}
	if err := n.Insert(n.Root().ID, a, 0); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("attached element: err = %v", err)
	}
	dup := &Element{ID: a.ID, Kind: Plain()}
	if err := n.Insert(n.Root().ID, dup, 0); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate id: err = %v", err)
	}
	if n.Len() != 3 {
		t.Errorf("Len = %d after rejected inserts", n.Len())
	}
}

func TestNoteRemove(t *testing.T) {
	n, a, b, _ := buildNote(t)
	el, parentID, at, err := n.Remove(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if el != a || parentID != n.Root().ID || at != 0 {
		t.Fatalf("Remove = %v, %s, %d", el.ID, parentID, at)
	}
	if _, ok := n.Find(b.ID); ok {
		t.Fatal("descendant still indexed")
	}
	if n.Len() != 1 {
		t.Fatalf("Len = %d, want 1", n.Len())
	}
	if _, _, _, err := n.Remove(n.Root().ID); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("remove root: err = %v", err)
	}

	// The removed subtree can be attached again.
	if err := n.Insert(n.Root().ID, a, 1); err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	if _, ok := n.Find(b.ID); !ok {
		t.Fatal("descendant not reindexed")
	}
}

func TestNoteMove(t *testing.T) {
	n, a, b, c := buildNote(t)
	if err := n.Move(c.ID, a.ID, 1); err != nil {
		t.Fatal(err)
	}
	if a.ChildCount() != 2 || a.Child(1).ID != c.ID {
		t.Fatal("c not appended to a")
	}
	if n.Root().ChildCount() != 1 {
		t.Fatalf("root children = %d, want 1", n.Root().ChildCount())
	}
	if err := n.Move(a.ID, b.ID, 0); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("move under descendant: err = %v", err)
	}
	// Same-parent move: index is taken after detaching.
	if err := n.Move(b.ID, a.ID, 1); err != nil {
		t.Fatal(err)
	}
	if a.Child(0).ID != c.ID || a.Child(1).ID != b.ID {
		t.Fatal("same-parent move misplaced")
	}
	if err := n.Move(b.ID, a.ID, 2); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("same-parent index past end: err = %v", err)
	}
}

func TestStore(t *testing.T) {
	s := NewStore()
	n1, a, _, _ := buildNote(t)
	n2 := NewNote("Aardvark")
	s.Put(n1)
	s.Put(n2)

	list := s.List()
	if len(list) != 2 || list[0].ID != n2.ID {
		t.Fatalf("List not sorted by title")
	}
	if _, el, ok := s.ResolveElement(n1.ID, a.ID); !ok || el != a {
		t.Fatal("ResolveElement failed")
	}
	if _, _, ok := s.ResolveElement(n2.ID, a.ID); ok {
		t.Fatal("resolved element in wrong note")
	}
	if !s.Delete(n1.ID) || s.Delete(n1.ID) {
		t.Fatal("Delete result wrong")
	}
}
