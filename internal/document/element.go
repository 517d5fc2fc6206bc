package document

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
)

// Element is one node of a note's outline. The parent owns its children;
// a child refers back to its parent by id only.
type Element struct {
	ID   uuid.UUID
	Kind Kind
	Text Text

	parent   uuid.UUID
	children []*Element
}

// NewElement returns a detached element with a fresh id.
func NewElement(kind Kind, text Text) *Element {
	return &Element{ID: uuid.New(), Kind: kind, Text: text}
}

// Parent returns the id of the containing element, or uuid.Nil when detached.
func (e *Element) Parent() uuid.UUID { return e.parent }

// Children returns a copy of the ordered child list.
func (e *Element) Children() []*Element { return slices.Clone(e.children) }

// ChildCount returns the number of direct children.
func (e *Element) ChildCount() int { return len(e.children) }

// Child returns the i-th child.
func (e *Element) Child(i int) *Element { return e.children[i] }

// IndexOf returns the position of the direct child id, or -1.
func (e *Element) IndexOf(id uuid.UUID) int {
	return slices.IndexFunc(e.children, func(c *Element) bool { return c.ID == id })
}

// Append adds child at the end of a detached subtree under construction.
// Use Note.Insert for elements that belong to a note.
func (e *Element) Append(child *Element) error {
	if child.parent != uuid.Nil {
		return fmt.Errorf("document: append %s: already attached: %w", child.ID, apperr.ErrConflict)
	}
	child.parent = e.ID
	e.children = append(e.children, child)
	return nil
}

// Walk visits e and its descendants depth-first, pre-order. Returning
// false from fn skips the subtree below the visited element.
func (e *Element) Walk(fn func(*Element) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.children {
		c.Walk(fn)
	}
}

// Len returns the number of elements in the subtree rooted at e, e included.
func (e *Element) Len() int {
	n := 0
	e.Walk(func(*Element) bool { n++; return true })
	return n
}
