package command

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/document"
)

// Outline editing shortcuts built from the primitive commands. They read the
// note once to compute their targets; the returned commands are replayable
// on their own.

// Indent moves an element to the end of its previous sibling's children.
func Indent(n *document.Note, id uuid.UUID) (*ReparentElement, error) {
	parent, ok := n.Parent(id)
	if !ok {
		return nil, fmt.Errorf("command: indent %s: %w", id, apperr.ErrNotFound)
	}
	i := parent.IndexOf(id)
	if i == 0 {
		return nil, fmt.Errorf("command: indent %s: no previous sibling: %w", id, apperr.ErrInvalid)
	}
	prev := parent.Child(i - 1)
	return NewReparentElement(n.ID, id, prev.ID, prev.ChildCount()), nil
}

// Outdent moves an element to right after its parent.
func Outdent(n *document.Note, id uuid.UUID) (*ReparentElement, error) {
	parent, ok := n.Parent(id)
	if !ok {
		return nil, fmt.Errorf("command: outdent %s: %w", id, apperr.ErrNotFound)
	}
	grand, ok := n.Parent(parent.ID)
	if !ok {
		return nil, fmt.Errorf("command: outdent %s: already top level: %w", id, apperr.ErrInvalid)
	}
	return NewReparentElement(n.ID, id, grand.ID, grand.IndexOf(parent.ID)+1), nil
}

// SplitElement breaks an element at cursor: the tail moves into a new
// sibling of the same kind inserted right after it, which takes the focus.
// Images keep their kind on the left half only.
func SplitElement(n *document.Note, id uuid.UUID, cursor int) (*Group, error) {
	el, ok := n.Find(id)
	if !ok {
		return nil, fmt.Errorf("command: split %s: %w", id, apperr.ErrNotFound)
	}
	parent, ok := n.Parent(id)
	if !ok {
		return nil, fmt.Errorf("command: split %s: no parent: %w", id, apperr.ErrInvalid)
	}
	if cursor < 0 || cursor > el.Text.Len() {
		return nil, fmt.Errorf("command: split %s: cursor %d out of [0,%d]: %w", id, cursor, el.Text.Len(), apperr.ErrInvalid)
	}
	tail := document.NewRange(cursor, el.Text.Len())
	kind := el.Kind
	if kind.IsImage() {
		kind = document.Plain()
	}
	next := document.NewElement(kind, el.Text.Extract(tail))
	insert, err := NewInsertElement(n.ID, parent.ID, next, id)
	if err != nil {
		return nil, err
	}
	return NewGroup("Split Element",
		NewReplaceText(n.ID, id, tail, document.Text{}),
		insert,
		NewFocusElement(n.ID, next.ID, 0),
	), nil
}
