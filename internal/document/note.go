// Package document implements the outline document model: notes made of
// nested elements holding attributed text.
package document

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
)

// Note is the root container of an element tree. Top-level elements are
// children of Root, which carries no content of its own.
type Note struct {
	ID        uuid.UUID
	Title     string
	UpdatedAt time.Time

	root  *Element
	index map[uuid.UUID]*Element
}

// NewNote returns an empty note with fresh ids.
func NewNote(title string) *Note {
	return newNote(uuid.New(), title, &Element{ID: uuid.New(), Kind: Plain()})
}

func newNote(id uuid.UUID, title string, root *Element) *Note {
	n := &Note{ID: id, Title: title, root: root, index: make(map[uuid.UUID]*Element)}
	root.Walk(func(e *Element) bool {
		n.index[e.ID] = e
		return true
	})
	return n
}

// Root returns the invisible root element.
func (n *Note) Root() *Element { return n.root }

// Len returns the number of elements below the root.
func (n *Note) Len() int { return len(n.index) - 1 }

// Find returns the element with the given id.
func (n *Note) Find(id uuid.UUID) (*Element, bool) {
	e, ok := n.index[id]
	return e, ok
}

// Parent returns the element containing id.
func (n *Note) Parent(id uuid.UUID) (*Element, bool) {
	e, ok := n.index[id]
	if !ok || e.parent == uuid.Nil {
		return nil, false
	}
	return n.Find(e.parent)
}

// IndexInParent returns the position of id in its parent's child list.
func (n *Note) IndexInParent(id uuid.UUID) (int, bool) {
	p, ok := n.Parent(id)
	if !ok {
		return 0, false
	}
	return p.IndexOf(id), true
}

// Walk visits every element below the root in document order.
func (n *Note) Walk(fn func(*Element) bool) {
	for _, c := range n.root.children {
		c.Walk(fn)
	}
}

// Insert attaches the detached subtree el as the child of parentID at
// position at.
func (n *Note) Insert(parentID uuid.UUID, el *Element, at int) error {
	parent, ok := n.index[parentID]
	if !ok {
		return fmt.Errorf("document: insert: parent %s: %w", parentID, apperr.ErrNotFound)
	}
	if at < 0 || at > len(parent.children) {
		return fmt.Errorf("document: insert: index %d out of [0,%d]: %w", at, len(parent.children), apperr.ErrInvalid)
	}
	if err := n.checkDetached(el); err != nil {
		return err
	}
	n.attach(parent, el, at)
	return nil
}

// InsertAfter attaches el under parentID right after the sibling afterID,
// or at the head when afterID is uuid.Nil.
func (n *Note) InsertAfter(parentID uuid.UUID, el *Element, afterID uuid.UUID) error {
	if afterID == uuid.Nil {
		return n.Insert(parentID, el, 0)
	}
	parent, ok := n.index[parentID]
	if !ok {
		return fmt.Errorf("document: insert: parent %s: %w", parentID, apperr.ErrNotFound)
	}
	i := parent.IndexOf(afterID)
	if i < 0 {
		return fmt.Errorf("document: insert: sibling %s: %w", afterID, apperr.ErrNotFound)
	}
	return n.Insert(parentID, el, i+1)
}

// Remove detaches the subtree rooted at id and reports where it was.
func (n *Note) Remove(id uuid.UUID) (*Element, uuid.UUID, int, error) {
	if id == n.root.ID {
		return nil, uuid.Nil, 0, fmt.Errorf("document: remove root: %w", apperr.ErrInvalid)
	}
	el, ok := n.index[id]
	if !ok {
		return nil, uuid.Nil, 0, fmt.Errorf("document: remove %s: %w", id, apperr.ErrNotFound)
	}
	parent := n.index[el.parent]
	at := parent.IndexOf(id)
	n.detach(parent, at)
	return el, parent.ID, at, nil
}

// Move re-parents id under newParentID at position at, where at is
// interpreted after id has been detached from its current parent.
func (n *Note) Move(id, newParentID uuid.UUID, at int) error {
	if id == n.root.ID {
		return fmt.Errorf("document: move root: %w", apperr.ErrInvalid)
	}
	el, ok := n.index[id]
	if !ok {
		return fmt.Errorf("document: move %s: %w", id, apperr.ErrNotFound)
	}
	dst, ok := n.index[newParentID]
	if !ok {
		return fmt.Errorf("document: move: parent %s: %w", newParentID, apperr.ErrNotFound)
	}
	for p := dst; p != nil; p = n.index[p.parent] {
		if p.ID == id {
			return fmt.Errorf("document: move %s under its own descendant: %w", id, apperr.ErrInvalid)
		}
	}
	src := n.index[el.parent]
	limit := len(dst.children)
	if src == dst {
		limit--
	}
	if at < 0 || at > limit {
		return fmt.Errorf("document: move: index %d out of [0,%d]: %w", at, limit, apperr.ErrInvalid)
	}
	n.detach(src, src.IndexOf(id))
	n.attach(dst, el, at)
	return nil
}

func (n *Note) checkDetached(el *Element) error {
	if el.parent != uuid.Nil {
		return fmt.Errorf("document: insert %s: already attached: %w", el.ID, apperr.ErrConflict)
	}
	var dup uuid.UUID
	el.Walk(func(e *Element) bool {
		if _, exists := n.index[e.ID]; exists {
			dup = e.ID
			return false
		}
		return dup == uuid.Nil
	})
	if dup != uuid.Nil {
		return fmt.Errorf("document: insert %s: %w", dup, apperr.ErrAlreadyExists)
	}
	return nil
}

func (n *Note) attach(parent, el *Element, at int) {
	parent.children = slices.Insert(parent.children, at, el)
	el.parent = parent.ID
	el.Walk(func(e *Element) bool {
		n.index[e.ID] = e
		return true
	})
}

func (n *Note) detach(parent *Element, at int) {
	el := parent.children[at]
	parent.children = slices.Delete(parent.children, at, at+1)
	el.parent = uuid.Nil
	el.Walk(func(e *Element) bool {
		delete(n.index, e.ID)
		return true
	})
}
