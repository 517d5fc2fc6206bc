package command

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/document"
)

// InsertElement inserts a new subtree under a parent, right after a
// sibling or at the head of the child list. The subtree is kept as a
// snapshot so every run attaches a fresh copy.
type InsertElement struct {
	NoteID    uuid.UUID
	ParentID  uuid.UUID
	AfterID   uuid.UUID // uuid.Nil inserts at the head
	ElementID uuid.UUID

	snapshot []byte
	files    []fileRef
	applied  bool
	retained bool
}

// NewInsertElement snapshots el for insertion under parentID after afterID.
func NewInsertElement(noteID, parentID uuid.UUID, el *document.Element, afterID uuid.UUID) (*InsertElement, error) {
	snap, err := document.EncodeElement(el)
	if err != nil {
		return nil, fmt.Errorf("command: insert element: %w", err)
	}
	return &InsertElement{
		NoteID:    noteID,
		ParentID:  parentID,
		AfterID:   afterID,
		ElementID: el.ID,
		snapshot:  snap,
		files:     imageRefs(el),
	}, nil
}

func (c *InsertElement) Name() string { return "Insert Element" }

func (c *InsertElement) Run(env *Env, _ Context) bool {
	n, ok := env.note(c.NoteID)
	if !ok {
		return env.notFound("insert element", c.NoteID, c.ParentID)
	}
	el, err := document.DecodeElement(c.snapshot)
	if err != nil {
		env.log().Warn("insert element: decode snapshot failed", slog.String("error", err.Error()))
		return false
	}
	if err := n.InsertAfter(c.ParentID, el, c.AfterID); err != nil {
		env.log().Debug("insert element: rejected", slog.String("error", err.Error()))
		return false
	}
	env.attachFiles("insert element", c.NoteID, c.files, c.retained)
	c.applied, c.retained = true, false
	return true
}

func (c *InsertElement) Undo(env *Env, _ Context) bool {
	if !c.applied {
		return false
	}
	n, ok := env.note(c.NoteID)
	if !ok {
		return env.notFound("undo insert element", c.NoteID, c.ElementID)
	}
	if _, _, _, err := n.Remove(c.ElementID); err != nil {
		env.log().Debug("undo insert element: rejected", slog.String("error", err.Error()))
		return false
	}
	env.retainFiles("undo insert element", c.NoteID, c.files)
	c.applied, c.retained = false, len(c.files) > 0
	return true
}

func (c *InsertElement) Coalesce(Command) bool { return false }

func (c *InsertElement) release(env *Env) {
	if c.retained {
		env.releaseFiles("insert element", c.NoteID, c.files)
		c.retained = false
	}
}

// DeleteElement detaches an element and its subtree. Images in the subtree
// swap their file reference for a placeholder so the blobs outlive the
// deletion for as long as it can be undone.
type DeleteElement struct {
	NoteID    uuid.UUID
	ElementID uuid.UUID

	parentID uuid.UUID
	index    int
	snapshot []byte
	files    []fileRef
	applied  bool
}

// NewDeleteElement returns a command deleting elementID.
func NewDeleteElement(noteID, elementID uuid.UUID) *DeleteElement {
	return &DeleteElement{NoteID: noteID, ElementID: elementID}
}

func (c *DeleteElement) Name() string { return "Delete Element" }

func (c *DeleteElement) Run(env *Env, _ Context) bool {
	n, el, ok := env.resolve(c.NoteID, c.ElementID)
	if !ok {
		return env.notFound("delete element", c.NoteID, c.ElementID)
	}
	snap, err := document.EncodeElement(el)
	if err != nil {
		env.log().Warn("delete element: encode snapshot failed", slog.String("error", err.Error()))
		return false
	}
	_, parentID, index, err := n.Remove(c.ElementID)
	if err != nil {
		env.log().Debug("delete element: rejected", slog.String("error", err.Error()))
		return false
	}
	c.parentID, c.index, c.snapshot = parentID, index, snap
	c.files = imageRefs(el)
	c.applied = true
	env.retainFiles("delete element", c.NoteID, c.files)
	return true
}

func (c *DeleteElement) Undo(env *Env, _ Context) bool {
	if !c.applied {
		return false
	}
	n, ok := env.note(c.NoteID)
	if !ok {
		return env.notFound("undo delete element", c.NoteID, c.ElementID)
	}
	el, err := document.DecodeElement(c.snapshot)
	if err != nil {
		env.log().Warn("undo delete element: decode snapshot failed", slog.String("error", err.Error()))
		return false
	}
	if err := n.Insert(c.parentID, el, c.index); err != nil {
		env.log().Debug("undo delete element: rejected", slog.String("error", err.Error()))
		return false
	}
	c.applied = false
	env.attachFiles("undo delete element", c.NoteID, c.files, true)
	return true
}

func (c *DeleteElement) Coalesce(Command) bool { return false }

func (c *DeleteElement) release(env *Env) {
	if c.applied {
		env.releaseFiles("delete element", c.NoteID, c.files)
		c.files = nil
	}
}

// ReparentElement moves an element under a new parent at a given index.
type ReparentElement struct {
	NoteID      uuid.UUID
	ElementID   uuid.UUID
	NewParentID uuid.UUID
	NewIndex    int

	oldParentID uuid.UUID
	oldIndex    int
	applied     bool
}

// NewReparentElement returns a command moving elementID under newParentID
// at newIndex.
func NewReparentElement(noteID, elementID, newParentID uuid.UUID, newIndex int) *ReparentElement {
	return &ReparentElement{NoteID: noteID, ElementID: elementID, NewParentID: newParentID, NewIndex: newIndex}
}

func (c *ReparentElement) Name() string { return "Move Element" }

func (c *ReparentElement) Run(env *Env, ctx Context) bool {
	n, ok := env.note(c.NoteID)
	if !ok {
		return env.notFound("reparent element", c.NoteID, c.ElementID)
	}
	parent, ok := n.Parent(c.ElementID)
	if !ok {
		return env.notFound("reparent element", c.NoteID, c.ElementID)
	}
	oldParentID, oldIndex := parent.ID, parent.IndexOf(c.ElementID)
	if err := n.Move(c.ElementID, c.NewParentID, c.NewIndex); err != nil {
		env.log().Debug("reparent element: rejected", slog.String("error", err.Error()))
		return false
	}
	c.oldParentID, c.oldIndex = oldParentID, oldIndex
	c.applied = true
	if ctx != nil {
		ctx.RemoveFromBreadcrumb(c.NoteID, c.ElementID)
		ctx.Expand(c.NoteID, c.NewParentID)
	}
	return true
}

func (c *ReparentElement) Undo(env *Env, ctx Context) bool {
	if !c.applied {
		return false
	}
	n, ok := env.note(c.NoteID)
	if !ok {
		return env.notFound("undo reparent element", c.NoteID, c.ElementID)
	}
	if err := n.Move(c.ElementID, c.oldParentID, c.oldIndex); err != nil {
		env.log().Debug("undo reparent element: rejected", slog.String("error", err.Error()))
		return false
	}
	c.applied = false
	if ctx != nil {
		ctx.RemoveFromBreadcrumb(c.NoteID, c.ElementID)
		ctx.Expand(c.NoteID, c.oldParentID)
	}
	return true
}

func (c *ReparentElement) Coalesce(Command) bool { return false }

func (c *ReparentElement) release(*Env) {}
