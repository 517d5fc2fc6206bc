package command

import (
	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/document"
)

// SetSelection replaces the current selection range.
type SetSelection struct {
	Range document.Range

	prev    document.Range
	hadPrev bool
	applied bool
}

// NewSetSelection returns a command selecting r.
func NewSetSelection(r document.Range) *SetSelection {
	return &SetSelection{Range: r}
}

func (c *SetSelection) Name() string { return "Set Selection" }

func (c *SetSelection) Run(_ *Env, ctx Context) bool {
	if ctx == nil {
		return false
	}
	c.prev, c.hadPrev = ctx.Selection()
	ctx.SetSelection(c.Range)
	c.applied = true
	return true
}

func (c *SetSelection) Undo(_ *Env, ctx Context) bool {
	if ctx == nil || !c.applied {
		return false
	}
	if c.hadPrev {
		ctx.SetSelection(c.prev)
	} else {
		ctx.ClearSelection()
	}
	c.applied = false
	return true
}

// Coalesce keeps the latest range and the earliest prior selection.
func (c *SetSelection) Coalesce(next Command) bool {
	n, ok := next.(*SetSelection)
	if !ok {
		return false
	}
	c.Range = n.Range
	return true
}

func (c *SetSelection) release(*Env) {}
func (c *SetSelection) uiOnly()      {}

// CancelSelection clears the selection, remembering it and the caret.
type CancelSelection struct {
	prevSel   document.Range
	hadSel    bool
	prevFocus Focus
	hadFocus  bool
	applied   bool
}

// NewCancelSelection returns a command clearing the selection.
func NewCancelSelection() *CancelSelection {
	return &CancelSelection{}
}

func (c *CancelSelection) Name() string { return "Cancel Selection" }

func (c *CancelSelection) Run(_ *Env, ctx Context) bool {
	if ctx == nil {
		return false
	}
	c.prevSel, c.hadSel = ctx.Selection()
	c.prevFocus, c.hadFocus = ctx.Focus()
	ctx.ClearSelection()
	c.applied = true
	return true
}

func (c *CancelSelection) Undo(_ *Env, ctx Context) bool {
	if ctx == nil || !c.applied {
		return false
	}
	if c.hadSel {
		ctx.SetSelection(c.prevSel)
	}
	if c.hadFocus {
		ctx.SetFocus(c.prevFocus)
	}
	c.applied = false
	return true
}

// Coalesce absorbs any other CancelSelection; clearing twice is clearing once.
func (c *CancelSelection) Coalesce(next Command) bool {
	_, ok := next.(*CancelSelection)
	return ok
}

func (c *CancelSelection) release(*Env) {}
func (c *CancelSelection) uiOnly()      {}

// FocusElement moves the caret to a position inside an element.
type FocusElement struct {
	NoteID    uuid.UUID
	ElementID uuid.UUID
	Cursor    int

	prev    Focus
	hadPrev bool
	applied bool
}

// NewFocusElement returns a command focusing elementID at cursor.
func NewFocusElement(noteID, elementID uuid.UUID, cursor int) *FocusElement {
	return &FocusElement{NoteID: noteID, ElementID: elementID, Cursor: cursor}
}

func (c *FocusElement) Name() string { return "Focus Element" }

func (c *FocusElement) Run(env *Env, ctx Context) bool {
	if ctx == nil {
		return false
	}
	_, el, ok := env.resolve(c.NoteID, c.ElementID)
	if !ok {
		return env.notFound("focus element", c.NoteID, c.ElementID)
	}
	c.prev, c.hadPrev = ctx.Focus()
	ctx.SetFocus(Focus{NoteID: c.NoteID, ElementID: c.ElementID, Cursor: min(max(c.Cursor, 0), el.Text.Len())})
	c.applied = true
	return true
}

func (c *FocusElement) Undo(_ *Env, ctx Context) bool {
	if ctx == nil || !c.applied {
		return false
	}
	if c.hadPrev {
		ctx.SetFocus(c.prev)
	} else {
		ctx.ClearFocus()
	}
	c.applied = false
	return true
}

func (c *FocusElement) sameTarget(n *FocusElement) bool {
	return n.NoteID == c.NoteID && n.ElementID == c.ElementID
}

// Coalesce absorbs a following focus change within the same element.
func (c *FocusElement) Coalesce(next Command) bool {
	n, ok := next.(*FocusElement)
	if !ok || !c.sameTarget(n) {
		return false
	}
	c.Cursor = n.Cursor
	return true
}

func (c *FocusElement) release(*Env) {}
func (c *FocusElement) uiOnly()      {}
