package command

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/document"
)

func isNewline(t document.Text) bool { return t.String() == "\n" }

// InsertText splices text into an element at a cursor position.
type InsertText struct {
	NoteID    uuid.UUID
	ElementID uuid.UUID
	Cursor    int
	Text      document.Text

	before  document.Text
	applied bool
}

// NewInsertText returns a command inserting text at cursor.
func NewInsertText(noteID, elementID uuid.UUID, text document.Text, cursor int) *InsertText {
	return &InsertText{NoteID: noteID, ElementID: elementID, Text: text, Cursor: cursor}
}

func (c *InsertText) Name() string { return "Insert Text" }

func (c *InsertText) Run(env *Env, _ Context) bool {
	_, el, ok := env.resolve(c.NoteID, c.ElementID)
	if !ok {
		return env.notFound("insert text", c.NoteID, c.ElementID)
	}
	if c.Cursor < 0 || c.Cursor > el.Text.Len() {
		env.log().Debug("insert text: cursor out of range",
			slog.Int("cursor", c.Cursor), slog.Int("len", el.Text.Len()))
		return false
	}
	c.before = el.Text
	el.Text = el.Text.Insert(c.Text, c.Cursor)
	c.applied = true
	return true
}

func (c *InsertText) Undo(env *Env, ctx Context) bool {
	if !c.applied {
		return false
	}
	_, el, ok := env.resolve(c.NoteID, c.ElementID)
	if !ok {
		return env.notFound("undo insert text", c.NoteID, c.ElementID)
	}
	el.Text = c.before
	c.applied = false
	if ctx != nil {
		ctx.SetFocus(Focus{NoteID: c.NoteID, ElementID: c.ElementID, Cursor: c.Cursor})
	}
	return true
}

// continuedBy reports whether n types on right where the receiver stopped.
// A lone newline always starts its own undo step.
func (c *InsertText) continuedBy(n *InsertText) bool {
	return n.NoteID == c.NoteID &&
		n.ElementID == c.ElementID &&
		n.Cursor == c.Cursor+c.Text.Len() &&
		!isNewline(c.Text) &&
		!isNewline(n.Text)
}

func (c *InsertText) Coalesce(next Command) bool {
	n, ok := next.(*InsertText)
	if !ok || !c.continuedBy(n) {
		return false
	}
	c.Text = c.Text.Append(n.Text)
	return true
}

func (c *InsertText) release(*Env) {}

// DeleteText removes a range of text, collapsing the selection and putting
// the caret at the deletion point.
type DeleteText struct {
	NoteID    uuid.UUID
	ElementID uuid.UUID
	Range     document.Range

	removed document.Text
	cancel  *CancelSelection
	focus   *FocusElement
	applied bool
}

// NewDeleteText returns a command deleting r.
func NewDeleteText(noteID, elementID uuid.UUID, r document.Range) *DeleteText {
	return &DeleteText{
		NoteID:    noteID,
		ElementID: elementID,
		Range:     r,
		cancel:    NewCancelSelection(),
		focus:     NewFocusElement(noteID, elementID, r.Start),
	}
}

// Backspace deletes the scalar before cursor.
func Backspace(noteID, elementID uuid.UUID, cursor int) *DeleteText {
	return NewDeleteText(noteID, elementID, document.NewRange(cursor-1, cursor))
}

// ForwardDelete deletes the scalar after cursor.
func ForwardDelete(noteID, elementID uuid.UUID, cursor int) *DeleteText {
	return NewDeleteText(noteID, elementID, document.NewRange(cursor, cursor+1))
}

func (c *DeleteText) Name() string { return "Delete Text" }

// Removed returns the text deleted by the last run.
func (c *DeleteText) Removed() document.Text { return c.removed }

func (c *DeleteText) Run(env *Env, ctx Context) bool {
	_, el, ok := env.resolve(c.NoteID, c.ElementID)
	if !ok {
		return env.notFound("delete text", c.NoteID, c.ElementID)
	}
	if c.Range.IsEmpty() || !c.Range.Valid(el.Text.Len()) {
		env.log().Debug("delete text: range out of bounds",
			slog.String("range", c.Range.String()), slog.Int("len", el.Text.Len()))
		return false
	}
	c.removed = el.Text.Extract(c.Range)
	el.Text = el.Text.Remove(c.Range.Len(), c.Range.Start)
	c.applied = true

	c.focus.Cursor = c.Range.Start
	c.cancel.Run(env, ctx)
	c.focus.Run(env, ctx)
	return true
}

func (c *DeleteText) Undo(env *Env, ctx Context) bool {
	if !c.applied {
		return false
	}
	_, el, ok := env.resolve(c.NoteID, c.ElementID)
	if !ok {
		return env.notFound("undo delete text", c.NoteID, c.ElementID)
	}
	if c.Range.Start > el.Text.Len() {
		return false
	}
	el.Text = el.Text.Insert(c.removed, c.Range.Start)
	c.applied = false

	c.focus.Undo(env, ctx)
	c.cancel.Undo(env, ctx)
	return true
}

// Coalesce merges repeated deletion in either direction: backspace ends
// the next range where this one starts, forward delete starts both ranges
// at the same point.
func (c *DeleteText) Coalesce(next Command) bool {
	n, ok := next.(*DeleteText)
	if !ok || n.NoteID != c.NoteID || n.ElementID != c.ElementID {
		return false
	}
	switch {
	case n.Range.End == c.Range.Start:
		c.removed = n.removed.Append(c.removed)
		c.Range = document.NewRange(n.Range.Start, n.Range.Start+c.removed.Len())
	case n.Range.Start == c.Range.Start:
		c.removed = c.removed.Append(n.removed)
		c.Range = document.NewRange(c.Range.Start, c.Range.Start+c.removed.Len())
	default:
		return false
	}
	c.focus.Coalesce(n.focus)
	c.cancel.Coalesce(n.cancel)
	return true
}

func (c *DeleteText) release(*Env) {}

// ReplaceText replaces a range with new text, e.g. typing over a selection.
type ReplaceText struct {
	NoteID    uuid.UUID
	ElementID uuid.UUID
	Range     document.Range
	Text      document.Text

	before  document.Text
	applied bool
}

// NewReplaceText returns a command replacing r with text.
func NewReplaceText(noteID, elementID uuid.UUID, r document.Range, text document.Text) *ReplaceText {
	return &ReplaceText{NoteID: noteID, ElementID: elementID, Range: r, Text: text}
}

func (c *ReplaceText) Name() string { return "Replace Text" }

func (c *ReplaceText) Run(env *Env, _ Context) bool {
	_, el, ok := env.resolve(c.NoteID, c.ElementID)
	if !ok {
		return env.notFound("replace text", c.NoteID, c.ElementID)
	}
	if !c.Range.Valid(el.Text.Len()) {
		env.log().Debug("replace text: range out of bounds",
			slog.String("range", c.Range.String()), slog.Int("len", el.Text.Len()))
		return false
	}
	c.before = el.Text
	el.Text = el.Text.ReplaceSubrange(c.Range, c.Text)
	c.applied = true
	return true
}

func (c *ReplaceText) Undo(env *Env, _ Context) bool {
	if !c.applied {
		return false
	}
	_, el, ok := env.resolve(c.NoteID, c.ElementID)
	if !ok {
		return env.notFound("undo replace text", c.NoteID, c.ElementID)
	}
	el.Text = c.before
	c.applied = false
	return true
}

// Coalesce absorbs typing, plain inserts or InputText, that continues
// right after the replacement.
func (c *ReplaceText) Coalesce(next Command) bool {
	var n *InsertText
	switch next := next.(type) {
	case *InsertText:
		n = next
	case *InputText:
		n = next.insert
	default:
		return false
	}
	if n.NoteID != c.NoteID ||
		n.ElementID != c.ElementID ||
		isNewline(n.Text) ||
		n.Cursor != c.Range.Start+c.Text.Len() {
		return false
	}
	c.Text = c.Text.Append(n.Text)
	return true
}

func (c *ReplaceText) release(*Env) {}
