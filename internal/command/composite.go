package command

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/document"
)

// InputText is typing: insert the text, collapse the selection and leave
// the caret after the inserted text.
type InputText struct {
	insert *InsertText
	cancel *CancelSelection
	focus  *FocusElement
}

// NewInputText returns the composite typing text at cursor.
func NewInputText(noteID, elementID uuid.UUID, text document.Text, cursor int) *InputText {
	return &InputText{
		insert: NewInsertText(noteID, elementID, text, cursor),
		cancel: NewCancelSelection(),
		focus:  NewFocusElement(noteID, elementID, cursor+text.Len()),
	}
}

// TypeText is NewInputText for unattributed text.
func TypeText(noteID, elementID uuid.UUID, s string, cursor int) *InputText {
	return NewInputText(noteID, elementID, document.NewText(s), cursor)
}

func (c *InputText) Name() string { return "Typing" }

// Text returns the text inserted so far, coalesced keystrokes included.
func (c *InputText) Text() document.Text { return c.insert.Text }

func (c *InputText) Run(env *Env, ctx Context) bool {
	if !c.insert.Run(env, ctx) {
		return false
	}
	c.cancel.Run(env, ctx)
	c.focus.Run(env, ctx)
	return true
}

func (c *InputText) Undo(env *Env, ctx Context) bool {
	if !c.insert.applied {
		return false
	}
	c.focus.Undo(env, ctx)
	c.cancel.Undo(env, ctx)
	return c.insert.Undo(env, ctx)
}

func (c *InputText) Coalesce(next Command) bool {
	n, ok := next.(*InputText)
	if !ok || !c.insert.continuedBy(n.insert) || !c.focus.sameTarget(n.focus) {
		return false
	}
	c.insert.Coalesce(n.insert)
	c.focus.Coalesce(n.focus)
	c.cancel.Coalesce(n.cancel)
	return true
}

func (c *InputText) release(*Env) {}

// Group runs a fixed sequence of commands as one undo step. If a document
// command fails, the ones already run are rolled back. Failures of purely
// UI commands (focus, selection) are ignored.
type Group struct {
	name string
	cmds []Command
}

// NewGroup returns a composite of cmds.
func NewGroup(name string, cmds ...Command) *Group {
	return &Group{name: name, cmds: cmds}
}

func (c *Group) Name() string { return c.name }

// Commands returns the grouped commands in run order.
func (c *Group) Commands() []Command { return c.cmds }

func (c *Group) Run(env *Env, ctx Context) bool {
	for i, cmd := range c.cmds {
		if cmd.Run(env, ctx) {
			continue
		}
		if _, ui := cmd.(uiCommand); ui {
			continue
		}
		env.log().Debug("group: step failed, rolling back",
			slog.String("group", c.name), slog.String("step", cmd.Name()))
		for j := i - 1; j >= 0; j-- {
			c.cmds[j].Undo(env, ctx)
		}
		return false
	}
	return true
}

func (c *Group) Undo(env *Env, ctx Context) bool {
	for i := len(c.cmds) - 1; i >= 0; i-- {
		cmd := c.cmds[i]
		if cmd.Undo(env, ctx) {
			continue
		}
		if _, ui := cmd.(uiCommand); ui {
			continue
		}
		env.log().Warn("group: undo step failed, rolling forward",
			slog.String("group", c.name), slog.String("step", cmd.Name()))
		for j := i + 1; j < len(c.cmds); j++ {
			c.cmds[j].Run(env, ctx)
		}
		return false
	}
	return true
}

func (c *Group) Coalesce(Command) bool { return false }

func (c *Group) release(env *Env) {
	for _, cmd := range c.cmds {
		cmd.release(env)
	}
}
