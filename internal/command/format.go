package command

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/document"
)

// FormatText toggles formatting on an element. It flips between active and
// inactive on every successful run and undo, so one instance serves both
// the original application and later redos.
//
// With a kind, run sets the kind when inactive and resets it to plain when
// active; undo restores the kind the element had before the first run.
// With an attribute, run toggles the attribute over Range and undo restores
// the text as it was before that run. Both report the new state through
// Context.SetAttributeActive.
type FormatText struct {
	NoteID    uuid.UUID
	ElementID uuid.UUID
	NewKind   *document.Kind
	Attribute *document.Attribute
	Range     *document.Range // nil formats the whole text

	active    bool
	priorKind document.Kind
	captured  bool
	priorText document.Text
	hasText   bool
}

// NewFormatKind returns a command toggling the element kind.
func NewFormatKind(noteID, elementID uuid.UUID, kind document.Kind) *FormatText {
	return &FormatText{NoteID: noteID, ElementID: elementID, NewKind: &kind}
}

// NewFormatAttribute returns a command toggling attr over r.
func NewFormatAttribute(noteID, elementID uuid.UUID, attr document.Attribute, r document.Range) *FormatText {
	return &FormatText{NoteID: noteID, ElementID: elementID, Attribute: &attr, Range: &r}
}

func (c *FormatText) Name() string {
	if c.NewKind != nil {
		return "Change Style"
	}
	return "Format Text"
}

// Active reports whether the last transition applied the formatting.
func (c *FormatText) Active() bool { return c.active }

func (c *FormatText) Run(env *Env, ctx Context) bool {
	_, el, ok := env.resolve(c.NoteID, c.ElementID)
	if !ok {
		return env.notFound("format text", c.NoteID, c.ElementID)
	}
	switch {
	case c.NewKind != nil:
		if !c.captured {
			c.priorKind, c.captured = el.Kind, true
		}
		if c.active {
			el.Kind = document.Plain()
		} else {
			el.Kind = *c.NewKind
		}
	case c.Attribute != nil:
		prior := el.Text
		if !c.toggleAttribute(env, el, ctx) {
			return false
		}
		c.priorText, c.hasText = prior, true
	default:
		panic("command: FormatText without kind or attribute")
	}
	c.active = !c.active
	return true
}

func (c *FormatText) Undo(env *Env, ctx Context) bool {
	_, el, ok := env.resolve(c.NoteID, c.ElementID)
	if !ok {
		return env.notFound("undo format text", c.NoteID, c.ElementID)
	}
	switch {
	case c.NewKind != nil:
		if !c.captured {
			return false
		}
		el.Kind = c.priorKind
	case c.Attribute != nil:
		if !c.hasText {
			return false
		}
		el.Text, c.hasText = c.priorText, false
		if ctx != nil {
			ctx.SetAttributeActive(*c.Attribute, !c.active)
		}
	default:
		panic("command: FormatText without kind or attribute")
	}
	c.active = !c.active
	return true
}

func (c *FormatText) toggleAttribute(env *Env, el *document.Element, ctx Context) bool {
	r := document.NewRange(0, el.Text.Len())
	if c.Range != nil {
		r = *c.Range
	}
	if !r.Valid(el.Text.Len()) {
		env.log().Debug("format text: range out of bounds",
			slog.String("range", r.String()), slog.Int("len", el.Text.Len()))
		return false
	}
	if c.active {
		el.Text = el.Text.RemoveAttributes([]document.Attribute{*c.Attribute}, r)
	} else {
		el.Text = el.Text.AddAttributes([]document.Attribute{*c.Attribute}, r)
	}
	if ctx != nil {
		ctx.SetAttributeActive(*c.Attribute, !c.active)
	}
	return true
}

func (c *FormatText) Coalesce(Command) bool { return false }

func (c *FormatText) release(*Env) {}
