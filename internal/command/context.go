package command

import (
	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/document"
)

// Focus identifies the element holding the caret and the caret position.
type Focus struct {
	NoteID    uuid.UUID `json:"note_id"`
	ElementID uuid.UUID `json:"element_id"`
	Cursor    int       `json:"cursor"`
}

// Context is the optional UI side of an editing context. Commands receive
// nil when running headless and must still produce the same document.
// Implementations treat every call as best effort.
type Context interface {
	Focus() (Focus, bool)
	SetFocus(f Focus)
	ClearFocus()

	Selection() (document.Range, bool)
	SetSelection(r document.Range)
	ClearSelection()

	// Expand shows the children of an element.
	Expand(noteID, elementID uuid.UUID)
	// RemoveFromBreadcrumb drops an element from the zoom path it is shown under.
	RemoveFromBreadcrumb(noteID, elementID uuid.UUID)
	// SetAttributeActive updates the toggle state of a formatting button.
	SetAttributeActive(attr document.Attribute, active bool)
}

// uiCommand marks commands whose only effect is on the Context. Their
// failure never fails a composite.
type uiCommand interface {
	Command
	uiOnly()
}
