package command

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/document"
)

type refKey struct {
	holder uuid.UUID
	file   uuid.UUID
}

// fakeFiles counts references per (holder, file) pair.
type fakeFiles struct {
	refs map[refKey]int
	fail bool
}

func newFakeFiles() *fakeFiles { return &fakeFiles{refs: make(map[refKey]int)} }

func (f *fakeFiles) AddReference(_, holder, file uuid.UUID) error {
	if f.fail {
		return errors.New("store unavailable")
	}
	f.refs[refKey{holder, file}]++
	return nil
}

func (f *fakeFiles) RemoveReference(_, holder, file uuid.UUID) error {
	if f.fail {
		return errors.New("store unavailable")
	}
	k := refKey{holder, file}
	if f.refs[k] == 0 {
		return errors.New("no such reference")
	}
	f.refs[k]--
	if f.refs[k] == 0 {
		delete(f.refs, k)
	}
	return nil
}

func (f *fakeFiles) count(file uuid.UUID) int {
	n := 0
	for k, c := range f.refs {
		if k.file == file {
			n += c
		}
	}
	return n
}

// fakeContext records UI state in memory.
type fakeContext struct {
	focus      Focus
	hasFocus   bool
	sel        document.Range
	hasSel     bool
	expanded   []uuid.UUID
	breadcrumb []uuid.UUID
	active     map[document.Attribute]bool
}

func newFakeContext() *fakeContext {
	return &fakeContext{active: make(map[document.Attribute]bool)}
}

func (c *fakeContext) Focus() (Focus, bool) { return c.focus, c.hasFocus }
func (c *fakeContext) SetFocus(f Focus) { c.focus, c.hasFocus = f, true }
func (c *fakeContext) ClearFocus() { c.focus, c.hasFocus = Focus{}, false }
func (c *fakeContext) Selection() (document.Range, bool) { return c.sel, c.hasSel }
func (c *fakeContext) SetSelection(r document.Range) { c.sel, c.hasSel = r, true }
func (c *fakeContext) ClearSelection() { c.sel, c.hasSel = document.Range{}, false }
func (c *fakeContext) Expand(_, elementID uuid.UUID) { c.expanded = append(c.expanded, elementID) }
func (c *fakeContext) RemoveFromBreadcrumb(_, id uuid.UUID) { c.breadcrumb = append(c.breadcrumb, id) }
func (c *fakeContext) SetAttributeActive(a document.Attribute, on bool) {
	c.active[a] = on
}

type fixture struct {
	store *document.Store
	files *fakeFiles
	env   *Env
	note  *document.Note
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture returns a note holding one plain element per text.
func newFixture(t *testing.T, texts ...string) (*fixture, []*document.Element) {
	t.Helper()
	n := document.NewNote("test")
	els := make([]*document.Element, 0, len(texts))
	for i, s := range texts {
		el := document.NewElement(document.Plain(), document.NewText(s))
		if err := n.Insert(n.Root().ID, el, i); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		els = append(els, el)
	}
	store := document.NewStore()
	store.Put(n)
	files := newFakeFiles()
	return &fixture{
		store: store,
		files: files,
		env:   &Env{Notes: store, Files: files, Logger: quietLogger()},
		note:  n,
	}, els
}

func (f *fixture) text(t *testing.T, id uuid.UUID) string {
	t.Helper()
	el, ok := f.note.Find(id)
	if !ok {
		t.Fatalf("element %s not found", id)
	}
	return el.Text.String()
}

func (f *fixture) encode(t *testing.T) string {
	t.Helper()
	data, err := document.EncodeNote(f.note)
	if err != nil {
		t.Fatalf("EncodeNote: %v", err)
	}
	return string(data)
}
