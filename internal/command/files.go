package command

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/document"
)

// retainedNamespace derives the placeholder holder that keeps the file of
// a detached image element alive while its removal can still be undone.
var retainedNamespace = uuid.MustParse("6f2b7c1e-4a0d-5d8e-9b3a-2c1f0e7d6a5b")

// RetainedHolder returns the placeholder holder id standing in for elementID.
func RetainedHolder(elementID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(retainedNamespace, elementID[:])
}

type fileRef struct {
	holder uuid.UUID
	file   uuid.UUID
}

// imageRefs lists the file references held by every image in the subtree.
func imageRefs(root *document.Element) []fileRef {
	var refs []fileRef
	root.Walk(func(e *document.Element) bool {
		if e.Kind.IsImage() && e.Kind.Image.FileID != uuid.Nil {
			refs = append(refs, fileRef{holder: e.ID, file: e.Kind.Image.FileID})
		}
		return true
	})
	return refs
}

// The reference helpers below are best effort: the structural edit has
// already happened and is not rolled back when the store fails.

func (e *Env) addRef(op string, noteID, holder, file uuid.UUID) {
	if e.Files == nil {
		return
	}
	if err := e.Files.AddReference(noteID, holder, file); err != nil {
		e.log().Warn(op+": add file reference failed",
			slog.String("note", noteID.String()),
			slog.String("holder", holder.String()),
			slog.String("file", file.String()),
			slog.String("error", err.Error()))
	}
}

func (e *Env) removeRef(op string, noteID, holder, file uuid.UUID) {
	if e.Files == nil {
		return
	}
	if err := e.Files.RemoveReference(noteID, holder, file); err != nil {
		e.log().Warn(op+": remove file reference failed",
			slog.String("note", noteID.String()),
			slog.String("holder", holder.String()),
			slog.String("file", file.String()),
			slog.String("error", err.Error()))
	}
}

// attachFiles gives each element its real reference back, dropping the
// placeholder when one was taken.
func (e *Env) attachFiles(op string, noteID uuid.UUID, refs []fileRef, fromRetained bool) {
	for _, r := range refs {
		e.addRef(op, noteID, r.holder, r.file)
		if fromRetained {
			e.removeRef(op, noteID, RetainedHolder(r.holder), r.file)
		}
	}
}

// retainFiles swaps each real reference for a placeholder.
func (e *Env) retainFiles(op string, noteID uuid.UUID, refs []fileRef) {
	for _, r := range refs {
		e.removeRef(op, noteID, r.holder, r.file)
		e.addRef(op, noteID, RetainedHolder(r.holder), r.file)
	}
}

// releaseFiles drops placeholders once nothing can restore their elements.
func (e *Env) releaseFiles(op string, noteID uuid.UUID, refs []fileRef) {
	for _, r := range refs {
		e.removeRef(op, noteID, RetainedHolder(r.holder), r.file)
	}
}
