package notebook

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/storage"
)

// EventCallback is called after the watcher changed the loaded notes.
// kind is one of "reloaded", "deleted".
type EventCallback func(kind string, noteID uuid.UUID)

// Watch starts an fsnotify watcher on dir, the notes directory of the
// vault, and reloads notes edited outside the process until ctx is
// cancelled. Writes made by this Service are recognised and skipped.
//
// Rename events trigger a debounced reconciliation pass that picks up
// notes renamed into place and forgets notes that no longer exist.
func (s *Service) Watch(ctx context.Context, dir string, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	s.logger.Info("watcher: started", slog.String("dir", dir))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			s.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			s.reconcile(cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			id, ok := storage.NoteIDFromPath(ev.Name)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				s.reloadFromDisk(id, cb)

			case ev.Op&fsnotify.Remove != 0:
				if s.forgetNote(id) {
					s.logger.Debug("watcher: deleted", slog.String("note", id.String()))
					if cb != nil {
						cb("deleted", id)
					}
				}

			case ev.Op&fsnotify.Rename != 0:
				// Rename fires on the old path only; the new path arrives
				// as a Create if it stays in the directory.
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (s *Service) reloadFromDisk(id uuid.UUID, cb EventCallback) {
	data, err := s.store.ReadNote(id)
	if err != nil {
		// Replaced again before we got to it; a later event follows.
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("watcher: read failed", slog.String("note", id.String()), slog.String("error", err.Error()))
		}
		return
	}
	changed, err := s.reloadNote(id, data)
	if err != nil {
		s.logger.Warn("watcher: reload failed", slog.String("note", id.String()), slog.String("error", err.Error()))
	}
	if !changed {
		return
	}
	s.logger.Debug("watcher: reloaded", slog.String("note", id.String()))
	if cb != nil {
		cb("reloaded", id)
	}
}

// reconcile compares the loaded notes with the vault: notes missing on
// disk are forgotten and notes whose content differs are reloaded.
func (s *Service) reconcile(cb EventCallback) {
	metas, err := s.store.ListNotes()
	if err != nil {
		s.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}
	disk := make(map[uuid.UUID]struct{}, len(metas))
	for _, m := range metas {
		disk[m.ID] = struct{}{}
		s.reloadFromDisk(m.ID, cb)
	}
	for _, n := range s.notes.List() {
		if _, ok := disk[n.ID]; ok {
			continue
		}
		if s.forgetNote(n.ID) {
			s.logger.Debug("reconcile: removed stale", slog.String("note", n.ID.String()))
			if cb != nil {
				cb("deleted", n.ID)
			}
		}
	}
}
