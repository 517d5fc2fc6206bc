package command

import (
	"log/slog"
)

// DefaultHistoryLimit is the number of undo steps kept when no limit is set.
const DefaultHistoryLimit = 100

// Manager owns the undo/redo history of one editing context. It is not
// safe for concurrent use; all calls happen on the context's own thread.
type Manager struct {
	env     *Env
	history []Command
	redo    []Command
	limit   int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHistoryLimit caps the number of undo steps. Values <= 0 select
// DefaultHistoryLimit.
func WithHistoryLimit(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.limit = n
		}
	}
}

// NewManager creates a history manager executing commands against env.
func NewManager(env *Env, opts ...ManagerOption) *Manager {
	m := &Manager{env: env, limit: DefaultHistoryLimit}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes cmd. On success cmd is either folded into the newest
// history entry or pushed as a new one; on failure nothing is recorded.
//
// Coalescing is only attempted while there is nothing to redo, so an edit
// made after an undo always starts a new entry and discards the redo stack.
func (m *Manager) Run(cmd Command, ctx Context) bool {
	if !cmd.Run(m.env, ctx) {
		m.env.log().Debug("manager: run rejected", slog.String("command", cmd.Name()))
		return false
	}
	if len(m.redo) == 0 && len(m.history) > 0 {
		top := m.history[len(m.history)-1]
		if top.Coalesce(cmd) {
			m.env.log().Debug("manager: coalesced",
				slog.String("command", cmd.Name()),
				slog.String("into", top.Name()))
			return true
		}
	}
	m.dropRedo()
	m.push(cmd)
	m.env.log().Debug("manager: pushed",
		slog.String("command", cmd.Name()),
		slog.Int("history", len(m.history)))
	return true
}

// Undo reverts the newest history entry and moves it to the redo stack.
func (m *Manager) Undo(ctx Context) bool {
	if len(m.history) == 0 {
		m.env.log().Debug("manager: nothing to undo")
		return false
	}
	top := m.history[len(m.history)-1]
	if !top.Undo(m.env, ctx) {
		m.env.log().Warn("manager: undo failed", slog.String("command", top.Name()))
		return false
	}
	m.history = m.history[:len(m.history)-1]
	m.redo = append(m.redo, top)
	m.env.log().Debug("manager: undone",
		slog.String("command", top.Name()),
		slog.Int("history", len(m.history)),
		slog.Int("redo", len(m.redo)))
	return true
}

// Redo re-runs the newest undone entry and moves it back to the history.
func (m *Manager) Redo(ctx Context) bool {
	if len(m.redo) == 0 {
		m.env.log().Debug("manager: nothing to redo")
		return false
	}
	next := m.redo[len(m.redo)-1]
	if !next.Run(m.env, ctx) {
		m.env.log().Warn("manager: redo failed", slog.String("command", next.Name()))
		return false
	}
	m.redo = m.redo[:len(m.redo)-1]
	m.push(next)
	m.env.log().Debug("manager: redone",
		slog.String("command", next.Name()),
		slog.Int("history", len(m.history)),
		slog.Int("redo", len(m.redo)))
	return true
}

// CanUndo reports whether there is an entry to undo.
func (m *Manager) CanUndo() bool { return len(m.history) > 0 }

// CanRedo reports whether there is an entry to redo.
func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// UndoName returns the name of the entry Undo would revert.
func (m *Manager) UndoName() string {
	if len(m.history) == 0 {
		return ""
	}
	return m.history[len(m.history)-1].Name()
}

// RedoName returns the name of the entry Redo would re-run.
func (m *Manager) RedoName() string {
	if len(m.redo) == 0 {
		return ""
	}
	return m.redo[len(m.redo)-1].Name()
}

// Len returns the sizes of the undo and redo stacks.
func (m *Manager) Len() (history, redo int) {
	return len(m.history), len(m.redo)
}

// Clear drops both stacks, e.g. when the note is reloaded from disk.
func (m *Manager) Clear() {
	m.dropRedo()
	for _, c := range m.history {
		c.release(m.env)
	}
	m.history = nil
}

func (m *Manager) push(cmd Command) {
	m.history = append(m.history, cmd)
	if over := len(m.history) - m.limit; over > 0 {
		for _, c := range m.history[:over] {
			c.release(m.env)
		}
		m.history = append(m.history[:0:0], m.history[over:]...)
	}
}

func (m *Manager) dropRedo() {
	for _, c := range m.redo {
		c.release(m.env)
	}
	m.redo = nil
}
