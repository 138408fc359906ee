// Package history implements a bounded, debounced undo/redo history for a
// single continuously edited text value.
//
// Edits become visible through Value immediately but are only committed to
// history once the caller pauses for the debounce interval, so a burst of
// keystrokes produces one undo step. Undo and redo move through committed
// snapshots and suppress edits while they run, so a host that echoes the
// restored value back through SetValue does not record it as a new edit.
package history

import (
	"sync"
	"sync/atomic"
)

// ChangeKind identifies what produced a state change.
type ChangeKind int

const (
	ChangeEdit ChangeKind = iota
	ChangeCommit
	ChangeUndo
	ChangeRedo
	ChangeClear
)

// String returns the string representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeEdit:
		return "edit"
	case ChangeCommit:
		return "commit"
	case ChangeUndo:
		return "undo"
	case ChangeRedo:
		return "redo"
	case ChangeClear:
		return "clear"
	default:
		return "unknown"
	}
}

// Change describes a published state transition. State must not be modified.
type Change struct {
	Kind  ChangeKind
	State State
}

type listener struct {
	id uint64
	fn func(Change)
}

// Engine owns the history of one document.
//
// Reads are lock-free and always observe a consistent State. Writers are
// serialized. Listeners and the commit hook run outside the lock and may
// call back into the engine.
type Engine struct {
	cfg config

	state atomic.Pointer[State]
	phase atomic.Int32

	mu     sync.Mutex
	closed bool

	// Commit scheduling
	timer    Timer
	timerGen uint64

	// Replay guard
	replayDepth int
	holdTimer   Timer
	holdGen     uint64

	listeners    []listener
	nextListener uint64
}

// New creates an engine whose history starts with a single snapshot of initial.
func New(initial string, opts ...Option) *Engine {
	e := &Engine{cfg: newConfig(opts)}

	s := NewState(initial, e.cfg.clock.Now())
	e.state.Store(&s)

	return e
}

// Value returns the live value.
func (e *Engine) Value() string {
	return e.load().Live
}

// CanUndo reports whether Undo would move to an older snapshot.
func (e *Engine) CanUndo() bool {
	return e.load().CanUndo()
}

// CanRedo reports whether Redo would move to a newer snapshot.
func (e *Engine) CanRedo() bool {
	return e.load().CanRedo()
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	return e.load().Clone()
}

// Snapshots returns a copy of the retained snapshots, oldest first.
func (e *Engine) Snapshots() []Snapshot {
	return e.load().Clone().Snapshots
}

// Phase returns the current replay phase.
func (e *Engine) Phase() Phase {
	return Phase(e.phase.Load())
}

// MaxSize returns the snapshot capacity.
func (e *Engine) MaxSize() int {
	return e.cfg.maxSize
}

// ClearHistory drops all history and any pending commit. The history
// restarts from value, or from the live value when no value is given.
func (e *Engine) ClearHistory(value ...string) {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()

		return
	}

	cur := e.load()

	next := cur.Live
	if len(value) > 0 {
		next = value[0]
	}

	e.cancelTimerLocked()

	// A held guard from an earlier replay must not swallow the first edits
	// of the new document.
	if e.replayDepth == 0 {
		e.cancelHoldLocked()
		e.phase.Store(int32(Idle))
	}

	s := cur.Reset(next, e.cfg.clock.Now())
	e.publishLocked(s)
	listeners := e.listenersLocked()
	e.mu.Unlock()

	notify(listeners, Change{Kind: ChangeClear, State: s})
}

// Subscribe registers fn to be called after every state change, in
// registration order. The returned function removes the subscription.
func (e *Engine) Subscribe(fn func(Change)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextListener++
	id := e.nextListener
	e.listeners = append(e.listeners, listener{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)

				return
			}
		}
	}
}

// Close stops all timers. A pending edit is discarded; call Flush first to
// keep it. Every operation after Close is a no-op.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.closed = true
	e.cancelTimerLocked()
	e.cancelHoldLocked()
	e.replayDepth = 0
	e.phase.Store(int32(Idle))
	e.listeners = nil
}

func (e *Engine) load() State {
	return *e.state.Load()
}

// publishLocked makes s the current state in a single store.
func (e *Engine) publishLocked(s State) {
	e.state.Store(&s)
}

func (e *Engine) listenersLocked() []listener {
	if len(e.listeners) == 0 {
		return nil
	}

	out := make([]listener, len(e.listeners))
	copy(out, e.listeners)

	return out
}

func notify(listeners []listener, c Change) {
	for _, l := range listeners {
		l.fn(c)
	}
}
