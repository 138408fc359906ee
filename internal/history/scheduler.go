package history

// SetValue makes v the live value and restarts the debounce timer. When the
// timer fires the live value at that moment is committed, so a burst of
// calls produces a single snapshot holding the last value of the burst.
//
// Calls made while an undo or redo is replaying, or after Close, are
// dropped and report false.
func (e *Engine) SetValue(v string) bool {
	e.mu.Lock()

	if e.closed || e.Phase() == Replaying {
		e.mu.Unlock()

		return false
	}

	cur := e.load()
	changed := cur.Live != v

	next := State{
		Snapshots: cur.Snapshots,
		Index:     cur.Index,
		Live:      v,
	}
	e.publishLocked(next)
	e.scheduleLocked()

	var listeners []listener
	if changed {
		listeners = e.listenersLocked()
	}
	e.mu.Unlock()

	notify(listeners, Change{Kind: ChangeEdit, State: next})

	return true
}

// Flush commits the live value now instead of waiting for the debounce
// timer. It reports whether a snapshot was added.
func (e *Engine) Flush() bool {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()

		return false
	}

	e.cancelTimerLocked()

	return e.commitAndUnlock()
}

// Pending reports whether an edit is waiting to be committed.
func (e *Engine) Pending() bool {
	return e.load().Pending()
}

// scheduleLocked replaces any outstanding commit timer with a new one.
func (e *Engine) scheduleLocked() {
	e.cancelTimerLocked()

	gen := e.timerGen
	e.timer = e.cfg.clock.AfterFunc(e.cfg.debounce, func() {
		e.fire(gen)
	})
}

// cancelTimerLocked stops the commit timer. Bumping the generation also
// invalidates a callback that already fired and is waiting for the lock.
func (e *Engine) cancelTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	e.timerGen++
}

func (e *Engine) fire(gen uint64) {
	e.mu.Lock()

	if e.closed || gen != e.timerGen {
		e.mu.Unlock()

		return
	}

	e.timer = nil

	e.commitAndUnlock()
}

// commitAndUnlock appends the live value read at this moment and releases
// the lock before running hooks.
func (e *Engine) commitAndUnlock() bool {
	cur := e.load()

	next, ok := cur.Append(cur.Live, e.cfg.clock.Now(), e.cfg.maxSize)
	if !ok {
		e.mu.Unlock()

		return false
	}

	e.publishLocked(next)
	listeners := e.listenersLocked()
	onCommit := e.cfg.onCommit
	e.mu.Unlock()

	if onCommit != nil {
		onCommit(next.Current())
	}

	notify(listeners, Change{Kind: ChangeCommit, State: next})

	return true
}
