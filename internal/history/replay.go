package history

// Undo moves to the previous snapshot and makes its value live. Any pending
// edit is abandoned. It reports false, changing nothing, when there is no
// older snapshot.
func (e *Engine) Undo() bool {
	_, ok := e.Replay(-1)

	return ok
}

// Redo moves to the next snapshot and makes its value live. It reports
// false, changing nothing, when there is no newer snapshot.
func (e *Engine) Redo() bool {
	_, ok := e.Replay(1)

	return ok
}

// Replay moves delta snapshots back (negative) or forward (positive) and
// returns the state it published. The returned state is shared with
// listeners and must not be modified. A move outside the retained history,
// or a zero delta, changes nothing and reports false.
func (e *Engine) Replay(delta int) (State, bool) {
	kind := ChangeRedo
	if delta < 0 {
		kind = ChangeUndo
	}

	e.mu.Lock()

	if e.closed || delta == 0 {
		cur := e.load()
		e.mu.Unlock()

		return cur, false
	}

	cur := e.load()

	next, ok := cur.MoveTo(cur.Index + delta)
	if !ok {
		e.mu.Unlock()

		return cur, false
	}

	e.cancelTimerLocked()
	e.cancelHoldLocked()
	e.replayDepth++
	e.phase.Store(int32(Replaying))

	e.publishLocked(next)
	listeners := e.listenersLocked()
	e.mu.Unlock()

	// Listeners run inside the guard; the deferred release also covers a
	// listener that panics.
	defer e.endReplay()

	notify(listeners, Change{Kind: kind, State: next})

	return next, true
}

// endReplay leaves the Replaying phase once the outermost replay finishes,
// either immediately or after the configured hold.
func (e *Engine) endReplay() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.replayDepth > 0 {
		e.replayDepth--
	}

	if e.replayDepth > 0 || e.closed {
		return
	}

	if e.cfg.replayHold <= 0 {
		e.phase.Store(int32(Idle))

		return
	}

	gen := e.holdGen
	e.holdTimer = e.cfg.clock.AfterFunc(e.cfg.replayHold, func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		if gen != e.holdGen || e.replayDepth > 0 {
			return
		}

		e.holdTimer = nil
		e.phase.Store(int32(Idle))
	})
}

func (e *Engine) cancelHoldLocked() {
	if e.holdTimer != nil {
		e.holdTimer.Stop()
		e.holdTimer = nil
	}

	e.holdGen++
}
