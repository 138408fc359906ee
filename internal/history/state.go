package history

import "time"

// Snapshot is one committed version of the document.
type Snapshot struct {
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}

// State is the complete engine state. A State is never modified once it has
// been published; transitions build a new State and replace the old one whole.
type State struct {
	Snapshots []Snapshot
	Index     int    // Position of the last committed value in Snapshots
	Live      string // Most recent value set by the caller, possibly uncommitted
}

// NewState returns a State holding a single snapshot of value.
func NewState(value string, now time.Time) State {
	return State{
		Snapshots: []Snapshot{{Value: value, Timestamp: now.UnixMilli()}},
		Index:     0,
		Live:      value,
	}
}

// Current returns the snapshot at Index.
func (s State) Current() Snapshot {
	return s.Snapshots[s.Index]
}

// Len returns the number of retained snapshots.
func (s State) Len() int {
	return len(s.Snapshots)
}

// CanUndo reports whether there is an older snapshot to move to.
func (s State) CanUndo() bool {
	return s.Index > 0
}

// CanRedo reports whether there is a newer snapshot to move to.
func (s State) CanRedo() bool {
	return s.Index < len(s.Snapshots)-1
}

// Pending reports whether the live value is ahead of the committed one.
func (s State) Pending() bool {
	return s.Live != s.Current().Value
}

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	snapshots := make([]Snapshot, len(s.Snapshots))
	copy(snapshots, s.Snapshots)

	return State{
		Snapshots: snapshots,
		Index:     s.Index,
		Live:      s.Live,
	}
}
