package history

import "time"

// Append commits value as a new snapshot after Index.
//
// Snapshots after Index are discarded first. If the result holds more than
// maxSize entries the oldest are evicted. The committed value becomes live.
// Appending a value equal to the current snapshot is a no-op and reports
// false.
func (s State) Append(value string, now time.Time, maxSize int) (State, bool) {
	if value == s.Current().Value {
		return s, false
	}

	kept := s.Snapshots[:s.Index+1]

	snapshots := make([]Snapshot, 0, len(kept)+1)
	snapshots = append(snapshots, kept...)
	snapshots = append(snapshots, Snapshot{Value: value, Timestamp: now.UnixMilli()})

	snapshots, index := evict(snapshots, len(snapshots)-1, maxSize)

	return State{
		Snapshots: snapshots,
		Index:     index,
		Live:      value,
	}, true
}

// MoveTo points Index at the given snapshot and makes its value live.
// Out of range indexes leave the state unchanged and report false.
func (s State) MoveTo(index int) (State, bool) {
	if index < 0 || index >= len(s.Snapshots) {
		return s, false
	}

	return State{
		Snapshots: s.Snapshots,
		Index:     index,
		Live:      s.Snapshots[index].Value,
	}, true
}

// Reset discards all history and starts over from value.
func (s State) Reset(value string, now time.Time) State {
	return NewState(value, now)
}

// evict drops the oldest snapshots until at most maxSize remain and shifts
// index so it still refers to the same snapshot, or to the oldest one left.
func evict(snapshots []Snapshot, index, maxSize int) ([]Snapshot, int) {
	if maxSize <= 0 || len(snapshots) <= maxSize {
		return snapshots, index
	}

	excess := len(snapshots) - maxSize
	snapshots = snapshots[excess:]

	index -= excess
	if index < 0 {
		index = 0
	}

	return snapshots, index
}
