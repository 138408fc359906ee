package history

// Phase is the replay state of an Engine.
type Phase int32

const (
	// Idle accepts edits.
	Idle Phase = iota
	// Replaying is entered for the duration of an undo or redo. Edits
	// arriving in this phase are dropped.
	Replaying
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Replaying:
		return "replaying"
	default:
		return "unknown"
	}
}
