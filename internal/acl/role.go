package acl

// Role represents a user's access level for a document.
type Role int

const (
	// Viewer can only read document content.
	Viewer Role = iota
	// Editor can read, edit, undo and redo.
	Editor
	// Owner can also replace the whole document, share it, and delete it.
	Owner
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case Viewer:
		return "viewer"
	case Editor:
		return "editor"
	case Owner:
		return "owner"
	default:
		return "unknown"
	}
}

// CanRead returns true if the role allows reading.
func (r Role) CanRead() bool {
	return r >= Viewer
}

// ParseRole converts a role name back into a Role.
func ParseRole(name string) (Role, error) {
	switch name {
	case "viewer":
		return Viewer, nil
	case "editor":
		return Editor, nil
	case "owner":
		return Owner, nil
	default:
		return 0, ErrUnknownRole
	}
}

// CanWrite returns true if the role allows editing and undo/redo.
func (r Role) CanWrite() bool {
	return r >= Editor
}

// CanReset returns true if the role allows loading new content, which
// discards the document's undo history.
func (r Role) CanReset() bool {
	return r >= Owner
}

// CanShare returns true if the role allows sharing.
func (r Role) CanShare() bool {
	return r >= Owner
}

// CanDelete returns true if the role allows deletion.
func (r Role) CanDelete() bool {
	return r >= Owner
}

// Permission represents a user's access to a specific document.
type Permission struct {
	DocID  string
	UserID string
	Role   Role
}
