package ws

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	// Client to Server messages.
	MessageTypeEdit  MessageType = "edit"  // Client sets the document value
	MessageTypeUndo  MessageType = "undo"  // Client steps back in history
	MessageTypeRedo  MessageType = "redo"  // Client steps forward in history
	MessageTypeSync  MessageType = "sync"  // Client requests current state
	MessageTypeReset MessageType = "reset" // Client loads new content, dropping history

	// Server to Client messages.
	MessageTypeState MessageType = "state" // Server sends document state
	MessageTypeError MessageType = "error" // Server reports an error
)

// Message is the envelope for all WebSocket communication.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// EditPayload carries the full value of the document after a local change.
type EditPayload struct {
	Value string `json:"value"`
}

// ResetPayload carries content that replaces the document and its history.
type ResetPayload struct {
	Content string `json:"content"`
}

// StatePayload sends the document value and history affordances.
type StatePayload struct {
	DocID    string `json:"docId"`
	Value    string `json:"value"`
	Revision int    `json:"revision"`
	CanUndo  bool   `json:"canUndo"`
	CanRedo  bool   `json:"canRedo"`
	Dropped  bool   `json:"dropped,omitempty"` // An edit was ignored during undo or redo
	Cause    string `json:"cause,omitempty"`   // What produced this state
	UserID   string `json:"userId,omitempty"`  // Who produced it, if anyone
}

// ErrorPayload reports an error to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrorCodeAccessDenied   = "access_denied"
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeInternalError  = "internal_error"
)
