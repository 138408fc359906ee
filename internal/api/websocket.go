package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/serroba/docs-undo/internal/acl"
	"github.com/serroba/docs-undo/internal/session"
	"github.com/serroba/docs-undo/internal/storage"
	"github.com/serroba/docs-undo/internal/ws"
)

// documentSession is the part of a session the WebSocket loop drives.
type documentSession interface {
	Edit(clientID, userID, value string) (session.View, error)
	Undo(clientID, userID string) (session.View, error)
	Redo(clientID, userID string) (session.View, error)
	Reset(clientID, userID, content string) (session.View, error)
	GetState(userID string) (session.View, error)
}

var _ documentSession = (*session.Session)(nil)

// handleWebSocket handles GET /ws?docId={id}.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "docId query parameter is required", http.StatusBadRequest)

		return
	}

	userID := UserIDFromContext(r.Context())

	client, cleanup, err := s.setupWebSocketClient(w, r, docID, userID)
	if err != nil {
		return
	}

	defer cleanup()

	sess, err := s.initializeSession(client, docID, userID)
	if err != nil {
		return
	}

	handleMessages(client, sess, userID)
}

// setupWebSocketClient upgrades the connection and creates a client.
func (s *Server) setupWebSocketClient(
	w http.ResponseWriter, r *http.Request, docID, userID string,
) (*ws.Client, func(), error) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)

		return nil, nil, err
	}

	client := ws.NewClient(uuid.New().String(), userID, conn)
	s.hub.Register(client)
	s.hub.Subscribe(client, docID)

	cleanup := func() {
		s.hub.Unregister(client)
		_ = client.Close()
	}

	return client, cleanup, nil
}

// initializeSession opens the document and sends the initial state.
func (s *Server) initializeSession(client *ws.Client, docID, userID string) (documentSession, error) {
	sess, err := s.manager.GetOrCreateSession(docID)
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			_ = client.SendError(ws.ErrorCodeInvalidMessage, "document not found")
		} else {
			_ = client.SendError(ws.ErrorCodeInternalError, "failed to load document")
		}

		return nil, err
	}

	view, err := sess.GetState(userID)
	if err != nil {
		sendSessionError(client, err)

		return nil, err
	}

	if err := client.SendState(view.Payload()); err != nil {
		return nil, err
	}

	return sess, nil
}

// handleMessages processes incoming messages until the client disconnects.
func handleMessages(client *ws.Client, sess documentSession, userID string) {
	for {
		msg, err := client.Receive()
		if err != nil {
			return
		}

		handleMessage(client, sess, userID, msg)
	}
}

func handleMessage(client *ws.Client, sess documentSession, userID string, msg ws.Message) {
	switch msg.Type {
	case ws.MessageTypeEdit:
		payload, ok := msg.Payload.(ws.EditPayload)
		if !ok {
			_ = client.SendError(ws.ErrorCodeInvalidMessage, "invalid edit payload")

			return
		}

		// The sender already shows its own edit; peers get the broadcast.
		// A dropped edit is answered with the state it was dropped against.
		view, err := sess.Edit(client.ID, userID, payload.Value)
		if err != nil {
			sendSessionError(client, err)

			return
		}

		if view.Dropped {
			_ = client.SendState(view.Payload())
		}
	case ws.MessageTypeUndo:
		replyState(client, func() (session.View, error) { return sess.Undo(client.ID, userID) })
	case ws.MessageTypeRedo:
		replyState(client, func() (session.View, error) { return sess.Redo(client.ID, userID) })
	case ws.MessageTypeReset:
		payload, ok := msg.Payload.(ws.ResetPayload)
		if !ok {
			_ = client.SendError(ws.ErrorCodeInvalidMessage, "invalid reset payload")

			return
		}

		replyState(client, func() (session.View, error) { return sess.Reset(client.ID, userID, payload.Content) })
	case ws.MessageTypeSync:
		replyState(client, func() (session.View, error) { return sess.GetState(userID) })
	case ws.MessageTypeState, ws.MessageTypeError:
		// Server-to-client messages - ignore if received from client
		_ = client.SendError(ws.ErrorCodeInvalidMessage, "unexpected message type")
	default:
		_ = client.SendError(ws.ErrorCodeInvalidMessage, "unknown message type")
	}
}

// replyState runs op and sends the resulting state back to the client.
func replyState(client *ws.Client, op func() (session.View, error)) {
	view, err := op()
	if err != nil {
		sendSessionError(client, err)

		return
	}

	_ = client.SendState(view.Payload())
}

func sendSessionError(client *ws.Client, err error) {
	switch {
	case errors.Is(err, acl.ErrAccessDenied):
		_ = client.SendError(ws.ErrorCodeAccessDenied, "access denied")
	case errors.Is(err, session.ErrSessionClosed):
		_ = client.SendError(ws.ErrorCodeInvalidMessage, "document is closed")
	default:
		_ = client.SendError(ws.ErrorCodeInternalError, err.Error())
	}
}
