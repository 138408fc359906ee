package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/serroba/docs-undo/internal/acl"
	"github.com/serroba/docs-undo/internal/session"
	"github.com/serroba/docs-undo/internal/storage"
	"github.com/serroba/docs-undo/internal/ws"
)

// Server handles HTTP requests for the document API.
type Server struct {
	manager   *session.Manager
	store     storage.Store
	permStore acl.Store
	hub       *ws.Hub
	upgrader  websocket.Upgrader
}

// ServerConfig holds configuration for creating a server.
type ServerConfig struct {
	Manager   *session.Manager
	Store     storage.Store
	PermStore acl.Store
	Hub       *ws.Hub
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		manager:   cfg.Manager,
		store:     cfg.Store,
		permStore: cfg.PermStore,
		hub:       cfg.Hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool {
				return true // Allow all origins for demo
			},
		},
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Document endpoints (require auth)
	mux.Handle("/documents", s.authMiddleware(http.HandlerFunc(s.handleCreateDocument)))
	mux.Handle("/documents/", s.authMiddleware(http.HandlerFunc(s.handleDocumentByID)))

	// WebSocket endpoint (requires auth)
	mux.Handle("/ws", s.authMiddleware(http.HandlerFunc(s.handleWebSocket)))

	return mux
}

// handleDocumentByID routes requests under /documents/{id}.
func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request) {
	docID, action := splitDocumentPath(r.URL.Path)
	if docID == "" {
		http.Error(w, "document ID is required", http.StatusBadRequest)

		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			s.handleGetDocument(w, r, docID)
		case http.MethodPut:
			s.handleResetDocument(w, r, docID)
		case http.MethodDelete:
			s.handleDeleteDocument(w, r, docID)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	case "history":
		requireMethod(w, r, http.MethodGet, func() { s.handleGetHistory(w, r, docID) })
	case "undo":
		requireMethod(w, r, http.MethodPost, func() { s.handleUndo(w, r, docID) })
	case "redo":
		requireMethod(w, r, http.MethodPost, func() { s.handleRedo(w, r, docID) })
	case "permissions":
		requireMethod(w, r, http.MethodPost, func() { s.handleShareDocument(w, r, docID) })
	default:
		http.NotFound(w, r)
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string, next func()) {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	next()
}

// splitDocumentPath splits /documents/{id}/{action} into its parts.
func splitDocumentPath(path string) (docID, action string) {
	rest, ok := strings.CutPrefix(path, "/documents/")
	if !ok {
		return "", ""
	}

	docID, action, _ = strings.Cut(rest, "/")

	return docID, action
}
