package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/serroba/docs-undo/internal/acl"
	"github.com/serroba/docs-undo/internal/session"
	"github.com/serroba/docs-undo/internal/storage"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	ID      string `json:"id"`
	Content string `json:"content,omitempty"`
}

// CreateDocumentResponse is the response body for creating a document.
type CreateDocumentResponse struct {
	ID string `json:"id"`
}

// ResetDocumentRequest is the request body for replacing a document.
type ResetDocumentRequest struct {
	Content string `json:"content"`
}

// DocumentResponse describes the current state of a document.
type DocumentResponse struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Revision int    `json:"revision"`
	CanUndo  bool   `json:"canUndo"`
	CanRedo  bool   `json:"canRedo"`
	Pending  bool   `json:"pending"`
}

func newDocumentResponse(view session.View) DocumentResponse {
	return DocumentResponse{
		ID:       view.DocID,
		Content:  view.Value,
		Revision: view.Revision,
		CanUndo:  view.CanUndo,
		CanRedo:  view.CanRedo,
		Pending:  view.Pending,
	}
}

// handleCreateDocument handles POST /documents.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	if req.ID == "" {
		http.Error(w, "document ID is required", http.StatusBadRequest)

		return
	}

	if err := s.store.CreateDocument(req.ID); err != nil {
		if errors.Is(err, storage.ErrDocumentExists) {
			http.Error(w, "document already exists", http.StatusConflict)

			return
		}

		http.Error(w, "internal server error", http.StatusInternalServerError)

		return
	}

	if req.Content != "" {
		if err := s.store.SaveSnapshot(req.ID, 0, req.Content); err != nil {
			log.Printf("document %s: failed to save initial content: %v", req.ID, err)
			http.Error(w, "internal server error", http.StatusInternalServerError)

			return
		}
	}

	// Grant the creator Owner role if ACL store is configured
	userID := UserIDFromContext(r.Context())
	if s.permStore != nil && userID != "" {
		_ = s.permStore.Grant(req.ID, userID, acl.Owner)
	}

	writeJSON(w, http.StatusCreated, CreateDocumentResponse{ID: req.ID})
}

// handleGetDocument handles GET /documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request, docID string) {
	sess, ok := s.openSession(w, docID)
	if !ok {
		return
	}

	view, err := sess.GetState(UserIDFromContext(r.Context()))
	if err != nil {
		writeSessionError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, newDocumentResponse(view))
}

// handleResetDocument handles PUT /documents/{id}. The new content replaces
// the document and its undo history.
func (s *Server) handleResetDocument(w http.ResponseWriter, r *http.Request, docID string) {
	var req ResetDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	sess, ok := s.openSession(w, docID)
	if !ok {
		return
	}

	view, err := sess.Reset("", UserIDFromContext(r.Context()), req.Content)
	if err != nil {
		writeSessionError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, newDocumentResponse(view))
}

// handleDeleteDocument handles DELETE /documents/{id}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request, docID string) {
	userID := UserIDFromContext(r.Context())

	// Check delete permission if ACL is configured
	if s.permStore != nil {
		checker := acl.NewChecker(s.permStore)
		if err := checker.RequirePermission(docID, userID, acl.ActionDelete); err != nil {
			writeSessionError(w, err)

			return
		}
	}

	// Drop any active session first; its content is going away.
	s.manager.DiscardSession(docID)

	if err := s.store.DeleteDocument(docID); err != nil {
		writeSessionError(w, err)

		return
	}

	if s.permStore != nil {
		if err := s.permStore.RevokeAll(docID); err != nil {
			log.Printf("document %s: failed to revoke permissions: %v", docID, err)
		}
	}

	if s.hub != nil {
		s.hub.CloseDocument(docID, "document deleted")
	}

	w.WriteHeader(http.StatusNoContent)
}

// openSession returns the session for docID, writing an error response if
// it cannot be opened.
func (s *Server) openSession(w http.ResponseWriter, docID string) (*session.Session, bool) {
	sess, err := s.manager.GetOrCreateSession(docID)
	if err != nil {
		writeSessionError(w, err)

		return nil, false
	}

	return sess, true
}

// writeSessionError maps domain errors to HTTP status codes.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrDocumentNotFound):
		http.Error(w, "document not found", http.StatusNotFound)
	case errors.Is(err, acl.ErrAccessDenied):
		http.Error(w, "access denied", http.StatusForbidden)
	case errors.Is(err, session.ErrSessionClosed):
		http.Error(w, "document is closing", http.StatusConflict)
	default:
		log.Printf("request failed: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
