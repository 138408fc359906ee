package api

import (
	"encoding/json"
	"net/http"

	"github.com/serroba/docs-undo/internal/acl"
	"github.com/serroba/docs-undo/internal/storage"
)

// ShareDocumentRequest grants a role on a document to another user.
type ShareDocumentRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// handleShareDocument handles POST /documents/{id}/permissions.
func (s *Server) handleShareDocument(w http.ResponseWriter, r *http.Request, docID string) {
	if s.permStore == nil {
		http.Error(w, "sharing is not enabled", http.StatusNotImplemented)

		return
	}

	var req ShareDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	role, err := acl.ParseRole(req.Role)
	if err != nil || req.UserID == "" {
		http.Error(w, "userId and a valid role are required", http.StatusBadRequest)

		return
	}

	exists, err := s.store.DocumentExists(docID)
	if err != nil {
		writeSessionError(w, err)

		return
	}

	if !exists {
		writeSessionError(w, storage.ErrDocumentNotFound)

		return
	}

	checker := acl.NewChecker(s.permStore)
	if err := checker.RequirePermission(docID, UserIDFromContext(r.Context()), acl.ActionShare); err != nil {
		writeSessionError(w, err)

		return
	}

	if err := s.permStore.Grant(docID, req.UserID, role); err != nil {
		writeSessionError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
