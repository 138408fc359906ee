package api

import (
	"net/http"

	"github.com/serroba/docs-undo/internal/history"
)

// HistoryResponse lists the retained versions of a document.
type HistoryResponse struct {
	ID        string             `json:"id"`
	Index     int                `json:"index"`
	Snapshots []history.Snapshot `json:"snapshots"`
}

// handleGetHistory handles GET /documents/{id}/history.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request, docID string) {
	sess, ok := s.openSession(w, docID)
	if !ok {
		return
	}

	snapshots, index, err := sess.History(UserIDFromContext(r.Context()))
	if err != nil {
		writeSessionError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		ID:        docID,
		Index:     index,
		Snapshots: snapshots,
	})
}

// handleUndo handles POST /documents/{id}/undo.
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request, docID string) {
	sess, ok := s.openSession(w, docID)
	if !ok {
		return
	}

	view, err := sess.Undo("", UserIDFromContext(r.Context()))
	if err != nil {
		writeSessionError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, newDocumentResponse(view))
}

// handleRedo handles POST /documents/{id}/redo.
func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request, docID string) {
	sess, ok := s.openSession(w, docID)
	if !ok {
		return
	}

	view, err := sess.Redo("", UserIDFromContext(r.Context()))
	if err != nil {
		writeSessionError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, newDocumentResponse(view))
}
