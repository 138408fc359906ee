package storage

import (
	"errors"
	"time"
)

// Common errors.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document already exists")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Snapshot represents a persisted version of a document.
type Snapshot struct {
	DocID     string
	Revision  int
	Content   string
	CreatedAt time.Time
}

// Store defines the interface for persisting document content.
// Only the latest snapshot of each document is kept; undo history lives in
// memory and is not persisted.
type Store interface {
	// CreateDocument creates a new document with the given ID.
	// Returns ErrDocumentExists if the document already exists.
	CreateDocument(docID string) error

	// DocumentExists checks if a document exists.
	DocumentExists(docID string) (bool, error)

	// SaveSnapshot persists the document content at the given revision.
	// Returns ErrDocumentNotFound if the document doesn't exist.
	SaveSnapshot(docID string, revision int, content string) error

	// LoadSnapshot retrieves the latest snapshot for a document.
	// Returns ErrDocumentNotFound if the document doesn't exist.
	// Returns ErrSnapshotNotFound if document exists but has no snapshot.
	LoadSnapshot(docID string) (Snapshot, error)

	// LatestRevision returns the revision of the latest snapshot, or 0.
	// Returns ErrDocumentNotFound if the document doesn't exist.
	LatestRevision(docID string) (int, error)

	// DeleteDocument removes a document and its snapshot.
	// Returns ErrDocumentNotFound if the document doesn't exist.
	DeleteDocument(docID string) error
}
