package storage

import (
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Useful for testing and development.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Snapshot // nil value: document exists without a snapshot
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*Snapshot),
	}
}

// CreateDocument creates a new document with the given ID.
func (m *MemoryStore) CreateDocument(docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[docID]; exists {
		return ErrDocumentExists
	}

	m.docs[docID] = nil

	return nil
}

// DocumentExists checks if a document exists.
func (m *MemoryStore) DocumentExists(docID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.docs[docID]

	return exists, nil
}

// SaveSnapshot replaces the document's snapshot. Snapshots older than the
// stored one are ignored so a late writer cannot roll content back.
func (m *MemoryStore) SaveSnapshot(docID string, revision int, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.docs[docID]
	if !exists {
		return ErrDocumentNotFound
	}

	if current != nil && current.Revision > revision {
		return nil
	}

	m.docs[docID] = &Snapshot{
		DocID:     docID,
		Revision:  revision,
		Content:   content,
		CreatedAt: time.Now(),
	}

	return nil
}

// LoadSnapshot retrieves the latest snapshot for a document.
func (m *MemoryStore) LoadSnapshot(docID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot, exists := m.docs[docID]
	if !exists {
		return Snapshot{}, ErrDocumentNotFound
	}

	if snapshot == nil {
		return Snapshot{}, ErrSnapshotNotFound
	}

	return *snapshot, nil
}

// LatestRevision returns the revision of the latest snapshot.
func (m *MemoryStore) LatestRevision(docID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot, exists := m.docs[docID]
	if !exists {
		return 0, ErrDocumentNotFound
	}

	if snapshot == nil {
		return 0, nil
	}

	return snapshot.Revision, nil
}

// DeleteDocument removes a document.
func (m *MemoryStore) DeleteDocument(docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[docID]; !exists {
		return ErrDocumentNotFound
	}

	delete(m.docs, docID)

	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
