package storage

import (
	"errors"
	"sync"
)

// SnapshotPolicy determines when committed history entries are persisted.
type SnapshotPolicy struct {
	mu                   sync.Mutex
	threshold            int            // Persist every N commits
	commitsSinceSnapshot map[string]int // Track commits per document since last snapshot
}

// NewSnapshotPolicy creates a policy that triggers snapshots every N commits.
// A threshold below 1 persists every commit.
func NewSnapshotPolicy(threshold int) *SnapshotPolicy {
	if threshold < 1 {
		threshold = 1
	}

	return &SnapshotPolicy{
		threshold:            threshold,
		commitsSinceSnapshot: make(map[string]int),
	}
}

// RecordCommit records that a history entry was committed.
// Returns true if a snapshot should be created.
func (p *SnapshotPolicy) RecordCommit(docID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.commitsSinceSnapshot[docID]++

	return p.commitsSinceSnapshot[docID] >= p.threshold
}

// Reset resets the counter after a snapshot is created.
func (p *SnapshotPolicy) Reset(docID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.commitsSinceSnapshot[docID] = 0
}

// Forget drops the counter for a closed document.
func (p *SnapshotPolicy) Forget(docID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.commitsSinceSnapshot, docID)
}

// CommitsSinceSnapshot returns the number of commits since the last snapshot.
func (p *SnapshotPolicy) CommitsSinceSnapshot(docID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.commitsSinceSnapshot[docID]
}

// DocumentLoader loads a document's persisted content.
type DocumentLoader struct {
	store Store
}

// NewDocumentLoader creates a new document loader.
func NewDocumentLoader(store Store) *DocumentLoader {
	return &DocumentLoader{store: store}
}

// LoadResult contains the result of loading a document.
type LoadResult struct {
	Content  string // Persisted document content
	Revision int    // Revision of the loaded snapshot
	IsNew    bool   // True if nothing was ever saved
}

// Load returns the latest persisted content of a document. A document that
// exists but was never saved loads as empty.
func (l *DocumentLoader) Load(docID string) (LoadResult, error) {
	snapshot, err := l.store.LoadSnapshot(docID)

	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		return LoadResult{IsNew: true}, nil
	case err != nil:
		return LoadResult{}, err
	}

	return LoadResult{
		Content:  snapshot.Content,
		Revision: snapshot.Revision,
	}, nil
}
