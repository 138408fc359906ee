package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/serroba/docs-undo/internal/storage/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLiteStore persists documents in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path and applies the embedded migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(db, migrations.FS); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func applyMigrations(db *sql.DB, migrationFS fs.FS) error {
	files, err := fs.Glob(migrationFS, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	sort.Strings(files)

	for _, file := range files {
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// CreateDocument creates a new document with the given ID.
func (s *SQLiteStore) CreateDocument(docID string) error {
	_, err := s.db.Exec(
		`INSERT INTO documents (id, created_at) VALUES (?, ?)`,
		docID,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDocumentExists
		}

		return fmt.Errorf("create document: %w", err)
	}

	return nil
}

// DocumentExists checks if a document exists.
func (s *SQLiteStore) DocumentExists(docID string) (bool, error) {
	var one int

	err := s.db.QueryRow(`SELECT 1 FROM documents WHERE id = ?`, docID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("check document: %w", err)
	}

	return true, nil
}

// SaveSnapshot stores content as the document's latest snapshot. A snapshot
// with a lower revision than the stored one is ignored.
func (s *SQLiteStore) SaveSnapshot(docID string, revision int, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save snapshot: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	var one int

	err = tx.QueryRow(`SELECT 1 FROM documents WHERE id = ?`, docID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDocumentNotFound
	}

	if err != nil {
		return fmt.Errorf("check document: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO snapshots (doc_id, revision, content, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(doc_id) DO UPDATE SET
		   revision = excluded.revision,
		   content = excluded.content,
		   created_at = excluded.created_at
		 WHERE excluded.revision >= snapshots.revision`,
		docID,
		revision,
		content,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot retrieves the latest snapshot for a document.
func (s *SQLiteStore) LoadSnapshot(docID string) (Snapshot, error) {
	var (
		revision  int
		content   string
		createdAt int64
	)

	err := s.db.QueryRow(
		`SELECT revision, content, created_at FROM snapshots WHERE doc_id = ?`,
		docID,
	).Scan(&revision, &content, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		exists, existsErr := s.DocumentExists(docID)
		if existsErr != nil {
			return Snapshot{}, existsErr
		}

		if !exists {
			return Snapshot{}, ErrDocumentNotFound
		}

		return Snapshot{}, ErrSnapshotNotFound
	}

	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	return Snapshot{
		DocID:     docID,
		Revision:  revision,
		Content:   content,
		CreatedAt: time.UnixMilli(createdAt).UTC(),
	}, nil
}

// LatestRevision returns the revision of the latest snapshot, or 0.
func (s *SQLiteStore) LatestRevision(docID string) (int, error) {
	snapshot, err := s.LoadSnapshot(docID)

	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		return 0, nil
	case err != nil:
		return 0, err
	}

	return snapshot.Revision, nil
}

// DeleteDocument removes a document and its snapshot.
func (s *SQLiteStore) DeleteDocument(docID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete document: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM snapshots WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	res, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, docID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if n == 0 {
		return ErrDocumentNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete document: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}

	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
