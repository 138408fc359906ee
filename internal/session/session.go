package session

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/serroba/docs-undo/internal/acl"
	"github.com/serroba/docs-undo/internal/history"
	"github.com/serroba/docs-undo/internal/storage"
	"github.com/serroba/docs-undo/internal/ws"
)

// Common errors.
var (
	ErrSessionClosed = errors.New("session is closed")
)

// Causes reported with broadcast state.
const (
	CauseEdit   = "edit"
	CauseCommit = "commit"
	CauseUndo   = "undo"
	CauseRedo   = "redo"
	CauseReset  = "reset"
)

// View is the externally visible state of a document.
type View struct {
	DocID    string
	Value    string
	Revision int
	CanUndo  bool
	CanRedo  bool
	Pending  bool // An edit is waiting to be committed
	Dropped  bool // The edit was ignored because a replay was running
}

// Payload returns the wire form of v.
func (v View) Payload() ws.StatePayload {
	return v.payload("", "")
}

func (v View) payload(cause, userID string) ws.StatePayload {
	return ws.StatePayload{
		DocID:    v.DocID,
		Value:    v.Value,
		Revision: v.Revision,
		CanUndo:  v.CanUndo,
		CanRedo:  v.CanRedo,
		Dropped:  v.Dropped,
		Cause:    cause,
		UserID:   userID,
	}
}

// Session owns the single history engine of one open document. Every
// editing surface of the document goes through it.
type Session struct {
	docID  string
	engine *history.Engine

	mu     sync.RWMutex
	closed bool
	loaded bool

	// persistMu orders revisions and the snapshots written for them.
	persistMu sync.Mutex
	revision  int

	// Dependencies
	store          storage.Store
	permChecker    *acl.Checker
	hub            *ws.Hub
	snapshotPolicy *storage.SnapshotPolicy
}

// SessionConfig holds configuration for creating a session.
type SessionConfig struct {
	DocID          string
	Store          storage.Store
	PermChecker    *acl.Checker
	Hub            *ws.Hub
	SnapshotPolicy *storage.SnapshotPolicy
	HistorySize    int
	Debounce       time.Duration
	ReplayHold     time.Duration
	Clock          history.Clock
}

// NewSession creates a new editing session with an empty document.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		docID:          cfg.DocID,
		store:          cfg.Store,
		permChecker:    cfg.PermChecker,
		hub:            cfg.Hub,
		snapshotPolicy: cfg.SnapshotPolicy,
	}

	s.engine = history.New("",
		history.WithMaxSize(cfg.HistorySize),
		history.WithDebounce(cfg.Debounce),
		history.WithReplayHold(cfg.ReplayHold),
		history.WithClock(cfg.Clock),
		history.WithOnCommit(s.handleCommit),
	)
	s.engine.Subscribe(s.handleChange)

	return s
}

// Load replaces the document with its persisted content. History is cleared
// before the content is installed so nothing from a previous document can
// be undone into this one.
func (s *Session) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	loader := storage.NewDocumentLoader(s.store)

	result, err := loader.Load(s.docID)
	if err != nil {
		return err
	}

	s.persistMu.Lock()
	s.revision = result.Revision
	s.persistMu.Unlock()

	s.engine.ClearHistory(result.Content)
	s.loaded = true

	return nil
}

// Edit sets the document value on behalf of a client. The value is visible
// immediately and committed to history once the client pauses. An edit that
// arrives while an undo or redo is replaying is ignored and the returned
// view has Dropped set, so the client can send it again.
func (s *Session) Edit(clientID, userID, value string) (View, error) {
	if err := s.checkPermission(userID, acl.ActionWrite); err != nil {
		return View{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return View{}, ErrSessionClosed
	}

	if !s.engine.SetValue(value) {
		view := s.view()
		view.Dropped = true

		return view, nil
	}

	view := s.view()
	s.broadcast(view, CauseEdit, userID, clientID)

	return view, nil
}

// Undo steps the document back one committed version. Undoing past the
// oldest version leaves the document unchanged.
func (s *Session) Undo(clientID, userID string) (View, error) {
	return s.replay(clientID, userID, CauseUndo, -1)
}

// Redo steps the document forward one committed version. Redoing past the
// newest version leaves the document unchanged.
func (s *Session) Redo(clientID, userID string) (View, error) {
	return s.replay(clientID, userID, CauseRedo, 1)
}

// replay persists and broadcasts the state produced by the move itself, so
// an edit landing right after it is not recorded as the replayed version.
func (s *Session) replay(clientID, userID, cause string, delta int) (View, error) {
	if err := s.checkPermission(userID, acl.ActionWrite); err != nil {
		return View{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return View{}, ErrSessionClosed
	}

	state, ok := s.engine.Replay(delta)
	if !ok {
		return s.viewOf(state), nil
	}

	s.persist(state.Live, true)

	view := s.viewOf(state)
	s.broadcast(view, cause, userID, clientID)

	return view, nil
}

// Reset replaces the document with content and discards its history.
func (s *Session) Reset(clientID, userID, content string) (View, error) {
	if err := s.checkPermission(userID, acl.ActionReset); err != nil {
		return View{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return View{}, ErrSessionClosed
	}

	s.engine.ClearHistory(content)
	s.persist(content, true)

	view := s.view()
	s.broadcast(view, CauseReset, userID, clientID)

	return view, nil
}

// GetState returns the current document state.
// It checks read permission before returning.
func (s *Session) GetState(userID string) (View, error) {
	if err := s.checkPermission(userID, acl.ActionRead); err != nil {
		return View{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return View{}, ErrSessionClosed
	}

	return s.view(), nil
}

// History returns the retained snapshots and the position of the current one.
func (s *Session) History(userID string) ([]history.Snapshot, int, error) {
	if err := s.checkPermission(userID, acl.ActionRead); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, 0, ErrSessionClosed
	}

	state := s.engine.State()

	return state.Snapshots, state.Index, nil
}

// DocID returns the document ID for this session.
func (s *Session) DocID() string {
	return s.docID
}

// Revision returns the number of the latest committed version.
func (s *Session) Revision() int {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	return s.revision
}

// Close commits any pending edit, saves a final snapshot and stops the
// history engine.
func (s *Session) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	loaded := s.loaded
	s.mu.Unlock()

	// A session that never loaded must not overwrite the stored document.
	var err error
	if loaded {
		s.engine.Flush()
		err = s.saveSnapshot(s.engine.Value())
	}

	s.engine.Close()

	if s.snapshotPolicy != nil {
		s.snapshotPolicy.Forget(s.docID)
	}

	return err
}

// discard stops the session without committing or saving anything.
func (s *Session) discard() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.engine.Close()

	if s.snapshotPolicy != nil {
		s.snapshotPolicy.Forget(s.docID)
	}
}

// checkPermission verifies the user may perform action.
func (s *Session) checkPermission(userID string, action acl.Action) error {
	if s.permChecker == nil {
		return nil
	}

	return s.permChecker.RequirePermission(s.docID, userID, action)
}

// handleCommit runs on the engine's timer after an edit burst settles.
func (s *Session) handleCommit(snapshot history.Snapshot) {
	s.persist(snapshot.Value, false)
}

// handleChange relays committed versions to every subscriber. It runs after
// handleCommit, so the broadcast carries the new revision.
func (s *Session) handleChange(c history.Change) {
	if c.Kind == history.ChangeCommit {
		s.broadcast(s.viewOf(c.State), CauseCommit, "", "")
	}
}


// persist assigns the next revision to value and writes it when forced or
// when the snapshot policy asks for it.
func (s *Session) persist(value string, force bool) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.revision++

	if s.snapshotPolicy != nil && s.snapshotPolicy.RecordCommit(s.docID) {
		force = true
	}

	if !force {
		return
	}

	if err := s.store.SaveSnapshot(s.docID, s.revision, value); err != nil {
		log.Printf("document %s: failed to save revision %d: %v", s.docID, s.revision, err)

		return
	}

	if s.snapshotPolicy != nil {
		s.snapshotPolicy.Reset(s.docID)
	}
}

// saveSnapshot persists value at the current revision.
func (s *Session) saveSnapshot(value string) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	return s.store.SaveSnapshot(s.docID, s.revision, value)
}

// broadcast sends the state to other connected clients.
func (s *Session) broadcast(view View, cause, userID, excludeClientID string) {
	if s.hub == nil {
		return
	}

	s.hub.BroadcastState(view.payload(cause, userID), excludeClientID)
}

func (s *Session) view() View {
	return s.viewOf(s.engine.State())
}

func (s *Session) viewOf(state history.State) View {
	return View{
		DocID:    s.docID,
		Value:    state.Live,
		Revision: s.Revision(),
		CanUndo:  state.CanUndo(),
		CanRedo:  state.CanRedo(),
		Pending:  state.Pending(),
	}
}
