package session_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/serroba/docs-undo/internal/acl"
	"github.com/serroba/docs-undo/internal/history"
	"github.com/serroba/docs-undo/internal/history/historytest"
	"github.com/serroba/docs-undo/internal/session"
	"github.com/serroba/docs-undo/internal/storage"
	"github.com/serroba/docs-undo/internal/ws"
	"github.com/stretchr/testify/require"
)

// recordingConn captures the state messages a client receives.
type recordingConn struct {
	mu     sync.Mutex
	states []ws.StatePayload
}

func (c *recordingConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var msg struct {
		Type    ws.MessageType  `json:"type"`
		Payload ws.StatePayload `json:"payload"`
	}

	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	if msg.Type == ws.MessageTypeState {
		c.mu.Lock()
		c.states = append(c.states, msg.Payload)
		c.mu.Unlock()
	}

	return nil
}

func (c *recordingConn) ReadJSON(any) error { return errors.New("not supported") }

func (c *recordingConn) Close() error { return nil }

func (c *recordingConn) States() []ws.StatePayload {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]ws.StatePayload(nil), c.states...)
}

func newTestSession(t *testing.T, cfg session.SessionConfig) (*session.Session, *historytest.Clock) {
	t.Helper()

	clock := historytest.NewClock()

	if cfg.DocID == "" {
		cfg.DocID = "doc1"
	}

	if cfg.Store == nil {
		store := storage.NewMemoryStore()
		require.NoError(t, store.CreateDocument(cfg.DocID))
		cfg.Store = store
	}

	cfg.Clock = clock

	s := session.NewSession(cfg)
	require.NoError(t, s.Load())

	return s, clock
}

func TestSession_Edit_CommitsAfterDebounce(t *testing.T) {
	t.Parallel()

	s, clock := newTestSession(t, session.SessionConfig{})

	view, err := s.Edit("c1", "u1", "Hello")
	require.NoError(t, err)

	if view.Value != "Hello" {
		t.Errorf("expected value 'Hello', got %q", view.Value)
	}

	if !view.Pending {
		t.Error("expected edit to be pending")
	}

	if view.Revision != 0 {
		t.Errorf("expected revision 0 before commit, got %d", view.Revision)
	}

	clock.Advance(history.DefaultDebounce)

	view, err = s.GetState("u1")
	require.NoError(t, err)

	if view.Pending {
		t.Error("expected edit to be committed")
	}

	if view.Revision != 1 {
		t.Errorf("expected revision 1, got %d", view.Revision)
	}

	if !view.CanUndo {
		t.Error("expected undo to be available")
	}
}

func TestSession_Edit_PersistsPerPolicy(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	require.NoError(t, store.CreateDocument("doc1"))

	s, clock := newTestSession(t, session.SessionConfig{
		Store:          store,
		SnapshotPolicy: storage.NewSnapshotPolicy(2),
	})

	_, err := s.Edit("c1", "u1", "one")
	require.NoError(t, err)
	clock.Advance(history.DefaultDebounce)

	_, err = store.LoadSnapshot("doc1")
	if !errors.Is(err, storage.ErrSnapshotNotFound) {
		t.Errorf("expected no snapshot after first commit, got %v", err)
	}

	_, err = s.Edit("c1", "u1", "two")
	require.NoError(t, err)
	clock.Advance(history.DefaultDebounce)

	snapshot, err := store.LoadSnapshot("doc1")
	require.NoError(t, err)

	if snapshot.Content != "two" || snapshot.Revision != 2 {
		t.Errorf("expected 'two' at revision 2, got %q at %d", snapshot.Content, snapshot.Revision)
	}
}

func TestSession_UndoRedo(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	require.NoError(t, store.CreateDocument("doc1"))

	s, clock := newTestSession(t, session.SessionConfig{Store: store})

	_, err := s.Edit("c1", "u1", "A")
	require.NoError(t, err)
	clock.Advance(history.DefaultDebounce)

	_, err = s.Edit("c1", "u1", "AB")
	require.NoError(t, err)
	clock.Advance(history.DefaultDebounce)

	view, err := s.Undo("c1", "u1")
	require.NoError(t, err)

	if view.Value != "A" {
		t.Errorf("expected 'A' after undo, got %q", view.Value)
	}

	if !view.CanRedo {
		t.Error("expected redo to be available")
	}

	// Undo is always persisted.
	snapshot, err := store.LoadSnapshot("doc1")
	require.NoError(t, err)

	if snapshot.Content != "A" {
		t.Errorf("expected persisted 'A', got %q", snapshot.Content)
	}

	view, err = s.Redo("c1", "u1")
	require.NoError(t, err)

	if view.Value != "AB" {
		t.Errorf("expected 'AB' after redo, got %q", view.Value)
	}

	if view.CanRedo {
		t.Error("expected nothing left to redo")
	}
}

func TestSession_Undo_AtOldestIsNoop(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t, session.SessionConfig{})

	before := s.Revision()

	view, err := s.Undo("c1", "u1")
	require.NoError(t, err)

	if view.Value != "" {
		t.Errorf("expected empty value, got %q", view.Value)
	}

	if s.Revision() != before {
		t.Errorf("expected revision %d to be unchanged, got %d", before, s.Revision())
	}
}

func TestSession_Reset(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	require.NoError(t, store.CreateDocument("doc1"))

	s, clock := newTestSession(t, session.SessionConfig{Store: store})

	_, err := s.Edit("c1", "u1", "draft")
	require.NoError(t, err)
	clock.Advance(history.DefaultDebounce)

	view, err := s.Reset("c1", "u1", "fresh")
	require.NoError(t, err)

	if view.Value != "fresh" {
		t.Errorf("expected 'fresh', got %q", view.Value)
	}

	if view.CanUndo || view.CanRedo {
		t.Error("expected history to be cleared")
	}

	snapshots, index, err := s.History("u1")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	if snapshots[0].Value != "fresh" || index != 0 {
		t.Errorf("expected single 'fresh' snapshot at 0, got %q at %d", snapshots[0].Value, index)
	}

	snapshot, err := store.LoadSnapshot("doc1")
	require.NoError(t, err)

	if snapshot.Content != "fresh" {
		t.Errorf("expected persisted 'fresh', got %q", snapshot.Content)
	}
}

func TestSession_WithPermissions(t *testing.T) {
	t.Parallel()

	permStore := acl.NewMemoryStore()
	require.NoError(t, permStore.Grant("doc1", "owner", acl.Owner))
	require.NoError(t, permStore.Grant("doc1", "editor", acl.Editor))
	require.NoError(t, permStore.Grant("doc1", "viewer", acl.Viewer))

	s, clock := newTestSession(t, session.SessionConfig{
		PermChecker: acl.NewChecker(permStore),
	})

	_, err := s.Edit("c1", "editor", "A")
	require.NoError(t, err)
	clock.Advance(history.DefaultDebounce)

	_, err = s.Undo("c1", "editor")
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
	}{
		{"viewer edit", func() error { _, err := s.Edit("c2", "viewer", "B"); return err }},
		{"viewer undo", func() error { _, err := s.Undo("c2", "viewer"); return err }},
		{"viewer redo", func() error { _, err := s.Redo("c2", "viewer"); return err }},
		{"editor reset", func() error { _, err := s.Reset("c1", "editor", "x"); return err }},
		{"unknown read", func() error { _, err := s.GetState("unknown"); return err }},
		{"unknown history", func() error { _, _, err := s.History("unknown"); return err }},
	}

	for _, tt := range tests {
		if err := tt.call(); !errors.Is(err, acl.ErrAccessDenied) {
			t.Errorf("%s: expected ErrAccessDenied, got %v", tt.name, err)
		}
	}

	_, err = s.GetState("viewer")
	require.NoError(t, err)

	_, err = s.Reset("c3", "owner", "x")
	require.NoError(t, err)
}

func TestSession_Load_WithExistingData(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	require.NoError(t, store.CreateDocument("doc1"))
	require.NoError(t, store.SaveSnapshot("doc1", 5, "hello"))

	s, _ := newTestSession(t, session.SessionConfig{Store: store})

	view, err := s.GetState("user")
	require.NoError(t, err)

	if view.Value != "hello" {
		t.Errorf("expected 'hello', got %q", view.Value)
	}

	if view.Revision != 5 {
		t.Errorf("expected revision 5, got %d", view.Revision)
	}

	if view.CanUndo {
		t.Error("expected no history after load")
	}
}

func TestSession_Load_MissingDocument(t *testing.T) {
	t.Parallel()

	s := session.NewSession(session.SessionConfig{
		DocID: "missing",
		Store: storage.NewMemoryStore(),
	})

	err := s.Load()
	if !errors.Is(err, storage.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestSession_Close(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	require.NoError(t, store.CreateDocument("doc1"))

	s, clock := newTestSession(t, session.SessionConfig{Store: store})

	_, err := s.Edit("c1", "u1", "X")
	require.NoError(t, err)

	require.NoError(t, s.Close())

	// The pending edit was committed and saved.
	snapshot, err := store.LoadSnapshot("doc1")
	require.NoError(t, err)

	if snapshot.Content != "X" || snapshot.Revision != 1 {
		t.Errorf("expected 'X' at revision 1, got %q at %d", snapshot.Content, snapshot.Revision)
	}

	if clock.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", clock.Pending())
	}

	_, err = s.Edit("c1", "u1", "Y")
	if !errors.Is(err, session.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}

	_, err = s.Undo("c1", "u1")
	if !errors.Is(err, session.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}

	_, err = s.GetState("u1")
	if !errors.Is(err, session.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}

	// Closing twice is fine.
	require.NoError(t, s.Close())
}

func TestSession_Broadcast(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	senderConn := &recordingConn{}
	peerConn := &recordingConn{}

	sender := ws.NewClient("sender", "u1", senderConn)
	peer := ws.NewClient("peer", "u2", peerConn)

	for _, c := range []*ws.Client{sender, peer} {
		hub.Register(c)
		hub.Subscribe(c, "doc1")
	}

	s, clock := newTestSession(t, session.SessionConfig{Hub: hub})

	_, err := s.Edit("sender", "u1", "hi")
	require.NoError(t, err)

	clock.Advance(history.DefaultDebounce)

	_, err = s.Undo("sender", "u1")
	require.NoError(t, err)

	// Delivery is asynchronous and unordered.
	require.Eventually(t, func() bool {
		return len(peerConn.States()) == 3 && len(senderConn.States()) == 1
	}, time.Second, 5*time.Millisecond)

	byCause := make(map[string]ws.StatePayload)
	for _, st := range peerConn.States() {
		byCause[st.Cause] = st
	}

	for _, cause := range []string{session.CauseEdit, session.CauseCommit, session.CauseUndo} {
		if _, ok := byCause[cause]; !ok {
			t.Errorf("expected a %q state", cause)
		}
	}

	if edit := byCause[session.CauseEdit]; edit.UserID != "u1" || edit.Value != "hi" {
		t.Errorf("unexpected edit state %+v", edit)
	}

	if commit := byCause[session.CauseCommit]; commit.Revision != 1 || !commit.CanUndo {
		t.Errorf("unexpected commit state %+v", commit)
	}

	if undo := byCause[session.CauseUndo]; undo.Value != "" || !undo.CanRedo {
		t.Errorf("unexpected undo state %+v", undo)
	}

	// The sender only hears about the commit.
	if own := senderConn.States()[0]; own.Cause != session.CauseCommit {
		t.Errorf("expected commit, got %q", own.Cause)
	}
}

func TestSession_ReplayHold_DropsEchoedEdits(t *testing.T) {
	t.Parallel()

	s, clock := newTestSession(t, session.SessionConfig{ReplayHold: 50 * time.Millisecond})

	_, err := s.Edit("c1", "u1", "A")
	require.NoError(t, err)
	clock.Advance(history.DefaultDebounce)

	_, err = s.Undo("c1", "u1")
	require.NoError(t, err)

	// An editor echoing the replayed value back is ignored while held.
	view, err := s.Edit("c1", "u1", "echo")
	require.NoError(t, err)

	if view.Value != "" || !view.Dropped {
		t.Errorf("expected edit during replay to be dropped, got %+v", view)
	}

	clock.Advance(50 * time.Millisecond)

	view, err = s.Edit("c1", "u1", "B")
	require.NoError(t, err)

	if view.Value != "B" || view.Dropped {
		t.Errorf("expected 'B' to be accepted, got %+v", view)
	}
}

func TestSession_DocID(t *testing.T) {
	t.Parallel()

	s := session.NewSession(session.SessionConfig{
		DocID: "my-doc",
		Store: storage.NewMemoryStore(),
	})

	if s.DocID() != "my-doc" {
		t.Errorf("expected 'my-doc', got %q", s.DocID())
	}
}

func TestView_Payload(t *testing.T) {
	t.Parallel()

	view := session.View{DocID: "d", Value: "v", Revision: 3, CanUndo: true}
	payload := view.Payload()

	if payload.DocID != "d" || payload.Value != "v" || payload.Revision != 3 || !payload.CanUndo || payload.CanRedo {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestSession_ReplayHold_DroppedEditIsNotBroadcast(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	peerConn := &recordingConn{}
	peer := ws.NewClient("peer", "u2", peerConn)
	hub.Register(peer)
	hub.Subscribe(peer, "doc1")

	s, clock := newTestSession(t, session.SessionConfig{
		Hub:        hub,
		ReplayHold: 50 * time.Millisecond,
	})

	_, err := s.Edit("c1", "u1", "A")
	require.NoError(t, err)
	clock.Advance(history.DefaultDebounce)

	_, err = s.Undo("c1", "u1")
	require.NoError(t, err)

	// edit + commit + undo
	require.Eventually(t, func() bool { return len(peerConn.States()) == 3 }, time.Second, 5*time.Millisecond)

	view, err := s.Edit("c1", "u1", "echo")
	require.NoError(t, err)
	require.True(t, view.Dropped)
	require.True(t, view.Payload().Dropped)

	require.Never(t, func() bool { return len(peerConn.States()) > 3 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSession_Close_WithoutLoadKeepsStoredContent(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	require.NoError(t, store.CreateDocument("doc1"))
	require.NoError(t, store.SaveSnapshot("doc1", 0, "kept"))

	s := session.NewSession(session.SessionConfig{
		DocID: "doc1",
		Store: store,
		Clock: historytest.NewClock(),
	})

	require.NoError(t, s.Close())

	snapshot, err := store.LoadSnapshot("doc1")
	require.NoError(t, err)

	if snapshot.Content != "kept" {
		t.Errorf("expected stored content to survive, got %q", snapshot.Content)
	}
}

// recordingStore remembers every saved content.
type recordingStore struct {
	*storage.MemoryStore

	mu    sync.Mutex
	saved []string
}

func (r *recordingStore) SaveSnapshot(docID string, revision int, content string) error {
	r.mu.Lock()
	r.saved = append(r.saved, content)
	r.mu.Unlock()

	return r.MemoryStore.SaveSnapshot(docID, revision, content)
}

func (r *recordingStore) Saved() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.saved...)
}

func TestSession_Undo_PersistsReplayedVersionUnderConcurrentEdits(t *testing.T) {
	t.Parallel()

	mem := storage.NewMemoryStore()
	require.NoError(t, mem.CreateDocument("doc1"))

	store := &recordingStore{MemoryStore: mem}

	s, clock := newTestSession(t, session.SessionConfig{Store: store})

	committed := map[string]bool{"": true}

	for _, v := range []string{"v1", "v2", "v3", "v4", "v5", "v6"} {
		_, err := s.Edit("c1", "u1", v)
		require.NoError(t, err)
		clock.Advance(history.DefaultDebounce)

		committed[v] = true
	}

	done := make(chan struct{})

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for {
			select {
			case <-done:
				return
			default:
			}

			// Never committed: the clock does not move while this runs.
			_, _ = s.Edit("c2", "u2", "stray")
		}
	}()

	for range 6 {
		_, err := s.Undo("c1", "u1")
		require.NoError(t, err)
	}

	close(done)
	wg.Wait()

	for _, content := range store.Saved() {
		if !committed[content] {
			t.Errorf("persisted uncommitted content %q as an undo revision", content)
		}
	}
}
