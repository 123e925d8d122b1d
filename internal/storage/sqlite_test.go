package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)

	started := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	if err := store.CreateSession("s1", "standup", "en-es", started); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	sessions, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].Status != "active" || sessions[0].Direction != "en-es" {
		t.Errorf("unexpected session: %+v", sessions[0])
	}
	if sessions[0].EndedAt != nil {
		t.Error("expected nil ended_at for active session")
	}

	if err := store.EndSession("s1", started.Add(time.Minute)); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	sessions, err = store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if sessions[0].Status != "ended" || sessions[0].EndedAt == nil {
		t.Errorf("expected ended session, got %+v", sessions[0])
	}
}

func TestCreateSessionRequiresID(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateSession("  ", "x", "en-es", time.Now()); err == nil {
		t.Fatal("expected error for blank session id")
	}
}

func TestLinesOrderedByCreation(t *testing.T) {
	store := newTestStore(t)

	started := time.Now().UTC()
	if err := store.CreateSession("s1", "standup", "en-es", started); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	lines := []Line{
		{ID: "l1", SessionID: "s1", SourceText: "One", Translated: "Uno", CreatedAt: started},
		{ID: "l2", SessionID: "s1", SourceText: "Two", Translated: "", IsError: true, CreatedAt: started.Add(time.Second)},
	}
	for _, line := range lines {
		if err := store.AppendLine(line); err != nil {
			t.Fatalf("AppendLine failed: %v", err)
		}
	}

	got, err := store.GetLines("s1")
	if err != nil {
		t.Fatalf("GetLines failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got))
	}
	if got[0].SourceText != "One" || got[1].SourceText != "Two" {
		t.Errorf("unexpected order: %+v", got)
	}
	if !got[1].IsError {
		t.Error("expected second line to be marked as error")
	}
}
