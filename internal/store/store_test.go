package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedgen.sqlite3")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("could not open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertFeedByName_IsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.UpsertFeedByName(ctx, "hn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, err := s.UpsertFeedByName(ctx, "hn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected stable id across upserts, got %d and %d", id1, id2)
	}
}

func TestRecordSuccessfulUpdate_DedupsAndAdvancesLastUpdated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	feedID, err := s.UpsertFeedByName(ctx, "hn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	entries := []NewEntry{{EntryID: "42", Title: "Hello", Description: "", URL: "https://example.com/42"}}
	if err := s.RecordSuccessfulUpdate(ctx, feedID, first, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := first.Add(5 * time.Minute)
	if err := s.RecordSuccessfulUpdate(ctx, feedID, second, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.ListEntries(ctx, feedID, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 deduped entry, got %d", len(got))
	}
	if got[0].Retrieved != first.Unix() {
		t.Errorf("expected retrieved to stay at the first insertion, got %d", got[0].Retrieved)
	}

	lastUpdated, ok, err := s.GetLastUpdated(ctx, feedID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || !lastUpdated.Equal(second) {
		t.Errorf("expected last_updated to advance to the second cycle, got %v (ok=%v)", lastUpdated, ok)
	}
}

func TestRecordSuccessfulUpdate_RollsBackOnFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// feedID 999 does not exist: the last_updated UPDATE affects zero rows
	// (not an error), but inserting against a nonexistent feed_id violates
	// the foreign key and should roll back the whole transaction.
	err := s.RecordSuccessfulUpdate(ctx, 999, time.Now(), []NewEntry{
		{EntryID: "x", Title: "t", URL: "https://example.com"},
	})
	if err == nil {
		t.Error("expected a foreign key violation for a nonexistent feed")
	}
}

func TestGetFeedByName_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetFeedByName(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
