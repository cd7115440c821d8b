package store

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertRunThenGet(t *testing.T) {
	s := openTestStore(t)

	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := RunIndexEntry{
		ID:          "run-1",
		BasePrompt:  "find the pricing page",
		Status:      "in_progress",
		Iterations:  2,
		StartedAt:   started,
		ArtifactDir: "/tmp/run-1",
	}
	if err := s.UpsertRun(entry); err != nil {
		t.Fatalf("UpsertRun: %v", err)
	}

	got, err := s.Get("run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.BasePrompt != entry.BasePrompt || got.Status != "in_progress" || got.Iterations != 2 {
		t.Fatalf("got %+v", got)
	}
	if !got.FinishedAt.IsZero() {
		t.Fatalf("expected zero FinishedAt, got %v", got.FinishedAt)
	}
}

func TestUpsertRunUpdatesExistingRow(t *testing.T) {
	s := openTestStore(t)

	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	finished := started.Add(5 * time.Minute)

	base := RunIndexEntry{ID: "run-1", BasePrompt: "goal", Status: "in_progress", StartedAt: started, ArtifactDir: "/tmp/run-1"}
	if err := s.UpsertRun(base); err != nil {
		t.Fatalf("initial UpsertRun: %v", err)
	}

	base.Status = "stop"
	base.Iterations = 9
	base.FinishedAt = finished
	base.ErrorMessage = ""
	if err := s.UpsertRun(base); err != nil {
		t.Fatalf("update UpsertRun: %v", err)
	}

	got, err := s.Get("run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != "stop" || got.Iterations != 9 {
		t.Fatalf("got %+v, want updated status/iterations", got)
	}
	if got.FinishedAt.IsZero() {
		t.Fatal("expected FinishedAt to be set after update")
	}
}

func TestGetMissingReturnsError(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get("nope"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestListReturnsNewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		entry := RunIndexEntry{
			ID:          id,
			BasePrompt:  "goal " + id,
			Status:      "stop",
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			ArtifactDir: "/tmp/" + id,
		}
		if err := s.UpsertRun(entry); err != nil {
			t.Fatalf("UpsertRun(%s): %v", id, err)
		}
	}

	got, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}
	if got[0].ID != "run-c" || got[2].ID != "run-a" {
		t.Fatalf("got order %v, want newest-first", []string{got[0].ID, got[1].ID, got[2].ID})
	}
}

func TestListRespectsLimit(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		entry := RunIndexEntry{ID: id, BasePrompt: "goal", Status: "stop", StartedAt: base.Add(time.Duration(i) * time.Hour), ArtifactDir: "/tmp/" + id}
		if err := s.UpsertRun(entry); err != nil {
			t.Fatalf("UpsertRun(%s): %v", id, err)
		}
	}

	got, err := s.List(1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "run-c" {
		t.Fatalf("got %+v, want single newest row", got)
	}
}
