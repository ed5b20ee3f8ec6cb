package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/pagesnap/internal/capture"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	recs := []capture.Record{
		{SessionID: "s1", URL: "https://a.example/", State: capture.StateCompleted,
			Columns: 4, Rows: 2, Captured: 8, Artifact: "/out/a.png",
			Duration: 1200 * time.Millisecond},
		{SessionID: "s2", URL: "https://b.example/", State: capture.StateFailed,
			Columns: 2, Rows: 2, Captured: 3, Skipped: 1,
			Duration: 800 * time.Millisecond},
	}
	for _, r := range recs {
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("record %s: %v", r.SessionID, err)
		}
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}

	byID := map[string]Entry{}
	for _, e := range got {
		byID[e.SessionID] = e
	}

	e1 := byID["s1"]
	if e1.State != string(capture.StateCompleted) || e1.Captured != 8 || e1.Artifact != "/out/a.png" {
		t.Errorf("s1 = %+v", e1)
	}
	if e1.DurationMs != 1200 {
		t.Errorf("s1 duration_ms = %d, want 1200", e1.DurationMs)
	}

	e2 := byID["s2"]
	if e2.State != string(capture.StateFailed) || e2.Skipped != 1 {
		t.Errorf("s2 = %+v", e2)
	}
}

func TestRecord_ReplacesSameSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := capture.Record{SessionID: "s1", URL: "https://a.example/", State: capture.StateCompleted}
	if err := s.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Captured = 9
	if err := s.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if got[0].Captured != 9 {
		t.Errorf("captured = %d, want 9", got[0].Captured)
	}
}

func TestRecent_LimitAndDefault(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := capture.Record{
			SessionID: string(rune('a' + i)),
			State:     capture.StateCompleted,
		}
		if err := s.Record(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("limit 3 returned %d entries", len(got))
	}

	got, err = s.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Errorf("default limit returned %d entries, want all 5", len(got))
	}
}
