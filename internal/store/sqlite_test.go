package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/milohq/milo-memory/internal/apperr"
)

func newTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"), opts...)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// tickingClock returns a clock that advances one minute per call.
func tickingClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

func TestInsertDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e, err := s.Insert(ctx, InsertParams{Content: "  the sky is blue  "})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if e.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if e.Content != "the sky is blue" {
		t.Errorf("expected trimmed content, got %q", e.Content)
	}
	if e.EntryType != "fact" {
		t.Errorf("expected default type 'fact', got %q", e.EntryType)
	}
	if e.Importance != 5 {
		t.Errorf("expected default importance 5, got %d", e.Importance)
	}
	if e.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestInsertAssignsUniqueIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, _ := s.Insert(ctx, InsertParams{Content: "a"})
	b, _ := s.Insert(ctx, InsertParams{Content: "b"})
	if a.ID == b.ID {
		t.Fatalf("expected distinct ids, both %d", a.ID)
	}
}

func TestInsertValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name string
		p    InsertParams
	}{
		{"empty content", InsertParams{Content: ""}},
		{"blank content", InsertParams{Content: " \n\t"}},
		{"importance too high", InsertParams{Content: "x", Importance: 11}},
		{"importance negative", InsertParams{Content: "x", Importance: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.p); !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("Validate: expected validation error, got %v", err)
			}
			_, err := s.Insert(ctx, tt.p)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if err := Validate(InsertParams{Content: "x"}); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}

	all, _ := s.All(ctx)
	if len(all) != 0 {
		t.Fatalf("rejected writes must not store rows, got %d", len(all))
	}
}

func TestInsertThenSearchFindsID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	cases := []InsertParams{
		{Content: "prefers dark mode", EntryType: "preference", Importance: 8},
		{Content: "Shipped v2 on Friday", EntryType: "event", Importance: 1},
		{Content: "50% of builds use the cache_dir flag", EntryType: "insight", Importance: 10},
	}
	for _, p := range cases {
		e, err := s.Insert(ctx, p)
		if err != nil {
			t.Fatalf("insert %q: %v", p.Content, err)
		}
		results, err := s.Search(ctx, SearchParams{Query: p.Content, Limit: 5})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		found := false
		for _, r := range results {
			if r.ID == e.ID {
				found = true
			}
		}
		if !found {
			t.Errorf("search(%q) did not return id %d", p.Content, e.ID)
		}
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithClock(tickingClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))))

	s.Insert(ctx, InsertParams{Content: "alpha", EntryType: "fact"})
	s.Insert(ctx, InsertParams{Content: "beta", EntryType: "event"})
	s.Insert(ctx, InsertParams{Content: "gamma", EntryType: "fact"})

	all, _ := s.List(ctx, ListParams{})
	if len(all) != 3 {
		t.Fatalf("expected 3, got %d", len(all))
	}
	if all[0].Content != "gamma" || all[2].Content != "alpha" {
		t.Errorf("expected newest first, got %q..%q", all[0].Content, all[2].Content)
	}

	facts, _ := s.List(ctx, ListParams{EntryType: "fact"})
	if len(facts) != 2 {
		t.Errorf("expected 2 facts, got %d", len(facts))
	}

	limited, _ := s.List(ctx, ListParams{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected limit 1, got %d", len(limited))
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e, _ := s.Insert(ctx, InsertParams{Content: "temporary"})

	n, err := s.Delete(ctx, e.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}

	n, err = s.Delete(ctx, e.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 deleted on second call, got %d", n)
	}

	n, _ = s.Delete(ctx, 424242)
	if n != 0 {
		t.Errorf("expected 0 for unknown id, got %d", n)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}

	// Reopening an existing database is a no-op for the schema.
	s, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	s.Close()
}

func TestStorageUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewSQLiteStore(filepath.Join(blocker, "memory.db"))
	if !apperr.Is(err, apperr.KindStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}

func TestLegacyRowsAreReadable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Rows written by the older tooling rely on column defaults.
	if _, err := s.db.Exec(`INSERT INTO memory_entries (content) VALUES ('legacy row')`); err != nil {
		t.Fatal(err)
	}

	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1, got %d", len(all))
	}
	if all[0].EntryType != "fact" || all[0].Importance != 5 {
		t.Errorf("expected defaults, got %q/%d", all[0].EntryType, all[0].Importance)
	}
	if all[0].CreatedAt.IsZero() {
		t.Error("expected CURRENT_TIMESTAMP to parse")
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	for _, in := range []string{"2026-02-03 04:05:06", "2026-02-03T04:05:06Z", "2026-02-03T04:05:06"} {
		if got := ParseTime(in); !got.Equal(want) {
			t.Errorf("ParseTime(%q) = %v, want %v", in, got, want)
		}
	}
	if !ParseTime("garbage").IsZero() {
		t.Error("expected zero time for garbage")
	}
}
