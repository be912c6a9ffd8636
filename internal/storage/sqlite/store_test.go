package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"logvault/internal/core"
	"logvault/internal/domain"
	"logvault/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(ingestionTime int64, ts time.Time) domain.LogRecord {
	return domain.LogRecord{
		GroupName:     "api",
		StreamName:    "prod-1",
		Owner:         42,
		Timestamp:     ts,
		Message:       "[INFO ] request handled",
		IngestionTime: ingestionTime,
	}
}

func TestInsertAssignsIDAndRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ts := time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
	stored, err := s.Insert(ctx, record(1000, ts))
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	got, err := s.Get(ctx, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Timestamp.UnixNano() != ts.UnixNano() {
		t.Fatalf("timestamp round trip: got %s want %s", got.Timestamp, ts)
	}
	if got.GroupName != "api" || got.IngestionTime != 1000 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestDuplicateIngestionTimeRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ts := time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
	if _, err := s.Insert(ctx, record(1000, ts)); err != nil {
		t.Fatal(err)
	}

	other := record(1000, ts.Add(time.Minute))
	other.GroupName = "web"
	_, err := s.Insert(ctx, other)
	if !errors.Is(err, storage.ErrDuplicateIngestion) {
		t.Fatalf("expected ErrDuplicateIngestion, got %v", err)
	}

	total, err := s.Total(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Fatalf("duplicate must not mutate state, total = %d", total)
	}
}

func TestGetUpdateDeleteMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Get(ctx, 7); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing: %v", err)
	}
	if _, err := s.Update(ctx, domain.LogRecord{ID: 7, Timestamp: time.Now(), IngestionTime: 1}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}
	if err := s.Delete(ctx, 7); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestListTranslatesFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	seed := []domain.LogRecord{
		{GroupName: "api", StreamName: "prod-1", Owner: 1, Timestamp: base, Message: "[ERROR ] boom", IngestionTime: 1},
		{GroupName: "api", StreamName: "prod-2", Owner: 1, Timestamp: base.Add(time.Hour), Message: "[INFO ] ok", IngestionTime: 2},
		{GroupName: "web", StreamName: "prod-1", Owner: 1, Timestamp: base.Add(2 * time.Hour), Message: "[ERROR ] bad", IngestionTime: 3},
	}
	for _, r := range seed {
		if _, err := s.Insert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.List(ctx, core.Filter{GroupName: "api"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("group filter: got %d records", len(got))
	}

	got, err = s.List(ctx, core.Filter{Marker: "[ERROR ]"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("marker filter: got %d records", len(got))
	}

	got, err = s.List(ctx, core.Filter{GroupName: "api", StreamName: "prod-1", Marker: "[ERROR ]"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].IngestionTime != 1 {
		t.Fatalf("conjunctive filter: %+v", got)
	}

	got, err = s.List(ctx, core.Filter{Start: base, End: base.Add(time.Hour), HasRange: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("inclusive range filter: got %d records", len(got))
	}

	// The SQL translation must agree with the reference predicate.
	all, err := s.List(ctx, core.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	f := core.Filter{GroupName: "api", Marker: "[ERROR ]"}
	fromSQL, err := s.List(ctx, f)
	if err != nil {
		t.Fatal(err)
	}
	var fromPredicate int
	for _, r := range all {
		if f.Matches(r) {
			fromPredicate++
		}
	}
	if len(fromSQL) != fromPredicate {
		t.Fatalf("SQL filter (%d) disagrees with predicate (%d)", len(fromSQL), fromPredicate)
	}
}

func TestCountRangeInclusive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{base, base.Add(30 * time.Minute), base.Add(time.Hour)} {
		if _, err := s.Insert(ctx, record(int64(i+1), ts)); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.CountRange(ctx, base, base.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("inclusive count = %d, want 3", n)
	}
	n, err = s.CountRange(ctx, base.Add(time.Second), base.Add(time.Hour).Add(-time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("interior count = %d, want 1", n)
	}
}

func TestRecentOrdersByTimestampDescending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if _, err := s.Insert(ctx, record(int64(i+1), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Recent(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d records, want 5", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Fatalf("records not in descending timestamp order: %+v", got)
		}
	}
	if got[0].IngestionTime != 7 {
		t.Fatalf("most recent first, got ingestion time %d", got[0].IngestionTime)
	}
}

func TestGroupsNestsDistinctStreams(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	seed := []struct{ group, stream string }{
		{"api", "prod-1"}, {"api", "prod-2"}, {"api", "prod-1"}, {"web", "edge"},
	}
	for i, gs := range seed {
		r := record(int64(i+1), base)
		r.GroupName, r.StreamName = gs.group, gs.stream
		if _, err := s.Insert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	groups, err := s.Groups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].GroupName != "api" || len(groups[0].Streams) != 2 {
		t.Fatalf("api group: %+v", groups[0])
	}
	if groups[1].GroupName != "web" || len(groups[1].Streams) != 1 {
		t.Fatalf("web group: %+v", groups[1])
	}
}

func TestUpsertCountAndCascadeDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stored, err := s.Insert(ctx, record(1000, time.Now()))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.UpsertCount(ctx, stored.ID, domain.SeverityCounts{Info: 2, Error: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertCount(ctx, stored.ID, domain.SeverityCounts{Info: 3}); err != nil {
		t.Fatal(err)
	}
	c, err := s.GetCount(ctx, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Info != 3 || c.Error != 0 || c.Warn != 0 {
		t.Fatalf("upsert must replace in place: %+v", c)
	}

	if err := s.Delete(ctx, stored.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetCount(ctx, stored.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("count must cascade with its record, got %v", err)
	}
}

func TestSQLiteWALModeEnabled(t *testing.T) {
	s := newTestStore(t)
	var mode string
	if err := s.db.QueryRow(`PRAGMA journal_mode;`).Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if strings.ToLower(mode) != "wal" {
		t.Fatalf("journal mode must be WAL, got %q", mode)
	}
}
