package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"logvault/internal/domain"
	"logvault/internal/storage"
	"logvault/internal/storage/sqlite"
)

func newTestGate(t *testing.T) (*Gate, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewGate(store), store
}

func candidate(ingestionTime int64) domain.LogRecord {
	return domain.LogRecord{
		GroupName:     "api",
		StreamName:    "prod-1",
		Owner:         42,
		Timestamp:     time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC),
		Message:       "[INFO ] start [ERROR ] fail [INFO ] retry",
		IngestionTime: ingestionTime,
	}
}

func TestIngestPersistsAndCounts(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGate(t)

	stored, err := g.Ingest(ctx, candidate(1000))
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	c, err := store.GetCount(ctx, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Info != 2 || c.Error != 1 || c.Warn != 0 {
		t.Fatalf("derived count = %+v, want info=2 error=1 warn=0", c)
	}
}

func TestIngestValidationCollectsFieldProblems(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGate(t)

	_, err := g.Ingest(ctx, domain.LogRecord{Owner: -1})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"groupName", "streamName", "owner", "timestamp", "message", "ingestionTime"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("missing problem for field %q: %v", field, verr.Fields)
		}
	}

	// Nothing persisted on validation failure.
	total, err := store.Total(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Fatalf("validation failure left a trace: total = %d", total)
	}
}

func TestIngestDuplicateLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGate(t)

	if _, err := g.Ingest(ctx, candidate(1000)); err != nil {
		t.Fatal(err)
	}
	second := candidate(1000)
	second.Message = "[WARN ] different body"
	if _, err := g.Ingest(ctx, second); !errors.Is(err, storage.ErrDuplicateIngestion) {
		t.Fatalf("expected ErrDuplicateIngestion, got %v", err)
	}

	total, err := store.Total(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Fatalf("store must still contain exactly one record, got %d", total)
	}
}

func TestIngestBatchPartialSuccess(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGate(t)

	batch := []domain.LogRecord{
		candidate(1),
		{}, // invalid
		candidate(2),
		candidate(1), // duplicate of the first
	}
	results := g.IngestBatch(ctx, batch)
	if len(results) != 4 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("valid records rejected: %v %v", results[0].Err, results[2].Err)
	}
	var verr *ValidationError
	if !errors.As(results[1].Err, &verr) {
		t.Fatalf("expected ValidationError at position 1, got %v", results[1].Err)
	}
	if !errors.Is(results[3].Err, storage.ErrDuplicateIngestion) {
		t.Fatalf("expected duplicate at position 3, got %v", results[3].Err)
	}

	total, err := store.Total(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Fatalf("expected 2 accepted records, got %d", total)
	}
}

func TestReingestRecomputesCount(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGate(t)

	stored, err := g.Ingest(ctx, candidate(1000))
	if err != nil {
		t.Fatal(err)
	}

	stored.Message = "[WARN ] only a warning now"
	if _, err := g.Reingest(ctx, stored); err != nil {
		t.Fatal(err)
	}

	c, err := store.GetCount(ctx, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Info != 0 || c.Error != 0 || c.Warn != 1 {
		t.Fatalf("count not recomputed from new message: %+v", c)
	}
}

func TestRecomputeCountsIdempotent(t *testing.T) {
	ctx := context.Background()
	g, store := newTestGate(t)

	stored, err := g.Ingest(ctx, candidate(1000))
	if err != nil {
		t.Fatal(err)
	}

	n, err := g.RecomputeCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("recounted %d records, want 1", n)
	}
	first, err := store.GetCount(ctx, stored.ID)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := g.RecomputeCounts(ctx); err != nil {
		t.Fatal(err)
	}
	second, err := store.GetCount(ctx, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("recompute not idempotent: %+v then %+v", first, second)
	}
}
