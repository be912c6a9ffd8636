package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"logvault/internal/core"
	"logvault/internal/domain"
	"logvault/internal/storage"
)

// ValidationError reports field-level problems with a candidate record. It is
// fatal to that record only.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid log record: " + strings.Join(parts, "; ")
}

// Gate validates and deduplicates candidate records before they reach
// storage, and keeps the derived per-record severity count in step with the
// message body.
//
// Per record the path is Validated -> Persisted -> Counted. A failure before
// Persisted leaves no trace; a failure between Persisted and Counted is
// healed by RecomputeCounts, since counts are a pure function of the stored
// message.
type Gate struct {
	store storage.Store
}

func NewGate(store storage.Store) *Gate {
	return &Gate{store: store}
}

// Ingest validates and persists one record, then derives its LogCount.
// Duplicate ingestion times surface storage.ErrDuplicateIngestion without
// mutating state; the uniqueness check and the insert are atomic at the
// storage layer.
func (g *Gate) Ingest(ctx context.Context, r domain.LogRecord) (domain.LogRecord, error) {
	if err := Validate(r); err != nil {
		return domain.LogRecord{}, err
	}
	stored, err := g.store.Insert(ctx, r)
	if err != nil {
		return domain.LogRecord{}, err
	}
	if err := g.store.UpsertCount(ctx, stored.ID, core.CountMarkers(stored.Message)); err != nil {
		return domain.LogRecord{}, fmt.Errorf("derive count for log %d: %w", stored.ID, err)
	}
	return stored, nil
}

// BatchResult is the outcome for one record of a batch. Err is nil when the
// record was accepted.
type BatchResult struct {
	Record domain.LogRecord
	Err    error
}

// IngestBatch ingests each candidate independently: invalid or duplicate
// records are reported per position while the rest of the batch proceeds.
func (g *Gate) IngestBatch(ctx context.Context, records []domain.LogRecord) []BatchResult {
	out := make([]BatchResult, len(records))
	for i, r := range records {
		stored, err := g.Ingest(ctx, r)
		out[i] = BatchResult{Record: stored, Err: err}
	}
	return out
}

// Reingest applies an update to an existing record and recomputes its
// derived count, keeping LogCount consistent with the new message.
func (g *Gate) Reingest(ctx context.Context, r domain.LogRecord) (domain.LogRecord, error) {
	if err := Validate(r); err != nil {
		return domain.LogRecord{}, err
	}
	stored, err := g.store.Update(ctx, r)
	if err != nil {
		return domain.LogRecord{}, err
	}
	if err := g.store.UpsertCount(ctx, stored.ID, core.CountMarkers(stored.Message)); err != nil {
		return domain.LogRecord{}, fmt.Errorf("derive count for log %d: %w", stored.ID, err)
	}
	return stored, nil
}

// RecomputeCounts re-derives every LogCount from the stored messages. Counts
// are a pure function of the message, so running this any number of times is
// idempotent. Usable after bulk edits or a crash between persist and count.
func (g *Gate) RecomputeCounts(ctx context.Context) (int, error) {
	records, err := g.store.List(ctx, core.Filter{})
	if err != nil {
		return 0, err
	}
	for _, r := range records {
		if err := g.store.UpsertCount(ctx, r.ID, core.CountMarkers(r.Message)); err != nil {
			return 0, fmt.Errorf("recompute count for log %d: %w", r.ID, err)
		}
	}
	return len(records), nil
}

// Validate checks that every required field of a candidate record is
// present. Problems are collected per field rather than failing on the first.
func Validate(r domain.LogRecord) error {
	fields := map[string]string{}
	if strings.TrimSpace(r.GroupName) == "" {
		fields["groupName"] = "this field is required"
	}
	if strings.TrimSpace(r.StreamName) == "" {
		fields["streamName"] = "this field is required"
	}
	if r.Owner < 0 {
		fields["owner"] = "must be a non-negative integer"
	}
	if r.Timestamp.IsZero() {
		fields["timestamp"] = "this field is required"
	}
	if r.Message == "" {
		fields["message"] = "this field is required"
	}
	if r.IngestionTime <= 0 {
		fields["ingestionTime"] = "must be a positive integer"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
