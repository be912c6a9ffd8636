package storage

import (
	"context"
	"errors"
	"time"

	"logvault/internal/core"
	"logvault/internal/domain"
)

var (
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("log record not found")

	// ErrDuplicateIngestion is returned when an insert collides with an
	// existing record's ingestion time. The uniqueness check and the insert
	// are a single atomic unit at the storage layer.
	ErrDuplicateIngestion = errors.New("a log with the same ingestion time already exists")
)

// Store is the record store contract: equality and range scans over log
// records plus the derived per-record severity counts.
type Store interface {
	Insert(ctx context.Context, r domain.LogRecord) (domain.LogRecord, error)
	Get(ctx context.Context, id int64) (domain.LogRecord, error)
	Update(ctx context.Context, r domain.LogRecord) (domain.LogRecord, error)
	Delete(ctx context.Context, id int64) error

	List(ctx context.Context, f core.Filter) ([]domain.LogRecord, error)
	CountRange(ctx context.Context, start, end time.Time) (int64, error)
	Total(ctx context.Context) (int64, error)
	Recent(ctx context.Context, n int) ([]domain.LogRecord, error)
	Groups(ctx context.Context) ([]domain.GroupStreams, error)

	UpsertCount(ctx context.Context, logID int64, c domain.SeverityCounts) error
	GetCount(ctx context.Context, logID int64) (domain.LogCount, error)
}
