package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"logvault/internal/core"
	"logvault/internal/domain"
	"logvault/internal/storage"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	group_name TEXT NOT NULL,
	stream_name TEXT NOT NULL,
	owner INTEGER NOT NULL,
	timestamp_ns INTEGER NOT NULL,
	message TEXT NOT NULL,
	ingestion_time INTEGER NOT NULL UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp_ns);
CREATE INDEX IF NOT EXISTS idx_logs_group_stream ON logs(group_name, stream_name);

CREATE TABLE IF NOT EXISTS log_counts (
	log_id INTEGER PRIMARY KEY REFERENCES logs(id) ON DELETE CASCADE,
	info_count INTEGER NOT NULL DEFAULT 0,
	error_count INTEGER NOT NULL DEFAULT 0,
	warn_count INTEGER NOT NULL DEFAULT 0
);
`

type Store struct {
	db *sql.DB
}

func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir base dir: %w", err)
	}
	db, err := openSQLite(filepath.Join(baseDir, "logvault.db"))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, r domain.LogRecord) (domain.LogRecord, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO logs(group_name, stream_name, owner, timestamp_ns, message, ingestion_time)
VALUES (?, ?, ?, ?, ?, ?)`,
		r.GroupName, r.StreamName, r.Owner, r.Timestamp.UnixNano(), r.Message, r.IngestionTime)
	if err != nil {
		if isIngestionTimeConflict(err) {
			return domain.LogRecord{}, storage.ErrDuplicateIngestion
		}
		return domain.LogRecord{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.LogRecord{}, err
	}
	r.ID = id
	return r, nil
}

func (s *Store) Get(ctx context.Context, id int64) (domain.LogRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, group_name, stream_name, owner, timestamp_ns, message, ingestion_time
FROM logs WHERE id = ?`, id)
	return scanRecord(row)
}

func (s *Store) Update(ctx context.Context, r domain.LogRecord) (domain.LogRecord, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE logs SET group_name=?, stream_name=?, owner=?, timestamp_ns=?, message=?, ingestion_time=?
WHERE id=?`,
		r.GroupName, r.StreamName, r.Owner, r.Timestamp.UnixNano(), r.Message, r.IngestionTime, r.ID)
	if err != nil {
		if isIngestionTimeConflict(err) {
			return domain.LogRecord{}, storage.ErrDuplicateIngestion
		}
		return domain.LogRecord{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.LogRecord{}, err
	}
	if n == 0 {
		return domain.LogRecord{}, storage.ErrNotFound
	}
	return r, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM logs WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, f core.Filter) ([]domain.LogRecord, error) {
	query := `
SELECT id, group_name, stream_name, owner, timestamp_ns, message, ingestion_time
FROM logs`
	var conds []string
	var args []any
	if f.GroupName != "" {
		conds = append(conds, "group_name = ?")
		args = append(args, f.GroupName)
	}
	if f.StreamName != "" {
		conds = append(conds, "stream_name = ?")
		args = append(args, f.StreamName)
	}
	if f.Marker != "" {
		conds = append(conds, "instr(message, ?) > 0")
		args = append(args, f.Marker)
	}
	if f.HasRange {
		conds = append(conds, "timestamp_ns BETWEEN ? AND ?")
		args = append(args, f.Start.UnixNano(), f.End.UnixNano())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *Store) CountRange(ctx context.Context, start, end time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM logs WHERE timestamp_ns BETWEEN ? AND ?`,
		start.UnixNano(), end.UnixNano()).Scan(&n)
	return n, err
}

func (s *Store) Total(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM logs`).Scan(&n)
	return n, err
}

func (s *Store) Recent(ctx context.Context, n int) ([]domain.LogRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, group_name, stream_name, owner, timestamp_ns, message, ingestion_time
FROM logs ORDER BY timestamp_ns DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *Store) Groups(ctx context.Context) ([]domain.GroupStreams, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT group_name, stream_name FROM logs ORDER BY group_name, stream_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GroupStreams
	for rows.Next() {
		var group, stream string
		if err := rows.Scan(&group, &stream); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].GroupName != group {
			out = append(out, domain.GroupStreams{GroupName: group})
		}
		last := &out[len(out)-1]
		last.Streams = append(last.Streams, stream)
	}
	return out, rows.Err()
}

func (s *Store) UpsertCount(ctx context.Context, logID int64, c domain.SeverityCounts) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO log_counts(log_id, info_count, error_count, warn_count)
VALUES (?, ?, ?, ?)
ON CONFLICT(log_id)
DO UPDATE SET info_count=excluded.info_count, error_count=excluded.error_count, warn_count=excluded.warn_count`,
		logID, c.Info, c.Error, c.Warn)
	return err
}

func (s *Store) GetCount(ctx context.Context, logID int64) (domain.LogCount, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT log_id, info_count, error_count, warn_count FROM log_counts WHERE log_id = ?`, logID)
	var c domain.LogCount
	err := row.Scan(&c.LogID, &c.Info, &c.Error, &c.Warn)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LogCount{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.LogCount{}, err
	}
	return c, nil
}

func scanRecord(row *sql.Row) (domain.LogRecord, error) {
	var r domain.LogRecord
	var ts int64
	err := row.Scan(&r.ID, &r.GroupName, &r.StreamName, &r.Owner, &ts, &r.Message, &r.IngestionTime)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LogRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.LogRecord{}, err
	}
	r.Timestamp = time.Unix(0, ts)
	return r, nil
}

func scanRecords(rows *sql.Rows) ([]domain.LogRecord, error) {
	var out []domain.LogRecord
	for rows.Next() {
		var r domain.LogRecord
		var ts int64
		if err := rows.Scan(&r.ID, &r.GroupName, &r.StreamName, &r.Owner, &ts, &r.Message, &r.IngestionTime); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(0, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func isIngestionTimeConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: logs.ingestion_time")
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single connection: sqlite serializes writers anyway, and it keeps the
	// session pragmas below applied to every statement.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}
