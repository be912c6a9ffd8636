package domain

import "time"

// LogRecord is one ingested log line. IngestionTime is a producer-supplied
// epoch value and is unique across all records: a second record carrying an
// already-seen ingestion time is rejected, never overwritten.
type LogRecord struct {
	ID            int64
	GroupName     string
	StreamName    string
	Owner         int64
	Timestamp     time.Time
	Message       string
	IngestionTime int64
}

// SeverityCounts holds occurrence counts of the severity markers within a
// single message body.
type SeverityCounts struct {
	Info  int
	Error int
	Warn  int
}

// LogCount is the persisted derived count record, one-to-one with a
// LogRecord. It is recomputed on every create/update of the owning record and
// cascades to deletion with it.
type LogCount struct {
	LogID int64
	SeverityCounts
}

// TimeInterval is a resolved [Start, End] window plus the bucket width used
// when histogramming over it. Query-only, never persisted.
type TimeInterval struct {
	Start time.Time
	End   time.Time
	Width time.Duration
}

// Bucket is one fixed-width histogram slice. Boundary is the bucket's end
// instant, not its start.
type Bucket struct {
	Boundary time.Time
	Count    int64
}

// GroupStreams lists the distinct stream names seen under one group name.
type GroupStreams struct {
	GroupName string
	Streams   []string
}
