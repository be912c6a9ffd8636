package core

import (
	"strings"
	"time"

	"logvault/internal/domain"
)

// Filter is a conjunctive predicate over log records. Zero-valued fields
// impose no constraint. The storage layer translates a Filter into equality,
// range and substring conditions; Matches is the reference semantics.
type Filter struct {
	GroupName  string
	StreamName string

	// Marker is the severity marker substring to require in the message.
	Marker string

	// Start/End bound the record timestamp, inclusive on both ends.
	// Only applied when HasRange is set.
	Start    time.Time
	End      time.Time
	HasRange bool
}

// Compose builds a Filter from an arbitrary subset of query constraints.
// Empty strings impose no constraint. A period token is resolved against now
// through ResolvePeriod; a severity token must be one of INFO, ERROR, WARN.
func Compose(groupName, streamName, period, severity string, now time.Time) (Filter, error) {
	f := Filter{GroupName: groupName, StreamName: streamName}
	if period != "" {
		iv, err := ResolvePeriod(period, now)
		if err != nil {
			return Filter{}, err
		}
		f.Start, f.End, f.HasRange = iv.Start, iv.End, true
	}
	if severity != "" {
		marker, err := Marker(severity)
		if err != nil {
			return Filter{}, err
		}
		f.Marker = marker
	}
	return f, nil
}

// Matches reports whether a record satisfies every supplied constraint.
func (f Filter) Matches(r domain.LogRecord) bool {
	if f.GroupName != "" && r.GroupName != f.GroupName {
		return false
	}
	if f.StreamName != "" && r.StreamName != f.StreamName {
		return false
	}
	if f.Marker != "" && !strings.Contains(r.Message, f.Marker) {
		return false
	}
	if f.HasRange && (r.Timestamp.Before(f.Start) || r.Timestamp.After(f.End)) {
		return false
	}
	return true
}
