package core

import (
	"errors"
	"strings"

	"logvault/internal/domain"
)

// Severity tokens accepted by filter and count endpoints.
const (
	SeverityInfo  = "INFO"
	SeverityError = "ERROR"
	SeverityWarn  = "WARN"
)

// Markers are matched as literal bracketed, space-padded substrings, the way
// producers emit them, e.g. "[INFO ] connection established". A message may
// carry several markers; all occurrences count.
const (
	MarkerInfo  = "[INFO ]"
	MarkerError = "[ERROR ]"
	MarkerWarn  = "[WARN ]"
)

var ErrInvalidSeverity = errors.New("invalid severity: valid options are INFO, ERROR and WARN")

// Marker maps a severity token to its message marker.
func Marker(severity string) (string, error) {
	switch severity {
	case SeverityInfo:
		return MarkerInfo, nil
	case SeverityError:
		return MarkerError, nil
	case SeverityWarn:
		return MarkerWarn, nil
	default:
		return "", ErrInvalidSeverity
	}
}

// CountMarkers counts severity marker occurrences within a single message
// body. A message with no markers yields all-zero counts.
func CountMarkers(message string) domain.SeverityCounts {
	return domain.SeverityCounts{
		Info:  strings.Count(message, MarkerInfo),
		Error: strings.Count(message, MarkerError),
		Warn:  strings.Count(message, MarkerWarn),
	}
}
