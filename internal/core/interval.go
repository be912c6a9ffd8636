package core

import (
	"errors"
	"time"

	"logvault/internal/domain"
)

// Period tokens resolvable into concrete time windows.
const (
	PeriodLastHour    = "last_hour"
	PeriodLastDay     = "last_day"
	PeriodPreviousDay = "previous_day"
	PeriodLastWeek    = "last_week"
	PeriodLastMonth   = "last_month"
)

var (
	ErrInvalidPeriod       = errors.New("invalid period: valid options are last_hour, last_day, previous_day, last_week and last_month")
	ErrInvalidIntervalType = errors.New("invalid interval type: valid options are last_hour, last_day, previous_day, last_week and last_month")
)

// ResolvePeriod maps a period token to the plain filter window anchored at
// now. The reference instant is always passed in explicitly so resolution
// stays deterministic under test.
//
// ResolvePeriod and ResolveHistogram deliberately produce different window
// shapes for last_hour and last_day: the filter window is anchored at now,
// while the histogram window is shifted so the most recent partial bucket
// stays visible. Callers depend on each shape; do not unify them.
func ResolvePeriod(period string, now time.Time) (domain.TimeInterval, error) {
	switch period {
	case PeriodLastHour:
		end := topOfHour(now)
		return domain.TimeInterval{Start: end.Add(-time.Hour), End: end, Width: 5 * time.Minute}, nil
	case PeriodLastDay, PeriodPreviousDay:
		end := midnight(now)
		return domain.TimeInterval{Start: end.AddDate(0, 0, -1), End: end, Width: time.Hour}, nil
	case PeriodLastWeek:
		start, end := lastWeekBounds(now)
		return domain.TimeInterval{Start: start, End: end, Width: 24 * time.Hour}, nil
	case PeriodLastMonth:
		start, end := lastMonthBounds(now)
		return domain.TimeInterval{Start: start, End: end, Width: 24 * time.Hour}, nil
	default:
		return domain.TimeInterval{}, ErrInvalidPeriod
	}
}

// ResolveHistogram maps an interval-type token to the bucketed histogram
// window anchored at now. See ResolvePeriod for why the last_hour and
// last_day windows differ from the filter variants: last_hour is widened past
// the top of the hour so the bucket in progress is reported, and last_day
// carries the producer-side clock offset.
func ResolveHistogram(intervalType string, now time.Time) (domain.TimeInterval, error) {
	switch intervalType {
	case PeriodLastHour:
		end := topOfHour(now).Add(10 * time.Minute)
		return domain.TimeInterval{Start: end.Add(-time.Hour), End: end, Width: 5 * time.Minute}, nil
	case PeriodLastDay:
		end := midnight(now).Add(-(6*time.Hour + 45*time.Minute))
		return domain.TimeInterval{Start: end.AddDate(0, 0, -1), End: end, Width: time.Hour}, nil
	case PeriodPreviousDay:
		end := midnight(now)
		return domain.TimeInterval{Start: end.AddDate(0, 0, -1), End: end, Width: time.Hour}, nil
	case PeriodLastWeek:
		start, end := lastWeekBounds(now)
		return domain.TimeInterval{Start: start, End: end, Width: 24 * time.Hour}, nil
	case PeriodLastMonth:
		start, end := lastMonthBounds(now)
		return domain.TimeInterval{Start: start, End: end, Width: 24 * time.Hour}, nil
	default:
		return domain.TimeInterval{}, ErrInvalidIntervalType
	}
}

// lastWeekBounds returns the previous calendar week under Monday-based
// weekday numbering with the current week's Monday excluded: the anchor is
// now minus (weekday+2) days, truncated to midnight, and the week is the six
// days preceding it.
func lastWeekBounds(now time.Time) (time.Time, time.Time) {
	weekday := (int(now.Weekday()) + 6) % 7 // Monday = 0
	end := midnight(now.AddDate(0, 0, -(weekday + 2)))
	start := end.AddDate(0, 0, -6)
	return start, end
}

// lastMonthBounds spans the full previous calendar month, from the 1st at
// midnight to the month's last instant at 23:59:59.999999.
func lastMonthBounds(now time.Time) (time.Time, time.Time) {
	firstOfCurrent := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastOfPrevious := firstOfCurrent.AddDate(0, 0, -1)
	start := time.Date(lastOfPrevious.Year(), lastOfPrevious.Month(), 1, 0, 0, 0, 0, now.Location())
	end := time.Date(lastOfPrevious.Year(), lastOfPrevious.Month(), lastOfPrevious.Day(), 23, 59, 59, 999999000, now.Location())
	return start, end
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func topOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}
