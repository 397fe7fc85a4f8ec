package cashbox

import (
	"strings"
	"time"
)

// DayLayout is the wire and storage layout of an operating day.
const DayLayout = "2006-01-02"

// ParseOperatingDay parses YYYY-MM-DD into a UTC midnight timestamp.
func ParseOperatingDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, NewValidationError("operating_day", "required")
	}
	t, err := time.Parse(DayLayout, value)
	if err != nil {
		return time.Time{}, NewValidationError("operating_day", "must be YYYY-MM-DD")
	}
	return NormalizeDay(t), nil
}

// NormalizeDay truncates a timestamp to its calendar date at UTC midnight.
// The calendar fields are taken as-is, so a local date keeps its day number.
func NormalizeDay(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDay renders an operating day as YYYY-MM-DD.
func FormatDay(day time.Time) string {
	if day.IsZero() {
		return ""
	}
	return day.Format(DayLayout)
}
