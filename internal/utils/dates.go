package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateLayout is the canonical date format used in wide tables and filters.
const DateLayout = "2006-01-02"

// TimestampLayout is the format of a statement's generation timestamp.
const TimestampLayout = "2006-01-02, 15:04:05"

// ParseDate parses a free-form date ("March 31, 2024", "2024-03-31",
// "03/31/2024", ...).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// NormalizeDate parses a free-form date and formats it as YYYY-MM-DD.
func NormalizeDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// NormalizeTimestamp parses a free-form timestamp such as
// "2024-04-02, 13:45:12" and formats it with TimestampLayout.
func NormalizeTimestamp(s string) (string, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ", ", " ")
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return t.Format(TimestampLayout), nil
}
