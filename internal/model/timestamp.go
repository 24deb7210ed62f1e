package model

import (
	"errors"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// PublishedLayout is the canonical status_published representation.
const PublishedLayout = "2006-01-02 15:04:05"

var ErrInvalidTimestamp = errors.New("model: unrecognised timestamp")

// layouts seen in the post exports, tried before the generic parser.
var publishedLayouts = []string{
	PublishedLayout,
	"01-02-2006 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

// NormalizeTimestamp parses s in any accepted format and returns it in
// PublishedLayout, UTC.
func NormalizeTimestamp(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidTimestamp
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(PublishedLayout), nil
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return "", ErrInvalidTimestamp
	}
	return t.UTC().Format(PublishedLayout), nil
}

// dayLayouts are date-only spellings; a value in one of them names a whole day.
var dayLayouts = []string{
	"2006-01-02",
	"01-02-2006",
	"1/2/2006",
}

// DayBounds reports whether s is a date without a time of day and, if so,
// returns the first and last second of that day in PublishedLayout.
func DayBounds(s string) (start, end string, ok bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(PublishedLayout), t.Add(24*time.Hour - time.Second).Format(PublishedLayout), true
		}
	}
	return "", "", false
}
