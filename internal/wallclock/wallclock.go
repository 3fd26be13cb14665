// Package wallclock reads backend timestamps whose UTC marker is a lie: the
// digits are the intended local wall-clock time, so the marker is stripped and
// the value is anchored in the caller's location instead of being converted.
package wallclock

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var utcMarkers = []string{"+00:00", "+0000", "+00", "Z", "z"}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// Parse interprets raw as wall-clock time in loc. Only UTC markers are
// discarded; a timestamp carrying a real non-zero offset is a true instant and
// is converted into loc.
func Parse(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s := StripUTCMarker(strings.TrimSpace(raw))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// StripUTCMarker removes a trailing Z or zero offset, leaving other offsets alone.
func StripUTCMarker(s string) string {
	for _, m := range utcMarkers {
		if strings.HasSuffix(s, m) && len(s) > len(DateLayout) {
			return s[:len(s)-len(m)]
		}
	}
	return s
}

// Format renders t as a marker-free wall-clock timestamp.
func Format(t time.Time) string {
	return t.Format("2006-01-02T15:04:05")
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay returns local midnight of t's calendar date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
