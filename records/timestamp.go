package records

import (
	"strings"
	"time"
)

// DateTime is the canonical timezone-naive format for normalised timestamps.
const DateTime = "2006-01-02 15:04:05"

// Timestamp is a normalised instant: parsed with its offset, converted to UTC and
// then treated as naive. The zero value is the Invalid sentinel.
type Timestamp struct {
	t     time.Time
	valid bool
}

// Invalid is returned by Normalise for values that cannot be parsed.
var Invalid = Timestamp{}

var zoned = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02 15:04:05Z07",
	"2006-01-02T15:04Z07:00",
}

var naive = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// Normalise parses a timestamp that may or may not carry a time zone offset.
// Values with an offset are converted to UTC, values without one are taken to
// already be UTC. Anything else (empty, malformed, 'NaT') yields Invalid.
func Normalise(s string) Timestamp {
	if t, ok := Parse(s); ok {
		return Timestamp{t: t.UTC(), valid: true}
	}

	return Invalid
}

// Parse parses a timestamp in any of the accepted formats, keeping the offset
// of the value. Values without an offset are in UTC.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range zoned {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	for _, layout := range naive {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// NormaliseTime applies the same canonicalisation to an already parsed instant.
func NormaliseTime(t time.Time) Timestamp {
	if t.IsZero() {
		return Invalid
	}

	return Timestamp{t: t.UTC(), valid: true}
}

func (t Timestamp) Valid() bool {
	return t.valid
}

func (t Timestamp) Time() time.Time {
	return t.t
}

func (t Timestamp) Year() int {
	if !t.valid {
		return 0
	}

	return t.t.Year()
}

// Before returns false for Invalid timestamps so that an invalid value is never
// considered to be inside or outside of a window.
func (t Timestamp) Before(u Timestamp) bool {
	return t.valid && u.valid && t.t.Before(u.t)
}

func (t Timestamp) Equal(u Timestamp) bool {
	if !t.valid || !u.valid {
		return t.valid == u.valid
	}

	return t.t.Equal(u.t)
}

func (t Timestamp) String() string {
	if !t.valid {
		return "NaT"
	}

	return t.t.Format(DateTime)
}
