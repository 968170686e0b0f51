package records

import (
	"testing"
	"time"
)

func TestNormalise(t *testing.T) {
	tests := []struct {
		value    string
		expected string
	}{
		{"2024-03-05T10:00:00Z", "2024-03-05 10:00:00"},
		{"2024-03-05T10:00:00-08:00", "2024-03-05 18:00:00"},
		{"2024-03-05T10:00:00.123456-08:00", "2024-03-05 18:00:00"},
		{"2024-03-05 10:00:00+00:00", "2024-03-05 10:00:00"},
		{"2024-03-05 23:30:00-07:00", "2024-03-06 06:30:00"},
		{"2024-03-05T10:00:00+0100", "2024-03-05 09:00:00"},
		{"2024-03-05 10:00:00", "2024-03-05 10:00:00"},
		{"2024-03-05T10:00:00", "2024-03-05 10:00:00"},
		{"2024-03-05 10:00:00.5", "2024-03-05 10:00:00"},
		{"2024-03-05", "2024-03-05 00:00:00"},
		{"03/05/2024", "2024-03-05 00:00:00"},
		{"  2024-03-05T10:00:00Z  ", "2024-03-05 10:00:00"},
	}

	for _, test := range tests {
		ts := Normalise(test.value)
		if !ts.Valid() {
			t.Errorf("Expected valid timestamp for '%v'", test.value)
			continue
		}

		if ts.String() != test.expected {
			t.Errorf("Incorrect normalised timestamp for '%v' - expected:%v, got:%v", test.value, test.expected, ts)
		}

		if ts.Time().Location() != time.UTC {
			t.Errorf("Expected UTC location for '%v', got %v", test.value, ts.Time().Location())
		}
	}
}

func TestNormaliseInvalid(t *testing.T) {
	tests := []string{"", "   ", "NaT", "nan", "not a date", "2024-13-45", "2024/03/05 10:00"}

	for _, v := range tests {
		if ts := Normalise(v); ts.Valid() {
			t.Errorf("Expected Invalid for '%v', got %v", v, ts)
		} else if ts != Invalid {
			t.Errorf("Expected Invalid sentinel for '%v', got %#v", v, ts)
		} else if ts.String() != "NaT" {
			t.Errorf("Expected 'NaT' for invalid timestamp, got %v", ts)
		}
	}
}

func TestNormaliseMixedOffsetsCompareChronologically(t *testing.T) {
	a := Normalise("2024-12-31T20:00:00-08:00")
	b := Normalise("2025-01-01 02:00:00")

	if !b.Before(a) {
		t.Errorf("Expected %v to be before %v", b, a)
	}

	if a.Year() != 2025 {
		t.Errorf("Expected year 2025 for %v, got %v", a, a.Year())
	}
}

func TestInvalidIsNeverBefore(t *testing.T) {
	ts := Normalise("2024-01-01")

	if Invalid.Before(ts) || ts.Before(Invalid) {
		t.Errorf("Expected comparisons with Invalid to be false")
	}

	if Invalid.Year() != 0 {
		t.Errorf("Expected year 0 for Invalid, got %v", Invalid.Year())
	}
}

func TestParseKeepsOffset(t *testing.T) {
	v, ok := Parse("2024-03-05T10:00:00-08:00")
	if !ok {
		t.Fatalf("Expected valid timestamp")
	}

	if s := v.Format(DateTime); s != "2024-03-05 10:00:00" {
		t.Errorf("Incorrect wall clock time - expected:%v, got:%v", "2024-03-05 10:00:00", s)
	}

	if _, ok := Parse("NaT"); ok {
		t.Errorf("Expected 'NaT' to be invalid")
	}
}
