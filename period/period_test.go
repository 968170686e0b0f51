package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.Local)
}

func TestMonthRange(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		end   time.Time
	}{
		{2024, time.February, day(2024, time.February, 29)},
		{2025, time.February, day(2025, time.February, 28)},
		{2024, time.December, day(2024, time.December, 31)},
		{2024, time.April, day(2024, time.April, 30)},
	}

	for _, test := range tests {
		r := MonthRange(test.year, test.month)

		assert.Equal(t, day(test.year, test.month, 1), r.Start)
		assert.Equal(t, test.end, r.End)
	}
}

func TestCurrentMonth(t *testing.T) {
	now := time.Date(2025, time.March, 17, 14, 30, 0, 0, time.Local)

	r := CurrentMonth(now)

	assert.Equal(t, day(2025, time.March, 1), r.Start)
	assert.Equal(t, now, r.End)
}

func TestCurrentMonthOnFirstDay(t *testing.T) {
	now := time.Date(2025, time.January, 1, 6, 0, 0, 0, time.Local)

	r := CurrentMonth(now)

	assert.Equal(t, day(2024, time.December, 1), r.Start)
	assert.Equal(t, time.Date(2024, time.December, 31, 6, 0, 0, 0, time.Local), r.End)
}

func TestYearWindow(t *testing.T) {
	now := time.Date(2025, time.January, 20, 12, 0, 0, 0, time.Local)
	lookback := DefaultLookback
	cutoff := now.Add(-lookback)

	// current year starts on January 1 even though the cutoff is in December
	r, boundary, ok := YearWindow(2025, now, lookback)
	assert.True(t, ok)
	assert.Equal(t, Range{Start: day(2025, time.January, 1), End: now}, r)
	assert.Equal(t, day(2025, time.January, 1), boundary)

	// previous year partially inside the lookback
	r, boundary, ok = YearWindow(2024, now, lookback)
	assert.True(t, ok)
	assert.Equal(t, Range{Start: cutoff, End: day(2024, time.December, 31)}, r)
	assert.Equal(t, cutoff, boundary)

	// year entirely before the lookback
	_, _, ok = YearWindow(2023, now, lookback)
	assert.False(t, ok)
}

func TestYearWindowWithLongLookback(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.Local)

	r, boundary, ok := YearWindow(2024, now, 800*24*time.Hour)

	assert.True(t, ok)
	assert.Equal(t, Range{Start: day(2024, time.January, 1), End: day(2024, time.December, 31)}, r)
	assert.Equal(t, day(2024, time.January, 1), boundary)
}

func TestYearWindowForCurrentYear(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.Local)
	cutoff := now.Add(-DefaultLookback)

	r, boundary, ok := YearWindow(2025, now, DefaultLookback)

	assert.True(t, ok)
	assert.Equal(t, Range{Start: cutoff, End: now}, r)
	assert.Equal(t, cutoff, boundary)
}

func TestLookbackYears(t *testing.T) {
	tests := []struct {
		now      time.Time
		expected []int
	}{
		{time.Date(2025, time.March, 10, 12, 0, 0, 0, time.Local), []int{2025}},
		{time.Date(2026, time.January, 1, 6, 0, 0, 0, time.Local), []int{2025}},
		{time.Date(2026, time.January, 15, 6, 0, 0, 0, time.Local), []int{2025, 2026}},
		{time.Date(2026, time.February, 15, 6, 0, 0, 0, time.Local), []int{2026}},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, LookbackYears(test.now, DefaultLookback), test.now.String())
	}
}

func TestMonths(t *testing.T) {
	months := Months(2024, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.Local))

	assert.Len(t, months, 15)
	assert.Equal(t, Month{2024, time.January}, months[0])
	assert.Equal(t, Month{2025, time.March}, months[14])
	assert.Equal(t, "2025-03", months[14].String())
}

func TestMonthsOfYear(t *testing.T) {
	now := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.Local)

	assert.Len(t, MonthsOfYear(2024, now), 12)
	assert.Len(t, MonthsOfYear(2025, now), 3)
	assert.Len(t, MonthsOfYear(2026, now), 0)
}

func TestRangeString(t *testing.T) {
	r := MonthRange(2024, time.March)

	assert.Equal(t, "03/01/2024 to 03/31/2024", r.String())
}
