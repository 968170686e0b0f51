package period

import (
	"fmt"
	"time"
)

// APIDate is the date format expected by the NEMO API query parameters.
const APIDate = "01/02/2006"

// DefaultLookback is how far back a master update replaces data. Usage records
// can be edited for weeks after the event so the last 40 days are always
// re-fetched.
const DefaultLookback = 40 * 24 * time.Hour

type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) String() string {
	return fmt.Sprintf("%v to %v", r.Start.Format(APIDate), r.End.Format(APIDate))
}

// MonthRange returns the first and last day of a calendar month.
func MonthRange(year int, month time.Month) Range {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, -1)

	return Range{Start: start, End: end}
}

// CurrentMonth returns the range from the first of the month up to now. On the
// first day of a month it returns the whole of the previous month instead, so
// that the last day of a month is always captured by a complete run.
func CurrentMonth(now time.Time) Range {
	if now.Day() == 1 {
		yesterday := now.AddDate(0, 0, -1)
		start := time.Date(yesterday.Year(), yesterday.Month(), 1, 0, 0, 0, 0, now.Location())

		return Range{Start: start, End: yesterday}
	}

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	return Range{Start: start, End: now}
}

// YearWindow returns the fetch range for updating the master table for a year,
// where the last 'lookback' of data is replaced. The cutoff is the replace
// boundary and is never earlier than January 1 of the year. The boolean result
// is false if the year ended before the cutoff and nothing needs to be updated.
func YearWindow(year int, now time.Time, lookback time.Duration) (Range, time.Time, bool) {
	cutoff := now.Add(-lookback)
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, now.Location())
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, now.Location())

	if year == now.Year() {
		end = now
	}

	switch {
	case cutoff.After(end):
		return Range{}, cutoff, false

	case cutoff.Before(start):
		return Range{Start: start, End: end}, start, true

	default:
		return Range{Start: cutoff, End: end}, cutoff, true
	}
}

// LookbackYears lists the years with master tables refreshed by a monthly run,
// i.e. from the year of the lookback cutoff up to the year of the month being
// uploaded.
func LookbackYears(now time.Time, lookback time.Duration) []int {
	years := []int{}
	last := CurrentMonth(now).Start.Year()

	for year := now.Add(-lookback).Year(); year <= last; year++ {
		years = append(years, year)
	}

	return years
}

// LookbackWindow returns the fetch range and replace boundary for the all-years
// master table.
func LookbackWindow(now time.Time, lookback time.Duration) (Range, time.Time) {
	cutoff := now.Add(-lookback)

	return Range{Start: cutoff, End: now}, cutoff
}

type Month struct {
	Year  int
	Month time.Month
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) Range() Range {
	return MonthRange(m.Year, m.Month)
}

// Months lists every month from January of the start year up to and including
// the month of 'now'.
func Months(startYear int, now time.Time) []Month {
	months := []Month{}

	for year := startYear; year <= now.Year(); year++ {
		last := time.December
		if year == now.Year() {
			last = now.Month()
		}

		for month := time.January; month <= last; month++ {
			months = append(months, Month{Year: year, Month: month})
		}
	}

	return months
}

// MonthsOfYear lists the months of a year, stopping at the current month for the
// current year.
func MonthsOfYear(year int, now time.Time) []Month {
	months := []Month{}

	last := time.December
	if year == now.Year() {
		last = now.Month()
	} else if year > now.Year() {
		return months
	}

	for month := time.January; month <= last; month++ {
		months = append(months, Month{Year: year, Month: month})
	}

	return months
}
