// Package inspect reports on the integrity of the master tables: natural key
// duplicates, unparseable timestamps and the differences between a year master
// and the all-years master.
package inspect

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nemo-facility/nemo-app-drive/records"
)

const (
	DefaultKey   = "item_id"
	DefaultField = "start"

	// Maximum number of distinct values listed for a differing column.
	maxValues = 5
)

var (
	// Columns used to look for duplicates among records without a key.
	candidateColumns = []string{"start", "end", "item_type", "user", "tool"}

	// Columns compared between records with the same key.
	compareColumns = []string{"amount", "quantity", "start", "end", "item_type"}
)

type DuplicatesReport struct {
	Key        string
	Records    int
	NullKeys   int
	UniqueKeys int
	Groups     []Group

	// Columns that differ between the records of the largest group.
	Sample      string
	Differences []Difference

	// Records without a key that match on start, end, item_type, user and tool.
	NullCandidates int
}

type Group struct {
	Key   string
	Count int
}

type Difference struct {
	Column   string
	Distinct int
	Values   []string
}

// Extra is the number of records over and above one per key.
func (r DuplicatesReport) Extra() int {
	n := 0
	for _, g := range r.Groups {
		n += g.Count - 1
	}

	return n
}

// Duplicates finds the keys that appear more than once. The groups are ordered
// by count, largest first.
func Duplicates(table *records.Table, key string) DuplicatesReport {
	report := DuplicatesReport{
		Key:     key,
		Records: table.Len(),
	}

	counts := map[string]int{}
	order := []string{}
	nulls := records.NewTable(table.Header...)

	for _, r := range table.Records {
		k := strings.TrimSpace(table.Value(r, key))
		if k == "" {
			nulls.Records = append(nulls.Records, r)
			continue
		}

		if counts[k] == 0 {
			order = append(order, k)
		}

		counts[k]++
	}

	report.NullKeys = nulls.Len()
	report.UniqueKeys = len(order)

	for _, k := range order {
		if counts[k] > 1 {
			report.Groups = append(report.Groups, Group{Key: k, Count: counts[k]})
		}
	}

	sort.SliceStable(report.Groups, func(i, j int) bool {
		return report.Groups[i].Count > report.Groups[j].Count
	})

	if len(report.Groups) > 0 {
		report.Sample = report.Groups[0].Key
		report.Differences = differences(table, key, report.Sample)
	}

	report.NullCandidates = candidates(nulls)

	return report
}

func differences(table *records.Table, key, sample string) []Difference {
	list := []Difference{}

	for i, h := range table.Header {
		seen := map[string]bool{}
		values := []string{}

		for _, r := range table.Records {
			if strings.TrimSpace(table.Value(r, key)) != sample || i >= len(r) {
				continue
			}

			if !seen[r[i]] {
				seen[r[i]] = true
				values = append(values, r[i])
			}
		}

		if len(values) > 1 {
			d := Difference{Column: h, Distinct: len(values)}
			if len(values) <= maxValues {
				d.Values = values
			}

			list = append(list, d)
		}
	}

	return list
}

func candidates(nulls *records.Table) int {
	if nulls.Len() < 2 {
		return 0
	}

	columns := []string{}
	for _, c := range candidateColumns {
		if nulls.HasColumn(c) {
			columns = append(columns, c)
		}
	}

	if len(columns) == 0 {
		return 0
	}

	subset := nulls.Align(columns)
	counts := map[string]int{}
	for _, r := range subset.Records {
		counts[records.Key(r)]++
	}

	n := 0
	for _, r := range subset.Records {
		if counts[records.Key(r)] > 1 {
			n++
		}
	}

	return n
}

type InvalidDatesReport struct {
	Field   string
	Records int

	// Row numbers (1-based, excluding the header) of the records with an
	// invalid timestamp.
	Rows    []int
	Invalid *records.Table

	// Count of invalid records by item type.
	ItemTypes map[string]int

	// Records with an invalid 'end' as well.
	InvalidEnd int
}

// InvalidDates returns the records for which the timestamp field does not
// parse.
func InvalidDates(table *records.Table, field string) InvalidDatesReport {
	report := InvalidDatesReport{
		Field:     field,
		Records:   table.Len(),
		Invalid:   records.NewTable(table.Header...),
		ItemTypes: map[string]int{},
	}

	for i, r := range table.Records {
		if records.Normalise(table.Value(r, field)).Valid() {
			continue
		}

		report.Rows = append(report.Rows, i+1)
		report.Invalid.Records = append(report.Invalid.Records, r)
		report.ItemTypes[table.Value(r, "item_type")]++

		if table.HasColumn("end") && !records.Normalise(table.Value(r, "end")).Valid() {
			report.InvalidEnd++
		}
	}

	return report
}

type CompareReport struct {
	Year int

	YearRecords int
	AllRecords  int // all-years master records in the year

	YearInvalid int
	AllInvalid  int // across the whole all-years master

	InBoth     int
	OnlyInYear []string
	OnlyInAll  []string

	// Number of keys in both tables for which the column differs.
	Differences map[string]int

	// Records per month, indexed 0 (January) to 11.
	Monthly [12]MonthCount
}

type MonthCount struct {
	Year int
	All  int
}

// Matches is true if both tables hold the same keys and the same number of
// records for the year.
func (r CompareReport) Matches() bool {
	return r.YearRecords == r.AllRecords && len(r.OnlyInYear) == 0 && len(r.OnlyInAll) == 0
}

// Compare compares a year master with the records for the same year in the
// all-years master.
func Compare(yearMaster, allMaster *records.Table, year int, key, field string) CompareReport {
	report := CompareReport{
		Year:        year,
		YearRecords: yearMaster.Len(),
		Differences: map[string]int{},
	}

	inYear := records.NewTable(allMaster.Header...)
	for _, r := range allMaster.Records {
		t := records.Normalise(allMaster.Value(r, field))
		if !t.Valid() {
			report.AllInvalid++
		} else if t.Year() == year {
			inYear.Records = append(inYear.Records, r)
		}
	}

	report.AllRecords = inYear.Len()

	for _, r := range yearMaster.Records {
		if t := records.Normalise(yearMaster.Value(r, field)); !t.Valid() {
			report.YearInvalid++
		} else {
			report.Monthly[t.Time().Month()-time.January].Year++
		}
	}

	for _, r := range inYear.Records {
		t := records.Normalise(inYear.Value(r, field))
		report.Monthly[t.Time().Month()-time.January].All++
	}

	if !yearMaster.HasColumn(key) || !inYear.HasColumn(key) {
		return report
	}

	a := keyed(yearMaster, key)
	b := keyed(inYear, key)

	for k, ra := range a {
		rb, ok := b[k]
		if !ok {
			report.OnlyInYear = append(report.OnlyInYear, k)
			continue
		}

		report.InBoth++
		for _, c := range compareColumns {
			if yearMaster.HasColumn(c) && inYear.HasColumn(c) && yearMaster.Value(ra, c) != inYear.Value(rb, c) {
				report.Differences[c]++
			}
		}
	}

	for k := range b {
		if _, ok := a[k]; !ok {
			report.OnlyInAll = append(report.OnlyInAll, k)
		}
	}

	SortKeys(report.OnlyInYear)
	SortKeys(report.OnlyInAll)

	return report
}

// keyed indexes the records by key. The first record is used for a duplicated
// key.
func keyed(table *records.Table, key string) map[string]records.Record {
	m := map[string]records.Record{}
	for _, r := range table.Records {
		k := strings.TrimSpace(table.Value(r, key))
		if _, ok := m[k]; k != "" && !ok {
			m[k] = r
		}
	}

	return m
}

// SortKeys sorts keys numerically where both keys are integers and as text
// otherwise.
func SortKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		p, errp := strconv.ParseInt(keys[i], 10, 64)
		q, errq := strconv.ParseInt(keys[j], 10, 64)

		switch {
		case errp == nil && errq == nil:
			return p < q
		case errp == nil:
			return true
		case errq == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
}
