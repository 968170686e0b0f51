// Package usage turns the NEMO usage events into one workbook per tool and
// month.
package usage

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	log "github.com/sirupsen/logrus"

	"github.com/nemo-facility/nemo-app-drive/records"
)

const (
	DefaultMaxEvents = 2000

	UnknownTool  = "Unknown Tool"
	UnknownUser  = "Unknown User"
	UnknownEmail = "Unknown Email"
)

var (
	// Columns removed before the tool and user names are added.
	Unwanted = []string{"validated", "remote_work", "training", "validated_by", "waived_by"}

	// Columns removed once the tool and user names have been added.
	Identifiers = []string{"id", "user", "tool", "has_ended", "waived", "waived_on", "operator", "project"}

	dataFields = []string{"pre_run_data", "run_data"}
)

// Stages applies the processing stages in order to the usage events for a
// month. Every stage returns a new table.
func Stages(events *records.Table, year int, month time.Month, maxEvents int, lookups *Lookups, logger log.FieldLogger) *records.Table {
	if logger == nil {
		logger = log.StandardLogger()
	}

	table := FilterMonth(events, year, month, logger)
	logger.Debugf("%v events for %04d-%02d", table.Len(), year, month)

	table = LimitRecent(table, maxEvents)
	table = WithData(table)
	table = table.Drop(Unwanted...)
	table = lookups.AddTools(table)
	table = lookups.AddUsers(table)
	table = table.Drop(Identifiers...)
	table = ExtractUserInput(table)

	logger.Debugf("%v events with run data for %04d-%02d", table.Len(), year, month)

	return table
}

// FilterMonth keeps the events that started in the given month. The month is
// taken from the wall clock time of the 'start' timestamp. Events with a missing
// or invalid start are skipped with a warning.
func FilterMonth(events *records.Table, year int, month time.Month, logger log.FieldLogger) *records.Table {
	table := records.NewTable(events.Header...)
	skipped := 0

	for _, record := range events.Records {
		start, ok := records.Parse(events.Value(record, "start"))
		if !ok {
			skipped++
			continue
		}

		if start.Year() == year && start.Month() == month {
			table.Records = append(table.Records, record)
		}
	}

	if skipped > 0 && logger != nil {
		logger.Warnf("skipped %v usage events with an invalid start timestamp", skipped)
	}

	return table
}

// LimitRecent keeps the 'max' events with the highest ids. The result is ordered
// by id, highest first. A table that is already within the limit is returned
// unchanged.
func LimitRecent(events *records.Table, max int) *records.Table {
	if max <= 0 || events.Len() <= max {
		return events
	}

	ix := events.Column("id")
	id := func(r records.Record) int64 {
		if ix >= 0 && ix < len(r) {
			if v, err := strconv.ParseInt(r[ix], 10, 64); err == nil {
				return v
			}
		}

		return 0
	}

	sorted := events.Clone()
	sort.SliceStable(sorted.Records, func(i, j int) bool {
		return id(sorted.Records[i]) > id(sorted.Records[j])
	})

	sorted.Records = sorted.Records[:max]

	return sorted
}

// WithData keeps the events that have either pre-run or run data.
func WithData(events *records.Table) *records.Table {
	table := records.NewTable(events.Header...)

	for _, record := range events.Records {
		for _, f := range dataFields {
			if v := strings.TrimSpace(events.Value(record, f)); v != "" {
				table.Records = append(table.Records, record)
				break
			}
		}
	}

	return table
}

// ExtractUserInput replaces the pre-run and run data JSON with the user input
// it holds.
func ExtractUserInput(events *records.Table) *records.Table {
	table := events.Clone()

	for _, f := range dataFields {
		ix := table.Column(f)
		if ix < 0 {
			continue
		}

		for _, record := range table.Records {
			if record[ix] != "" {
				record[ix] = UserInput(record[ix])
			}
		}
	}

	return table
}

// ByTool splits the events by tool name, in order of first appearance.
func ByTool(events *records.Table) []Group {
	groups := []Group{}
	index := map[string]int{}

	for _, record := range events.Records {
		tool := events.Value(record, "tool_name")
		if tool == "" {
			tool = UnknownTool
		}

		ix, ok := index[tool]
		if !ok {
			ix = len(groups)
			index[tool] = ix
			groups = append(groups, Group{Tool: tool, Events: records.NewTable(events.Header...)})
		}

		groups[ix].Events.Records = append(groups[ix].Events.Records, record)
	}

	return groups
}

// Group is the usage events for a single tool.
type Group struct {
	Tool   string
	Events *records.Table
}

// FileName returns the workbook name for a tool and month, e.g.
// Wet_Bench_2_2025_03.xlsx. Anything other than letters, digits, spaces, '-'
// and '_' is removed from the tool name and spaces are replaced with '_'.
func FileName(tool string, year int, month time.Month) string {
	var b strings.Builder
	for _, c := range tool {
		if isAlnum(c) || c == ' ' || c == '-' || c == '_' {
			b.WriteRune(c)
		}
	}

	name := strings.ReplaceAll(strings.TrimRight(b.String(), " "), " ", "_")

	return name + "_" + strconv.Itoa(year) + "_" + twoDigit(int(month)) + ".xlsx"
}

func isAlnum(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c)
}

func twoDigit(v int) string {
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}

	return strconv.Itoa(v)
}
