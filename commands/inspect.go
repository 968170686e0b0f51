package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/nemo-facility/nemo-app-drive/inspect"
	"github.com/nemo-facility/nemo-app-drive/records"
)

var CheckDuplicatesCmd = CheckDuplicates{
	master: "all",
	key:    inspect.DefaultKey,
}

// CheckDuplicates reports the records in a master table that share a natural
// key.
type CheckDuplicates struct {
	master string
	key    string
}

func (cmd *CheckDuplicates) Name() string {
	return "check-duplicates"
}

func (cmd *CheckDuplicates) Description() string {
	return "Reports the records in a master CSV file that share the same key"
}

func (cmd *CheckDuplicates) Usage() string {
	return "[--master <year|all|location>] [--key <column>]"
}

func (cmd *CheckDuplicates) Help() string {
	return strings.Join([]string{
		"Counts the records in a master CSV file with the same key (item_id by default), lists",
		"the most duplicated keys and the columns that differ within the largest group. Records",
		"without a key are matched on start, end, item_type, user and tool instead.",
		"",
		"  Examples:",
		"    nemo-app-drive check-duplicates",
		"    nemo-app-drive check-duplicates --master 2025 --key id",
	}, "\n")
}

func (cmd *CheckDuplicates) Flags(flagset *pflag.FlagSet) {
	flagset.StringVar(&cmd.master, "master", cmd.master, "Master table ('all', a year or a location)")
	flagset.StringVar(&cmd.key, "key", cmd.key, "Key column")
}

func (cmd *CheckDuplicates) Execute(ctx context.Context, options *Options) error {
	table, name, err := readMaster(ctx, options, cmd.master)
	if err != nil {
		return err
	}

	if !table.HasColumn(cmd.key) {
		return fmt.Errorf("%v has no '%v' column", name, cmd.key)
	}

	printDuplicates(options.out, name, inspect.Duplicates(table, cmd.key))

	return nil
}

var InvalidDatesCmd = InvalidDates{
	master: "all",
	field:  inspect.DefaultField,
}

// InvalidDates reports the records in a master table with an unparseable
// timestamp.
type InvalidDates struct {
	master string
	field  string
}

func (cmd *InvalidDates) Name() string {
	return "invalid-dates"
}

func (cmd *InvalidDates) Description() string {
	return "Reports the records in a master CSV file with an invalid timestamp"
}

func (cmd *InvalidDates) Usage() string {
	return "[--master <year|all|location>] [--field <column>]"
}

func (cmd *InvalidDates) Help() string {
	return strings.Join([]string{
		"Lists the records in a master CSV file for which the timestamp (start by default)",
		"cannot be parsed. These records are never replaced by a master update.",
		"",
		"  Examples:",
		"    nemo-app-drive invalid-dates --master 2024",
	}, "\n")
}

func (cmd *InvalidDates) Flags(flagset *pflag.FlagSet) {
	flagset.StringVar(&cmd.master, "master", cmd.master, "Master table ('all', a year or a location)")
	flagset.StringVar(&cmd.field, "field", cmd.field, "Timestamp column")
}

func (cmd *InvalidDates) Execute(ctx context.Context, options *Options) error {
	table, name, err := readMaster(ctx, options, cmd.master)
	if err != nil {
		return err
	}

	if !table.HasColumn(cmd.field) {
		return fmt.Errorf("%v has no '%v' column", name, cmd.field)
	}

	printInvalidDates(options.out, name, inspect.InvalidDates(table, cmd.field))

	return nil
}

var CompareCmd = Compare{
	key:   inspect.DefaultKey,
	field: inspect.DefaultField,
}

// Compare compares a year master with the all-years master.
type Compare struct {
	year  int
	key   string
	field string
}

func (cmd *Compare) Name() string {
	return "compare"
}

func (cmd *Compare) Description() string {
	return "Compares a year master CSV file with the all-years master"
}

func (cmd *Compare) Usage() string {
	return "[--year <year>] [--key <column>]"
}

func (cmd *Compare) Help() string {
	return strings.Join([]string{
		"Compares the master CSV file for a year with the records for the same year in the",
		"all-years master: record counts, keys missing from either file, columns that differ",
		"and the number of records per month. The year defaults to the current year.",
		"",
		"  Examples:",
		"    nemo-app-drive compare --year 2025",
	}, "\n")
}

func (cmd *Compare) Flags(flagset *pflag.FlagSet) {
	flagset.IntVar(&cmd.year, "year", cmd.year, "Year to compare")
	flagset.StringVar(&cmd.key, "key", cmd.key, "Key column")
	flagset.StringVar(&cmd.field, "field", cmd.field, "Timestamp column")
}

func (cmd *Compare) Execute(ctx context.Context, options *Options) error {
	year := cmd.year
	if year == 0 {
		year = options.now().Year()
	}

	yearMaster, name, err := readMaster(ctx, options, strconv.Itoa(year))
	if err != nil {
		return err
	}

	allMaster, _, err := readMaster(ctx, options, "all")
	if err != nil {
		return err
	}

	report := inspect.Compare(yearMaster, allMaster, year, cmd.key, cmd.field)

	printCompare(options.out, name, report)

	if !report.Matches() {
		warnf(options.log, "%v master does not match the all-years master", year)
	}

	return nil
}

func readMaster(ctx context.Context, options *Options, which string) (*records.Table, string, error) {
	s, err := options.master(ctx, which)
	if err != nil {
		return nil, "", err
	}

	infof(options.log, "loading %v", s)

	table, err := s.Read(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("unable to read %v (%w)", s, err)
	}

	return table, s.String(), nil
}

func printDuplicates(w io.Writer, name string, report inspect.DuplicatesReport) {
	fmt.Fprintf(w, "\n  %v\n\n", name)
	fmt.Fprintf(w, "  records:          %v\n", report.Records)
	fmt.Fprintf(w, "  records w/o key:  %v\n", report.NullKeys)
	fmt.Fprintf(w, "  unique keys:      %v\n", report.UniqueKeys)
	fmt.Fprintf(w, "  duplicated keys:  %v\n", len(report.Groups))
	fmt.Fprintf(w, "  extra records:    %v\n", report.Extra())

	if len(report.Groups) > 0 {
		fmt.Fprintf(w, "\n  %-24v  %v\n", report.Key, "count")
		for i, g := range report.Groups {
			if i >= 10 {
				fmt.Fprintf(w, "  ... and %v more\n", len(report.Groups)-i)
				break
			}

			fmt.Fprintf(w, "  %-24v  %v\n", g.Key, g.Count)
		}
	}

	if report.Sample != "" {
		fmt.Fprintf(w, "\n  differences for %v %v\n", report.Key, report.Sample)
		for _, d := range report.Differences {
			fmt.Fprintf(w, "    %-16v  %v distinct  %v\n", d.Column, d.Distinct, strings.Join(d.Values, ", "))
		}
	}

	if report.NullKeys > 0 {
		fmt.Fprintf(w, "\n  possible duplicates w/o key: %v\n", report.NullCandidates)
	}

	fmt.Fprintln(w)
}

func printInvalidDates(w io.Writer, name string, report inspect.InvalidDatesReport) {
	fmt.Fprintf(w, "\n  %v\n\n", name)
	fmt.Fprintf(w, "  records:          %v\n", report.Records)
	fmt.Fprintf(w, "  invalid '%v':  %v\n", report.Field, len(report.Rows))

	if len(report.Rows) == 0 {
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "  invalid 'end':    %v\n", report.InvalidEnd)

	types := []string{}
	for k := range report.ItemTypes {
		types = append(types, k)
	}

	sort.Strings(types)

	fmt.Fprintf(w, "\n  %-24v  %v\n", "item_type", "count")
	for _, k := range types {
		t := k
		if t == "" {
			t = "(none)"
		}

		fmt.Fprintf(w, "  %-24v  %v\n", t, report.ItemTypes[k])
	}

	fmt.Fprintf(w, "\n  %-6v  %v\n", "row", report.Field)
	for i, r := range report.Invalid.Records {
		fmt.Fprintf(w, "  %-6v  %q\n", report.Rows[i], report.Invalid.Value(r, report.Field))
	}

	fmt.Fprintln(w)
}

func printCompare(w io.Writer, name string, report inspect.CompareReport) {
	fmt.Fprintf(w, "\n  %v\n\n", name)
	fmt.Fprintf(w, "  %v records:              %v\n", report.Year, report.YearRecords)
	fmt.Fprintf(w, "  all-years records in %v: %v\n", report.Year, report.AllRecords)
	fmt.Fprintf(w, "  invalid dates (year):      %v\n", report.YearInvalid)
	fmt.Fprintf(w, "  invalid dates (all-years): %v\n", report.AllInvalid)
	fmt.Fprintf(w, "  keys in both:              %v\n", report.InBoth)
	fmt.Fprintf(w, "  keys only in year:         %v\n", len(report.OnlyInYear))
	fmt.Fprintf(w, "  keys only in all-years:    %v\n", len(report.OnlyInAll))

	columns := []string{}
	for k := range report.Differences {
		columns = append(columns, k)
	}

	sort.Strings(columns)

	if len(columns) > 0 {
		fmt.Fprintf(w, "\n  %-16v  %v\n", "column", "differences")
		for _, c := range columns {
			fmt.Fprintf(w, "  %-16v  %v\n", c, report.Differences[c])
		}
	}

	fmt.Fprintf(w, "\n  %-6v  %8v  %8v\n", "month", "year", "all")
	for i, m := range report.Monthly {
		fmt.Fprintf(w, "  %-6v  %8v  %8v\n", fmt.Sprintf("%02d", i+1), m.Year, m.All)
	}

	if report.Matches() {
		fmt.Fprintf(w, "\n  OK\n\n")
	} else {
		fmt.Fprintf(w, "\n  MISMATCH\n\n")
	}
}
