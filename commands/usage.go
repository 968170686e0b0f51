package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/nemo-facility/nemo-app-drive/period"
	"github.com/nemo-facility/nemo-app-drive/usage"
)

var UsageEventsCmd = UsageEvents{
	maxEvents: usage.DefaultMaxEvents,
}

// UsageEvents uploads one workbook of usage events per tool for a month.
type UsageEvents struct {
	month     string
	all       bool
	maxEvents int
}

func (cmd *UsageEvents) Name() string {
	return "usage-events"
}

func (cmd *UsageEvents) Description() string {
	return "Uploads the usage events for a month as one Excel workbook per tool"
}

func (cmd *UsageEvents) Usage() string {
	return "[--month <yyyy-mm>] [--all] [--max-events <N>]"
}

func (cmd *UsageEvents) Help() string {
	return strings.Join([]string{
		"Fetches the usage events, tools and users from NEMO and uploads a workbook for each",
		"tool to <year>/Usage_Events/<mm>/<Tool_Name>_<yyyy>_<mm>.xlsx in the Google Drive",
		"parent folder. Only the --max-events most recent events with run data are kept and",
		"the pre-run and run data is replaced with a readable 'user_input' column.",
		"",
		"The month defaults to the current month (or the previous month on the 1st).",
		"",
		"  Examples:",
		"    nemo-app-drive usage-events",
		"    nemo-app-drive usage-events --month 2025-03",
		"    nemo-app-drive usage-events --all --start-year 2024",
	}, "\n")
}

func (cmd *UsageEvents) Flags(flagset *pflag.FlagSet) {
	flagset.StringVar(&cmd.month, "month", cmd.month, "Month to export (YYYY-MM)")
	flagset.BoolVar(&cmd.all, "all", cmd.all, "Exports every month since --start-year")
	flagset.IntVar(&cmd.maxEvents, "max-events", cmd.maxEvents, "Maximum number of events per month")
}

func (cmd *UsageEvents) Execute(ctx context.Context, options *Options) error {
	if cmd.all && cmd.month != "" {
		return fmt.Errorf("--month and --all are mutually exclusive")
	}

	months, err := cmd.months(options)
	if err != nil {
		return err
	}

	source, err := options.source()
	if err != nil {
		return err
	}

	if !options.DryRun && options.conf.Google.ParentID == "" {
		return fmt.Errorf("missing Google Drive parent folder - set GDRIVE_PARENT_ID or use --parent-id")
	}

	d, err := options.gdrive(ctx)
	if err != nil {
		return err
	}

	defer options.listDryRun()

	x := usage.NewExporter(source, d, options.root(), options.log)
	if cmd.maxEvents > 0 {
		x.MaxEvents = cmd.maxEvents
	}

	uploaded, err := x.Export(ctx, months...)
	for _, f := range uploaded {
		infof(options.log, "uploaded %v", f)
	}

	infof(options.log, "uploaded %v usage event workbooks", len(uploaded))

	return err
}

func (cmd *UsageEvents) months(options *Options) ([]period.Month, error) {
	now := options.now()

	switch {
	case cmd.all:
		return period.Months(options.conf.Master.StartYear, now), nil

	case cmd.month != "":
		m, err := parseMonth(cmd.month)
		if err != nil {
			return nil, err
		}

		return []period.Month{m}, nil

	default:
		return []period.Month{usage.Month(now)}, nil
	}
}

// parseMonth parses a YYYY-MM month.
func parseMonth(s string) (period.Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return period.Month{}, fmt.Errorf("invalid month '%v' - expected YYYY-MM", s)
	}

	return period.Month{Year: t.Year(), Month: t.Month()}, nil
}
