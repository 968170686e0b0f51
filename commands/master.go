package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/nemo-facility/nemo-app-drive/pipeline"
)

var UpdateMasterCmd = UpdateMaster{}

// UpdateMaster replaces the lookback window of the year and all-years master
// tables with fresh billing data.
type UpdateMaster struct {
	year   int
	noAll  bool
	noYear bool
}

func (cmd *UpdateMaster) Name() string {
	return "update-master"
}

func (cmd *UpdateMaster) Description() string {
	return "Merges the latest billing data into the master CSV files"
}

func (cmd *UpdateMaster) Usage() string {
	return "[--year <year>] [--no-all] [--no-years]"
}

func (cmd *UpdateMaster) Help() string {
	return strings.Join([]string{
		"Fetches the billing data for the lookback window and merges it into the master CSV",
		"for each year from --start-year to the current year and into the all-years master.",
		"Records in the window are replaced, records outside the window (and records with an",
		"unparseable start time) are kept.",
		"",
		"  Examples:",
		"    nemo-app-drive update-master",
		"    nemo-app-drive update-master --year 2025 --no-all",
		"    nemo-app-drive --location file:///var/nemo update-master --lookback-days 60",
	}, "\n")
}

func (cmd *UpdateMaster) Flags(flagset *pflag.FlagSet) {
	flagset.IntVar(&cmd.year, "year", cmd.year, "Updates only the master for this year")
	flagset.BoolVar(&cmd.noAll, "no-all", cmd.noAll, "Skips the all-years master")
	flagset.BoolVar(&cmd.noYear, "no-years", cmd.noYear, "Skips the year masters")
}

func (cmd *UpdateMaster) Execute(ctx context.Context, options *Options) error {
	p, closer, err := options.pipeline(ctx)
	if err != nil {
		return err
	}

	defer closer()
	defer options.listDryRun()

	return updateMasters(ctx, p, options, cmd.year, !cmd.noYear, !cmd.noAll)
}

func updateMasters(ctx context.Context, p *pipeline.Pipeline, options *Options, year int, years, all bool) error {
	var errs []error

	if years {
		if year != 0 {
			report, err := p.UpdateYear(ctx, year)
			if err != nil {
				errs = append(errs, err)
			} else {
				logReport(options, *report)
			}
		} else {
			reports, err := p.UpdateYears(ctx)
			for _, report := range reports {
				logReport(options, report)
			}

			if err != nil {
				errs = append(errs, err)
			}
		}
	}

	if all {
		report, err := p.UpdateAll(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("all-years master: %w", err))
		} else {
			logReport(options, *report)
		}
	}

	return errors.Join(errs...)
}

var CreateMasterCmd = CreateMaster{}

// CreateMaster rebuilds master tables from scratch, month by month.
type CreateMaster struct {
	year  int
	noAll bool
}

func (cmd *CreateMaster) Name() string {
	return "create-master"
}

func (cmd *CreateMaster) Description() string {
	return "Rebuilds the master CSV files from the complete billing history"
}

func (cmd *CreateMaster) Usage() string {
	return "[--year <year>] [--no-all]"
}

func (cmd *CreateMaster) Help() string {
	return strings.Join([]string{
		"Fetches every month of billing data and overwrites the master CSV for each year",
		"from --start-year to the current year and the all-years master. The existing",
		"masters are only replaced once every month has been fetched.",
		"",
		"  Examples:",
		"    nemo-app-drive create-master",
		"    nemo-app-drive create-master --year 2024 --no-all",
	}, "\n")
}

func (cmd *CreateMaster) Flags(flagset *pflag.FlagSet) {
	flagset.IntVar(&cmd.year, "year", cmd.year, "Rebuilds only the master for this year")
	flagset.BoolVar(&cmd.noAll, "no-all", cmd.noAll, "Skips the all-years master")
}

func (cmd *CreateMaster) Execute(ctx context.Context, options *Options) error {
	p, closer, err := options.pipeline(ctx)
	if err != nil {
		return err
	}

	defer closer()
	defer options.listDryRun()

	years := []int{}
	if cmd.year != 0 {
		years = append(years, cmd.year)
	} else {
		for y := p.StartYear; y <= p.Now().Year(); y++ {
			years = append(years, y)
		}
	}

	var errs []error
	for _, year := range years {
		report, err := p.RebuildYear(ctx, year)
		if err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", year, err))
			continue
		}

		logReport(options, *report)
	}

	if !cmd.noAll {
		report, err := p.RebuildAll(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("all-years master: %w", err))
		} else {
			logReport(options, *report)
		}
	}

	return errors.Join(errs...)
}

func logReport(options *Options, report pipeline.Report) {
	if report.Skipped {
		infof(options.log, "%v  skipped", report.Master)
		return
	}

	s := report.Summary
	options.log.WithField("master", report.Master).
		Infof("existing:%v  invalid:%v  removed:%v  retained:%v  added:%v  duplicates:%v  key-duplicates:%v  total:%v",
			s.Existing, s.Invalid, s.Removed, s.Retained, s.Added, s.Duplicates, s.KeyDuplicates, s.Total)

	if report.Fallback {
		warnf(options.log, "%v could not be read and was rebuilt from the fetched records only", report.Master)
	}
}
