package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/pflag"
)

var MonthlyCmd = Monthly{}

// Monthly uploads the billing data for the current month and then updates the
// master tables.
type Monthly struct {
	noUpdate bool
}

func (cmd *Monthly) Name() string {
	return "monthly"
}

func (cmd *Monthly) Description() string {
	return "Uploads the billing data for the current month and updates the master CSV files"
}

func (cmd *Monthly) Usage() string {
	return "[--no-update]"
}

func (cmd *Monthly) Help() string {
	return strings.Join([]string{
		"Fetches the billing data for the current month (or for the whole of the previous",
		"month on the 1st) and uploads it to <year>/Billing_Data/billing_data_<yyyy>_<mm>.csv.",
		"The year and all-years master CSV files are then updated unless --no-update is given.",
		"",
		"  Examples:",
		"    nemo-app-drive monthly",
		"    nemo-app-drive --dryrun monthly --no-update",
	}, "\n")
}

func (cmd *Monthly) Flags(flagset *pflag.FlagSet) {
	flagset.BoolVar(&cmd.noUpdate, "no-update", cmd.noUpdate, "Skips the master CSV updates")
}

func (cmd *Monthly) Execute(ctx context.Context, options *Options) error {
	p, closer, err := options.pipeline(ctx)
	if err != nil {
		return err
	}

	defer closer()
	defer options.listDryRun()

	location, err := p.Monthly(ctx)
	if err != nil {
		return err
	}

	if location != "" {
		infof(options.log, "uploaded %v", location)
	}

	if cmd.noUpdate {
		return nil
	}

	var errs []error

	reports, err := p.UpdateLatest(ctx)
	for _, report := range reports {
		logReport(options, report)
	}

	if err != nil {
		errs = append(errs, err)
	}

	if err := updateMasters(ctx, p, options, 0, false, true); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

var BackfillCmd = Backfill{}

// Backfill uploads the billing data for every month since January of the start
// year.
type Backfill struct {
}

func (cmd *Backfill) Name() string {
	return "backfill"
}

func (cmd *Backfill) Description() string {
	return "Uploads the monthly billing data CSV files for every month since --start-year"
}

func (cmd *Backfill) Usage() string {
	return ""
}

func (cmd *Backfill) Help() string {
	return strings.Join([]string{
		"Fetches the billing data for every month from January of --start-year to the",
		"current month and uploads each month to <year>/Billing_Data. Months with no",
		"billing data are skipped and a failed month does not stop the remaining months.",
		"",
		"  Examples:",
		"    nemo-app-drive backfill --start-year 2024",
	}, "\n")
}

func (cmd *Backfill) Flags(flagset *pflag.FlagSet) {
}

func (cmd *Backfill) Execute(ctx context.Context, options *Options) error {
	p, closer, err := options.pipeline(ctx)
	if err != nil {
		return err
	}

	defer closer()
	defer options.listDryRun()

	written, err := p.Backfill(ctx)
	for _, location := range written {
		infof(options.log, "uploaded %v", location)
	}

	infof(options.log, "uploaded %v monthly files", len(written))

	if err != nil {
		return errors.Join(errors.New("backfill incomplete"), err)
	}

	return nil
}
