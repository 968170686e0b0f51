package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/nemo-facility/nemo-app-drive/usage"
)

var ReservationsCmd = Reservations{}

// Reservations exports the NEMO tool reservations to a local file.
type Reservations struct {
	month string
	file  string
}

func (cmd *Reservations) Name() string {
	return "reservations"
}

func (cmd *Reservations) Description() string {
	return "Retrieves the tool reservations and stores them to a local file"
}

func (cmd *Reservations) Usage() string {
	return "[--month <yyyy-mm>] --file <file>"
}

func (cmd *Reservations) Help() string {
	return strings.Join([]string{
		"Fetches the tool reservations from NEMO and writes them to a local CSV, TSV or Excel",
		"file. With --month only the reservations starting in that month are kept.",
		"",
		"  Examples:",
		`    nemo-app-drive reservations --month 2025-05 --file "reservations_2025_05.xlsx"`,
	}, "\n")
}

func (cmd *Reservations) Flags(flagset *pflag.FlagSet) {
	flagset.StringVar(&cmd.month, "month", cmd.month, "Month to export (YYYY-MM)")
	flagset.StringVar(&cmd.file, "file", cmd.file, "Output file (.csv, .tsv or .xlsx)")
}

func (cmd *Reservations) Execute(ctx context.Context, options *Options) error {
	if strings.TrimSpace(cmd.file) == "" {
		return fmt.Errorf("--file is a required option")
	}

	source, err := options.source()
	if err != nil {
		return err
	}

	table, err := source.Reservations(ctx)
	if err != nil {
		return fmt.Errorf("error fetching reservations (%w)", err)
	}

	if cmd.month != "" {
		m, err := parseMonth(cmd.month)
		if err != nil {
			return err
		}

		table = usage.FilterMonth(table, m.Year, m.Month, options.log)
	}

	if table.Len() == 0 {
		warnf(options.log, "no reservations")
		return nil
	}

	if err := save(cmd.file, table); err != nil {
		return err
	}

	infof(options.log, "retrieved %v reservations to file %s", table.Len(), cmd.file)

	return nil
}
