package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/nemo-facility/nemo-app-drive/drive"
	"github.com/nemo-facility/nemo-app-drive/period"
	"github.com/nemo-facility/nemo-app-drive/workbook"
)

var SanityCheckCmd = SanityCheck{
	dir: ".",
}

// SanityCheck writes a month of billing data as an Excel workbook with one
// sheet per item type, for checking the billing before it is invoiced.
type SanityCheck struct {
	month  string
	dir    string
	upload bool
}

func (cmd *SanityCheck) Name() string {
	return "sanity-check"
}

func (cmd *SanityCheck) Description() string {
	return "Creates an Excel workbook for checking a month of billing data"
}

func (cmd *SanityCheck) Usage() string {
	return "[--month <yyyy-mm>] [--dir <dir>] [--upload]"
}

func (cmd *SanityCheck) Help() string {
	return strings.Join([]string{
		"Fetches the billing data for a month and writes <Month>_<year>_sanity_check.xlsx with",
		"a '<item_type>_data' sheet for each item type. Each sheet is sorted by amount (largest",
		"first) and includes the amount in hours. With --upload the workbook is also uploaded to",
		"<year>/Sanity_Check in the Google Drive parent folder.",
		"",
		"The month defaults to the current month (or the previous month on the 1st).",
		"",
		"  Examples:",
		"    nemo-app-drive sanity-check",
		"    nemo-app-drive sanity-check --month 2025-03 --dir /var/nemo/checks",
	}, "\n")
}

func (cmd *SanityCheck) Flags(flagset *pflag.FlagSet) {
	flagset.StringVar(&cmd.month, "month", cmd.month, "Month to check (YYYY-MM)")
	flagset.StringVar(&cmd.dir, "dir", cmd.dir, "Directory for the workbook")
	flagset.BoolVar(&cmd.upload, "upload", cmd.upload, "Also uploads the workbook to Google Drive")
}

func (cmd *SanityCheck) Execute(ctx context.Context, options *Options) error {
	r := period.CurrentMonth(options.now())
	if cmd.month != "" {
		m, err := parseMonth(cmd.month)
		if err != nil {
			return err
		}

		r = m.Range()
	}

	source, err := options.source()
	if err != nil {
		return err
	}

	infof(options.log, "fetching billing data from %v", r)

	billing, err := source.Billing(ctx, r.Start, r.End)
	if err != nil {
		return fmt.Errorf("error fetching billing data for %v (%w)", r, err)
	}

	if billing.Len() == 0 {
		warnf(options.log, "no billing data for %v", r.Start.Format("January 2006"))
		return nil
	}

	var b bytes.Buffer
	if err := workbook.SanityCheck(&b, billing); err != nil {
		return err
	}

	name := workbook.SanityCheckName(r.Start.Year(), r.Start.Format("January"))
	file := filepath.Join(cmd.dir, name)

	if err := os.MkdirAll(cmd.dir, 0770); err != nil {
		return err
	}

	if err := os.WriteFile(file, b.Bytes(), 0660); err != nil {
		return err
	}

	infof(options.log, "wrote %v billing records to %v", billing.Len(), file)

	if cmd.upload {
		return cmd.uploadWorkbook(ctx, options, r.Start.Year(), name, b.Bytes())
	}

	return nil
}

func (cmd *SanityCheck) uploadWorkbook(ctx context.Context, options *Options, year int, name string, content []byte) error {
	if !options.DryRun && options.conf.Google.ParentID == "" {
		return fmt.Errorf("missing Google Drive parent folder - set GDRIVE_PARENT_ID or use --parent-id")
	}

	d, err := options.gdrive(ctx)
	if err != nil {
		return err
	}

	defer options.listDryRun()

	folder, err := drive.Path(ctx, d, options.root(), strconv.Itoa(year), "Sanity_Check")
	if err != nil {
		return err
	}

	if _, err := d.Upload(ctx, folder, name, drive.XLSXMimeType, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("error uploading %v (%w)", name, err)
	}

	infof(options.log, "uploaded %v", name)

	return nil
}
