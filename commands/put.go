package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/pflag"
	"google.golang.org/api/sheets/v4"

	"github.com/nemo-facility/nemo-app-drive/records"
)

var PutCmd = Put{}

// Put publishes a master table or a local file to a Google Sheets worksheet.
type Put struct {
	from string
	file string
	url  string
	area string
}

func (cmd *Put) Name() string {
	return "put"
}

func (cmd *Put) Description() string {
	return "Uploads a master table or a local CSV/TSV/Excel file to a Google Sheets worksheet"
}

func (cmd *Put) Usage() string {
	return "--master <year|all|location> | --file <file>  --sheet <url> --range <range>"
}

func (cmd *Put) Help() string {
	return strings.Join([]string{
		"Replaces the contents of a Google Sheets worksheet range with a master table or a",
		"local file. The range is cleared first and the values are entered as if typed in,",
		"so that numbers and dates are formatted by Google Sheets.",
		"",
		"  Examples:",
		`    nemo-app-drive put --master all \`,
		`                       --sheet "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms" \`,
		`                       --range "Master!A1:AZ"`,
	}, "\n")
}

func (cmd *Put) Flags(flagset *pflag.FlagSet) {
	flagset.StringVar(&cmd.from, "master", cmd.from, "Master table to upload ('all', a year or a location)")
	flagset.StringVar(&cmd.file, "file", cmd.file, "Local CSV, TSV or Excel file to upload")
	flagset.StringVar(&cmd.url, "sheet", cmd.url, "Spreadsheet URL")
	flagset.StringVar(&cmd.area, "range", cmd.area, "Spreadsheet range e.g. 'Master!A1:AZ'")
}

func (cmd *Put) Execute(ctx context.Context, options *Options) error {
	if strings.TrimSpace(cmd.url) == "" {
		return fmt.Errorf("--sheet is a required option")
	}

	if strings.TrimSpace(cmd.area) == "" {
		return fmt.Errorf("--range is a required option")
	}

	spreadsheet, err := spreadsheetID(cmd.url)
	if err != nil {
		return err
	}

	var table *records.Table
	var source string

	switch {
	case cmd.from != "" && cmd.file != "":
		return fmt.Errorf("--master and --file are mutually exclusive")

	case cmd.from != "":
		s, err := options.master(ctx, cmd.from)
		if err != nil {
			return err
		}

		if table, err = s.Read(ctx); err != nil {
			return fmt.Errorf("unable to read %v (%w)", s, err)
		}

		source = s.String()

	case cmd.file != "":
		if table, err = load(cmd.file); err != nil {
			return err
		}

		source = cmd.file

	default:
		return fmt.Errorf("one of --master or --file is required")
	}

	header, data, err := tableToSheet(table, cmd.area)
	if err != nil {
		return err
	}

	debugf(options.log, "spreadsheet - ID:%s  range:%s", spreadsheet, cmd.area)

	if options.DryRun {
		infof(options.log, "dry run - not uploading %v records from %v to %v", table.Len(), source, cmd.area)
		return nil
	}

	google, err := options.sheets(ctx)
	if err != nil {
		return err
	}

	if err := clear(ctx, google, spreadsheet, []string{clearRange(cmd.area)}); err != nil {
		return fmt.Errorf("unable to clear %v (%v)", cmd.area, err)
	}

	rq := sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             []*sheets.ValueRange{header, data},
	}

	if _, err := google.Spreadsheets.Values.BatchUpdate(spreadsheet, &rq).Context(ctx).Do(); err != nil {
		return err
	}

	infof(options.log, "uploaded %v records from %v to Google Sheets %v", table.Len(), source, cmd.area)

	return nil
}

// clearRange opens the bottom of a range so that rows left over from a longer
// table are cleared too, e.g. 'Master!A1:AZ100' becomes 'Master!A1:AZ'.
func clearRange(area string) string {
	if match := regexp.MustCompile(`^(.+?![a-zA-Z]+[0-9]+:[a-zA-Z]+)[0-9]*$`).FindStringSubmatch(area); len(match) > 1 {
		return match[1]
	}

	return area
}
