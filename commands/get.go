package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/nemo-facility/nemo-app-drive/records"
	"github.com/nemo-facility/nemo-app-drive/workbook"
)

var GetCmd = Get{
	file: time.Now().Format("2006-01-02T150405.csv"),
}

// Get downloads a master table or a Google Sheets worksheet to a local file.
type Get struct {
	from string
	url  string
	area string
	file string
}

func (cmd *Get) Name() string {
	return "get"
}

func (cmd *Get) Description() string {
	return "Retrieves a master table or a Google Sheets worksheet and stores it to a local file"
}

func (cmd *Get) Usage() string {
	return "--master <year|all|location> | --sheet <url> --range <range> [--file <file>]"
}

func (cmd *Get) Help() string {
	return strings.Join([]string{
		"Downloads a master table (by year, 'all' or location) or a Google Sheets worksheet",
		"range to a local CSV, TSV or Excel file. The format follows the file extension.",
		"",
		"  Examples:",
		`    nemo-app-drive get --master 2025 --file "billing_2025.xlsx"`,
		`    nemo-app-drive get --master s3://billing/all/billing_data_master_master.csv`,
		`    nemo-app-drive get --sheet "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms" \`,
		`                       --range "Billing!A1:Z" --file "billing.tsv"`,
	}, "\n")
}

func (cmd *Get) Flags(flagset *pflag.FlagSet) {
	flagset.StringVar(&cmd.from, "master", cmd.from, "Master table to retrieve ('all', a year or a location)")
	flagset.StringVar(&cmd.url, "sheet", cmd.url, "Spreadsheet URL")
	flagset.StringVar(&cmd.area, "range", cmd.area, "Spreadsheet range e.g. 'Billing!A1:Z'")
	flagset.StringVar(&cmd.file, "file", cmd.file, "Output file (.csv, .tsv or .xlsx). Defaults to '<yyyy-mm-ddTHHmmss>.csv'")
}

func (cmd *Get) Execute(ctx context.Context, options *Options) error {
	if strings.TrimSpace(cmd.file) == "" {
		return fmt.Errorf("--file is a required option")
	}

	var table *records.Table
	var err error

	switch {
	case cmd.from != "" && cmd.url != "":
		return fmt.Errorf("--master and --sheet are mutually exclusive")

	case cmd.from != "":
		table, err = cmd.fromMaster(ctx, options)

	case cmd.url != "":
		table, err = cmd.fromSheet(ctx, options)

	default:
		return fmt.Errorf("one of --master or --sheet is required")
	}

	if err != nil {
		return err
	}

	if err := save(cmd.file, table); err != nil {
		return err
	}

	infof(options.log, "retrieved %v records to file %s", table.Len(), cmd.file)

	return nil
}

func (cmd *Get) fromMaster(ctx context.Context, options *Options) (*records.Table, error) {
	s, err := options.master(ctx, cmd.from)
	if err != nil {
		return nil, err
	}

	debugf(options.log, "master %v", s)

	table, err := s.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to read %v (%w)", s, err)
	}

	return table, nil
}

func (cmd *Get) fromSheet(ctx context.Context, options *Options) (*records.Table, error) {
	if strings.TrimSpace(cmd.area) == "" {
		return nil, fmt.Errorf("--range is a required option")
	}

	spreadsheet, err := spreadsheetID(cmd.url)
	if err != nil {
		return nil, err
	}

	debugf(options.log, "spreadsheet - ID:%s  range:%s", spreadsheet, cmd.area)

	google, err := options.sheets(ctx)
	if err != nil {
		return nil, err
	}

	response, err := google.Spreadsheets.Values.Get(spreadsheet, cmd.area).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve data from sheet (%v)", err)
	}

	if len(response.Values) == 0 {
		return nil, fmt.Errorf("no data in spreadsheet/range")
	}

	return sheetToTable(response.Values)
}

// save writes the table to a temporary file and then renames it, so that an
// existing file is only replaced by a complete one.
func save(file string, table *records.Table) error {
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0770); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+APP+"-*")
	if err != nil {
		return err
	}

	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	switch strings.ToLower(filepath.Ext(file)) {
	case ".xlsx":
		err = workbook.Write(tmp, workbook.SheetName(strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))), table)
	case ".tsv":
		err = records.WriteTSV(tmp, table)
	default:
		err = records.WriteCSV(tmp, table)
	}

	if err != nil {
		return fmt.Errorf("error creating %v (%v)", file, err)
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), file)
}

// load reads a local CSV, TSV or Excel file.
func load(file string) (*records.Table, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	switch strings.ToLower(filepath.Ext(file)) {
	case ".xlsx":
		return workbook.Read(f, "")
	case ".tsv":
		return records.ReadTSV(f)
	default:
		return records.ReadCSV(f)
	}
}
