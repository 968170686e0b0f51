package commands

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/nemo-facility/nemo-app-drive/records"
)

func spreadsheetID(url string) (string, error) {
	match := regexp.MustCompile(`^https://docs.google.com/spreadsheets/d/(.*?)(?:/.*)?$`).FindStringSubmatch(strings.TrimSpace(url))
	if len(match) < 2 {
		return "", fmt.Errorf("invalid spreadsheet URL - expected something like 'https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms'")
	}

	return match[1], nil
}

func (o *Options) sheets(ctx context.Context) (*sheets.Service, error) {
	client, err := o.authorise(ctx)
	if err != nil {
		return nil, err
	}

	google, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create new Sheets client (%v)", err)
	}

	return google, nil
}

// sheetToTable converts worksheet rows to a table. The first row is the header.
// Blank rows are skipped and short rows are padded.
func sheetToTable(rows [][]interface{}) (*records.Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty sheet")
	}

	header := []string{}
	index := map[string]int{}
	for i, v := range rows[0] {
		h := clean(fmt.Sprintf("%v", v))
		k := normalise(h)
		if k == "" {
			return nil, fmt.Errorf("missing column name in column %v", i+1)
		}

		if _, ok := index[k]; ok {
			return nil, fmt.Errorf("duplicate column name '%s'", h)
		}

		index[k] = i
		header = append(header, h)
	}

	if len(header) == 0 {
		return nil, fmt.Errorf("missing/invalid header row")
	}

	table := records.NewTable(header...)
	for _, row := range rows[1:] {
		record := make(records.Record, len(header))
		blank := true

		for i := range header {
			if i < len(row) && row[i] != nil {
				record[i] = clean(fmt.Sprintf("%v", row[i]))
			}

			if record[i] != "" {
				blank = false
			}
		}

		if !blank {
			table.Append(record)
		}
	}

	return table, nil
}

// tableToSheet returns the header and data value ranges for a table written to
// a spreadsheet range, e.g. 'Master!A1:Z'. The header goes in the first row of
// the range and the records below it.
func tableToSheet(table *records.Table, area string) (*sheets.ValueRange, *sheets.ValueRange, error) {
	match := regexp.MustCompile(`(.+?)!([a-zA-Z]+)([0-9]+):([a-zA-Z]+)([0-9]+)?`).FindStringSubmatch(area)
	if len(match) < 5 {
		return nil, nil, fmt.Errorf("invalid spreadsheet range '%s'", area)
	}

	name := match[1]
	left := match[2]
	top, _ := strconv.Atoi(match[3])
	right := match[4]

	if table == nil || len(table.Header) == 0 {
		return nil, nil, fmt.Errorf("table missing header")
	}

	h := make([]interface{}, len(table.Header))
	for i, v := range table.Header {
		h[i] = v
	}

	header := sheets.ValueRange{
		Range:  fmt.Sprintf("%s!%s%v:%s%v", name, left, top, right, top),
		Values: [][]interface{}{h},
	}

	rows := make([][]interface{}, 0, table.Len())
	for _, record := range table.Records {
		row := make([]interface{}, len(record))
		for i, v := range record {
			row[i] = v
		}

		rows = append(rows, row)
	}

	data := sheets.ValueRange{
		Range:  fmt.Sprintf("%s!%s%v:%s", name, left, top+1, right),
		Values: rows,
	}

	return &header, &data, nil
}

func clear(ctx context.Context, google *sheets.Service, spreadsheet string, ranges []string) error {
	rq := sheets.BatchClearValuesRequest{
		Ranges: ranges,
	}

	if _, err := google.Spreadsheets.Values.BatchClear(spreadsheet, &rq).Context(ctx).Do(); err != nil {
		return err
	}

	return nil
}

func clean(v string) string {
	return strings.TrimSpace(v)
}

func normalise(v string) string {
	return strings.ToLower(strings.ReplaceAll(v, " ", ""))
}
