package audit

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const DefaultLogRange = "Log!A1:J"

// SheetsLog appends a summary row for each run to a Google Sheets worksheet and
// prunes rows older than the retention period.
type SheetsLog struct {
	Spreadsheet string
	Range       string
	Retention   uint

	google *sheets.Service
	log    log.FieldLogger
}

func NewSheetsLog(ctx context.Context, client *http.Client, url, area string, retention uint, logger log.FieldLogger) (*SheetsLog, error) {
	match := regexp.MustCompile(`^https://docs.google.com/spreadsheets/d/(.*?)(?:/.*)?$`).FindStringSubmatch(strings.TrimSpace(url))
	if len(match) < 2 {
		return nil, fmt.Errorf("invalid spreadsheet URL - expected something like 'https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms'")
	}

	if area == "" {
		area = DefaultLogRange
	}

	if match := regexp.MustCompile(`(.+?)!.*`).FindStringSubmatch(strings.TrimSpace(area)); len(match) < 2 {
		return nil, fmt.Errorf("invalid log-range '%s' - expected something like '%v'", area, DefaultLogRange)
	}

	google, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create new Sheets client (%v)", err)
	}

	if logger == nil {
		logger = log.StandardLogger()
	}

	return &SheetsLog{
		Spreadsheet: match[1],
		Range:       area,
		Retention:   retention,
		google:      google,
		log:         logger,
	}, nil
}

func (l *SheetsLog) Record(ctx context.Context, run Run) error {
	if err := l.update(ctx, run); err != nil {
		return err
	}

	if l.Retention > 0 {
		return l.prune(ctx, time.Now())
	}

	return nil
}

func (l *SheetsLog) update(ctx context.Context, run Run) error {
	response, err := l.google.Spreadsheets.Values.Get(l.Spreadsheet, l.Range).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to retrieve column headers from Log sheet (%v)", err)
	}

	index := defaultLogIndex()
	if len(response.Values) > 0 {
		index = logIndex(response.Values[0])
		l.log.Debugf("Log sheet column index: %v", index)
	}

	rows := sheets.ValueRange{
		Values: [][]interface{}{logRow(index, run)},
	}

	if _, err := l.google.Spreadsheets.Values.Append(l.Spreadsheet, l.Range, &rows).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("error writing log to Google Sheets (%w)", err)
	}

	return nil
}

func (l *SheetsLog) prune(ctx context.Context, now time.Time) error {
	spreadsheet, err := l.google.Spreadsheets.Get(l.Spreadsheet).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to fetch spreadsheet (%v)", err)
	}

	sheet, err := getSheet(spreadsheet, l.Range)
	if err != nil {
		return err
	}

	response, err := l.google.Spreadsheets.Values.Get(l.Spreadsheet, l.Range).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to retrieve data from Log sheet (%v)", err)
	}

	cutoff := retentionCutoff(now, l.Retention)

	l.log.Infof("pruning log records from before %v", cutoff.Format("2006-01-02"))

	ranges := expired(response.Values, cutoff)
	if len(ranges) == 0 {
		return nil
	}

	rq := sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{},
	}

	deleted := 0
	for _, r := range ranges {
		rq.Requests = append(rq.Requests, &sheets.Request{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheet.Properties.SheetId,
					Dimension:  "ROWS",
					StartIndex: int64(r[0] - deleted),
					EndIndex:   int64(r[1] - deleted + 1),
				},
			},
		})

		deleted += r[1] - r[0] + 1
	}

	if _, err := l.google.Spreadsheets.BatchUpdate(l.Spreadsheet, &rq).Context(ctx).Do(); err != nil {
		return err
	}

	l.log.Infof("pruned %d log records from log sheet", deleted)

	return nil
}

var logColumns = []string{"timestamp", "command", "master", "window", "removed", "added", "duplicates", "total", "fallback", "status"}

func defaultLogIndex() map[string]int {
	index := map[string]int{}
	for i, k := range logColumns {
		index[k] = i
	}

	return index
}

func logIndex(header []interface{}) map[string]int {
	index := map[string]int{}
	for i, v := range header {
		k := normalise(fmt.Sprintf("%v", v))
		for _, c := range logColumns {
			if k == c {
				index[c] = i
			}
		}
	}

	return index
}

func logRow(index map[string]int, run Run) []interface{} {
	columns := 0
	for _, v := range index {
		if v >= columns {
			columns = v + 1
		}
	}

	row := make([]interface{}, columns)
	for i := range row {
		row[i] = ""
	}

	values := map[string]interface{}{
		"timestamp":  run.Started.Format("2006-01-02 15:04:05"),
		"command":    run.Command,
		"master":     run.Master,
		"window":     run.Window,
		"removed":    run.Summary.Removed,
		"added":      run.Summary.Added,
		"duplicates": run.Summary.Duplicates,
		"total":      run.Summary.Total,
		"fallback":   run.Fallback,
		"status":     run.Status,
	}

	for k, ix := range index {
		row[ix] = values[k]
	}

	return row
}

func retentionCutoff(now time.Time, retention uint) time.Time {
	before := now.In(time.Local).AddDate(0, 0, -(int(retention) - 1))

	return time.Date(before.Year(), before.Month(), before.Day(), 0, 0, 0, 0, before.Location())
}

// expired returns the contiguous [start,end] row ranges with a timestamp in the
// first column that is before the cutoff.
func expired(values [][]interface{}, cutoff time.Time) [][2]int {
	list := []int{}
	for row, record := range values {
		if len(record) == 0 {
			continue
		}

		s, ok := record[0].(string)
		if !ok {
			continue
		}

		timestamp, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.Local)
		if err == nil && timestamp.Before(cutoff) {
			list = append(list, row)
		}
	}

	if len(list) == 0 {
		return nil
	}

	sort.Ints(list)

	ranges := [][2]int{}
	start := list[0]
	last := list[0]
	for _, row := range list[1:] {
		if row != last+1 {
			ranges = append(ranges, [2]int{start, last})
			start = row
		}

		last = row
	}

	return append(ranges, [2]int{start, last})
}

func getSheet(spreadsheet *sheets.Spreadsheet, area string) (*sheets.Sheet, error) {
	name := regexp.MustCompile(`(.+?)!.*`).FindStringSubmatch(area)[1]
	for _, sheet := range spreadsheet.Sheets {
		if normalise(sheet.Properties.Title) == normalise(name) {
			return sheet, nil
		}
	}

	return nil, fmt.Errorf("unable to identify worksheet for '%s'", area)
}

func normalise(v string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(v), " ", ""))
}
