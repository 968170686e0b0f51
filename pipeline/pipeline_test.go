package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nemo-facility/nemo-app-drive/audit"
	"github.com/nemo-facility/nemo-app-drive/drive"
	"github.com/nemo-facility/nemo-app-drive/merge"
	"github.com/nemo-facility/nemo-app-drive/period"
	"github.com/nemo-facility/nemo-app-drive/records"
	"github.com/nemo-facility/nemo-app-drive/store"
)

var header = []string{"item_id", "item_type", "start", "amount"}

type source struct {
	billing func(start, end time.Time) (*records.Table, error)
	calls   []period.Range
}

func (s *source) Billing(ctx context.Context, start, end time.Time) (*records.Table, error) {
	s.calls = append(s.calls, period.Range{Start: start, End: end})

	return s.billing(start, end)
}

func (s *source) UsageEvents(ctx context.Context) (*records.Table, error) {
	return records.NewTable(), nil
}

func (s *source) Reservations(ctx context.Context) (*records.Table, error) {
	return records.NewTable(), nil
}

func (s *source) Users(ctx context.Context) (*records.Table, error) {
	return records.NewTable(), nil
}

func (s *source) Tools(ctx context.Context) (*records.Table, error) {
	return records.NewTable(), nil
}

func table(rows ...records.Record) *records.Table {
	t := records.NewTable(header...)
	t.Records = append(t.Records, rows...)

	return t
}

func fixed(rows ...records.Record) func(time.Time, time.Time) (*records.Table, error) {
	return func(time.Time, time.Time) (*records.Table, error) {
		return table(rows...), nil
	}
}

// byYear returns the rows from the calendar year of the start of the fetch range.
func byYear(rows ...records.Record) func(time.Time, time.Time) (*records.Table, error) {
	return func(start, end time.Time) (*records.Table, error) {
		t := table()
		for _, row := range rows {
			if strings.HasPrefix(row[2], fmt.Sprintf("%04d-", start.Year())) {
				t.Records = append(t.Records, row)
			}
		}

		return t, nil
	}
}

type fixture struct {
	pipeline *Pipeline
	source   *source
	drive    *drive.Memory
	audit    *audit.Memory
	hook     *test.Hook
}

func setup(now time.Time, billing func(time.Time, time.Time) (*records.Table, error)) fixture {
	logger, hook := test.NewNullLogger()
	src := source{billing: billing}
	m := drive.NewMemory()
	a := audit.Memory{}

	p := New(&src, "gdrive://root", store.Options{Drive: m}, logger)
	p.Now = func() time.Time { return now }
	p.Recorder = &a

	return fixture{
		pipeline: p,
		source:   &src,
		drive:    m,
		audit:    &a,
		hook:     hook,
	}
}

func (f fixture) master(t *testing.T, path string) *records.Table {
	content, ok := f.drive.Content("root", path)
	require.True(t, ok, "missing %v", path)

	table, err := records.ReadCSV(bytes.NewReader(content))
	require.NoError(t, err)

	return table
}

func (f fixture) put(t *testing.T, path string, content string) {
	parts := strings.Split(path, "/")
	folder, err := drive.Path(context.Background(), f.drive, "root", parts[:len(parts)-1]...)
	require.NoError(t, err)

	_, err = f.drive.Upload(context.Background(), folder, parts[len(parts)-1], drive.CSVMimeType, strings.NewReader(content))
	require.NoError(t, err)
}

var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.Local)

func TestLocations(t *testing.T) {
	f := setup(now, fixed())

	assert.Equal(t, "gdrive://root/2025/Master_CSV/billing_data_2025_master.csv", f.pipeline.YearMaster(2025))
	assert.Equal(t, "gdrive://root/billing_data_master_master.csv", f.pipeline.AllMaster())
	assert.Equal(t, "billing_data_2025_03.csv", f.pipeline.MonthlyName(2025, time.March))
}

func TestUpdateYearCreatesMaster(t *testing.T) {
	f := setup(now, fixed(
		records.Record{"1", "tool_usage", "2025-03-01T09:00:00-08:00", "60"},
		records.Record{"2", "area_access", "2025-03-02T09:00:00-08:00", "30"},
	))

	report, err := f.pipeline.UpdateYear(context.Background(), 2025)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Summary.Total)
	assert.False(t, report.Fallback)

	master := f.master(t, "2025/Master_CSV/billing_data_2025_master.csv")
	assert.Equal(t, 2, master.Len())

	require.Len(t, f.source.calls, 1)
	assert.Equal(t, now.Add(-period.DefaultLookback), f.source.calls[0].Start)
	assert.Equal(t, now, f.source.calls[0].End)

	require.Len(t, f.audit.Runs, 1)
	assert.Equal(t, audit.StatusOk, f.audit.Runs[0].Status)
	assert.Equal(t, 2, f.audit.Runs[0].Summary.Total)
}

func TestUpdateYearAcrossYearBoundary(t *testing.T) {
	january := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.Local)
	f := setup(january, byYear(
		records.Record{"1", "tool_usage", "2025-12-20T09:00:00-08:00", "12"},
		records.Record{"2", "tool_usage", "2026-01-05T09:00:00-08:00", "30"},
	))

	report, err := f.pipeline.UpdateYear(context.Background(), 2026)
	require.NoError(t, err)

	jan1 := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.Local)

	require.Len(t, f.source.calls, 1)
	assert.Equal(t, jan1, f.source.calls[0].Start)
	assert.Equal(t, jan1, report.Window.Start)

	master := f.master(t, "2026/Master_CSV/billing_data_2026_master.csv")
	assert.Equal(t, []records.Record{{"2", "tool_usage", "2026-01-05T09:00:00-08:00", "30"}}, master.Records)
}

func TestUpdateLatestOnFirstOfJanuary(t *testing.T) {
	first := time.Date(2026, time.January, 1, 6, 0, 0, 0, time.Local)
	f := setup(first, byYear(
		records.Record{"1", "tool_usage", "2025-12-20T09:00:00-08:00", "12"},
	))

	reports, err := f.pipeline.UpdateLatest(context.Background())
	require.NoError(t, err)

	require.Len(t, reports, 1)
	assert.Equal(t, "gdrive://root/2025/Master_CSV/billing_data_2025_master.csv", reports[0].Master)
	assert.Equal(t, []string{"2025/Master_CSV/billing_data_2025_master.csv"}, f.drive.List("root"))
}

func TestUpdateLatestAcrossYearBoundary(t *testing.T) {
	january := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.Local)
	f := setup(january, byYear(
		records.Record{"1", "tool_usage", "2025-12-20T09:00:00-08:00", "12"},
		records.Record{"2", "tool_usage", "2026-01-05T09:00:00-08:00", "30"},
	))

	f.put(t, "2025/Master_CSV/billing_data_2025_master.csv", strings.Join([]string{
		"item_id,item_type,start,amount",
		"1,tool_usage,2025-12-20T09:00:00-08:00,10",
		"",
	}, "\n"))

	reports, err := f.pipeline.UpdateLatest(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)

	require.Len(t, f.source.calls, 2)
	assert.Equal(t, january.Add(-period.DefaultLookback), f.source.calls[0].Start)
	assert.Equal(t, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.Local), f.source.calls[0].End)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.Local), f.source.calls[1].Start)

	previous := f.master(t, "2025/Master_CSV/billing_data_2025_master.csv")
	assert.Equal(t, []records.Record{{"1", "tool_usage", "2025-12-20T09:00:00-08:00", "12"}}, previous.Records)

	current := f.master(t, "2026/Master_CSV/billing_data_2026_master.csv")
	assert.Equal(t, []records.Record{{"2", "tool_usage", "2026-01-05T09:00:00-08:00", "30"}}, current.Records)
}

func TestUpdateYearMergesExistingMaster(t *testing.T) {
	f := setup(now, fixed(
		records.Record{"3", "tool_usage", "2025-02-20T09:00:00-08:00", "45"},
		records.Record{"4", "tool_usage", "2025-03-05T09:00:00-08:00", "15"},
	))

	f.put(t, "2025/Master_CSV/billing_data_2025_master.csv", strings.Join([]string{
		"item_id,item_type,start,amount",
		"1,tool_usage,2025-01-15T09:00:00-08:00,60",
		"2,tool_usage,2025-02-20T09:00:00-08:00,40",
		"9,tool_usage,,10",
		"",
	}, "\n"))

	report, err := f.pipeline.UpdateYear(context.Background(), 2025)
	require.NoError(t, err)

	assert.Equal(t, merge.Summary{
		Existing: 3,
		Invalid:  1,
		Removed:  1,
		Retained: 2,
		Added:    2,
		Total:    4,
	}, report.Summary)

	master := f.master(t, "2025/Master_CSV/billing_data_2025_master.csv")
	assert.Equal(t, []records.Record{
		{"1", "tool_usage", "2025-01-15T09:00:00-08:00", "60"},
		{"9", "tool_usage", "", "10"},
		{"3", "tool_usage", "2025-02-20T09:00:00-08:00", "45"},
		{"4", "tool_usage", "2025-03-05T09:00:00-08:00", "15"},
	}, master.Records)
}

func TestUpdateYearSkipsYearsBeforeLookback(t *testing.T) {
	f := setup(now, fixed())

	report, err := f.pipeline.UpdateYear(context.Background(), 2023)
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.Empty(t, f.source.calls)
	assert.Empty(t, f.drive.List("root"))
}

func TestUpdateYearWithFetchError(t *testing.T) {
	f := setup(now, func(time.Time, time.Time) (*records.Table, error) {
		return nil, errors.New("connection refused")
	})

	original := "item_id,item_type,start,amount\n1,tool_usage,2025-03-01T09:00:00-08:00,60\n"
	f.put(t, "2025/Master_CSV/billing_data_2025_master.csv", original)

	_, err := f.pipeline.UpdateYear(context.Background(), 2025)
	require.Error(t, err)

	content, _ := f.drive.Content("root", "2025/Master_CSV/billing_data_2025_master.csv")
	assert.Equal(t, original, string(content), "master must not be modified")

	require.Len(t, f.audit.Runs, 1)
	assert.Equal(t, audit.StatusFailed, f.audit.Runs[0].Status)
}

func TestUpdateYearWithEmptyBatch(t *testing.T) {
	f := setup(now, fixed())

	original := "item_id,item_type,start,amount\n1,tool_usage,2025-03-01T09:00:00-08:00,60\n"
	f.put(t, "2025/Master_CSV/billing_data_2025_master.csv", original)

	_, err := f.pipeline.UpdateYear(context.Background(), 2025)
	assert.ErrorIs(t, err, merge.ErrEmptyBatch)

	content, _ := f.drive.Content("root", "2025/Master_CSV/billing_data_2025_master.csv")
	assert.Equal(t, original, string(content), "master must not be modified")
}

func TestUpdateYearWithUnreadableMaster(t *testing.T) {
	f := setup(now, fixed(records.Record{"4", "tool_usage", "2025-03-05T09:00:00-08:00", "15"}))

	f.put(t, "2025/Master_CSV/billing_data_2025_master.csv", "")

	report, err := f.pipeline.UpdateYear(context.Background(), 2025)
	require.NoError(t, err)

	assert.True(t, report.Fallback)
	assert.Equal(t, 1, report.Summary.Total)
	assert.True(t, f.audit.Runs[0].Fallback)

	logged := false
	for _, entry := range f.hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			logged = true
		}
	}

	assert.True(t, logged, "expected the fallback to be logged at ERROR level")
}

func TestUpdateAll(t *testing.T) {
	f := setup(now, fixed(records.Record{"4", "tool_usage", "2025-03-05T09:00:00-08:00", "15"}))

	report, err := f.pipeline.UpdateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Window.Partition)
	assert.Equal(t, []string{"billing_data_master_master.csv"}, f.drive.List("root"))
}

func TestUpdateYears(t *testing.T) {
	f := setup(now, fixed(records.Record{"4", "tool_usage", "2025-03-05T09:00:00-08:00", "15"}))
	f.pipeline.StartYear = 2023

	reports, err := f.pipeline.UpdateYears(context.Background())
	require.NoError(t, err)

	require.Len(t, reports, 3)
	assert.True(t, reports[0].Skipped)
	assert.True(t, reports[1].Skipped)
	assert.False(t, reports[2].Skipped)
}

func TestMonthly(t *testing.T) {
	first := time.Date(2025, time.March, 1, 6, 0, 0, 0, time.Local)
	f := setup(first, fixed(records.Record{"1", "tool_usage", "2025-02-27T09:00:00-08:00", "60"}))

	location, err := f.pipeline.Monthly(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "gdrive://root/2025/Billing_Data/billing_data_2025_02.csv", location)
	assert.Equal(t, []string{"2025/Billing_Data/billing_data_2025_02.csv"}, f.drive.List("root"))
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.Local), f.source.calls[0].Start)
}

func TestMonthlySkipsEmptyMonth(t *testing.T) {
	f := setup(now, fixed())

	location, err := f.pipeline.Monthly(context.Background())

	assert.NoError(t, err)
	assert.Empty(t, location)
	assert.Empty(t, f.drive.List("root"))
}

func TestBackfill(t *testing.T) {
	f := setup(now, func(start, end time.Time) (*records.Table, error) {
		if start.Month() == time.February {
			return table(), nil
		}

		return table(records.Record{"1", "tool_usage", start.Format(time.RFC3339), "60"}), nil
	})
	f.pipeline.StartYear = 2025

	written, err := f.pipeline.Backfill(context.Background())
	require.NoError(t, err)

	assert.Len(t, written, 2)
	assert.Equal(t, []string{
		"2025/Billing_Data/billing_data_2025_01.csv",
		"2025/Billing_Data/billing_data_2025_03.csv",
	}, f.drive.List("root"))
}

func TestRebuildYear(t *testing.T) {
	f := setup(now, func(start, end time.Time) (*records.Table, error) {
		batch := table(records.Record{start.Format("0102"), "tool_usage", start.Format(time.RFC3339), "60"})
		if start.Month() == time.March {
			batch = &records.Table{
				Header:  []string{"item_id", "start", "project"},
				Records: []records.Record{{"0301", start.Format(time.RFC3339), "NEMO"}},
			}
		}

		return batch, nil
	})

	report, err := f.pipeline.RebuildYear(context.Background(), 2025)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Summary.Total)
	assert.Len(t, f.source.calls, 3)

	master := f.master(t, "2025/Master_CSV/billing_data_2025_master.csv")
	assert.Equal(t, []string{"item_id", "item_type", "start", "amount", "project"}, master.Header)
	assert.Equal(t, "NEMO", master.Value(master.Records[2], "project"))
	assert.Equal(t, "", master.Value(master.Records[0], "project"))
}

func TestRebuildWithFetchError(t *testing.T) {
	f := setup(now, func(start, end time.Time) (*records.Table, error) {
		if start.Month() == time.February {
			return nil, errors.New("timeout")
		}

		return table(records.Record{"1", "tool_usage", start.Format(time.RFC3339), "60"}), nil
	})

	_, err := f.pipeline.RebuildYear(context.Background(), 2025)

	assert.Error(t, err)
	assert.Empty(t, f.drive.List("root"))
}
