package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nemo-facility/nemo-app-drive/records"
)

func TestSheetToTable(t *testing.T) {
	rows := [][]interface{}{
		{"item_id", " item_type ", "start", "amount"},
		{"101", "tool_usage", "2025-03-04 09:00:00", 90.5},
		{"102", "area_access"},
		{"", "", "", ""},
		{"103", "training", "2025-03-06 09:00:00", "15", "extra"},
	}

	table, err := sheetToTable(rows)
	require.NoError(t, err)

	assert.Equal(t, []string{"item_id", "item_type", "start", "amount"}, table.Header)
	assert.Equal(t, []records.Record{
		{"101", "tool_usage", "2025-03-04 09:00:00", "90.5"},
		{"102", "area_access", "", ""},
		{"103", "training", "2025-03-06 09:00:00", "15"},
	}, table.Records)
}

func TestSheetToTableWithEmptySheet(t *testing.T) {
	_, err := sheetToTable([][]interface{}{})
	assert.Error(t, err)
}

func TestSheetToTableWithoutHeaders(t *testing.T) {
	_, err := sheetToTable([][]interface{}{{}})
	assert.Error(t, err)
}

func TestSheetToTableWithDuplicateColumns(t *testing.T) {
	rows := [][]interface{}{
		{"item_id", "Amount", "amount"},
	}

	_, err := sheetToTable(rows)
	assert.Error(t, err)
}

func TestSheetToTableWithBlankColumnName(t *testing.T) {
	rows := [][]interface{}{
		{"item_id", " ", "amount"},
	}

	_, err := sheetToTable(rows)
	assert.Error(t, err)
}

func TestTableToSheet(t *testing.T) {
	table := records.NewTable("item_id", "amount")
	table.Append(records.Record{"101", "90"})
	table.Append(records.Record{"102", "30"})

	header, data, err := tableToSheet(table, "Master!A3:B")
	require.NoError(t, err)

	assert.Equal(t, "Master!A3:B3", header.Range)
	assert.Equal(t, [][]interface{}{{"item_id", "amount"}}, header.Values)

	assert.Equal(t, "Master!A4:B", data.Range)
	assert.Equal(t, [][]interface{}{{"101", "90"}, {"102", "30"}}, data.Values)
}

func TestTableToSheetWithInvalidRange(t *testing.T) {
	table := records.NewTable("item_id")

	for _, area := range []string{"", "Master", "Master!A:B", "A1:B"} {
		_, _, err := tableToSheet(table, area)
		assert.Error(t, err, "expected error for range '%v'", area)
	}
}

func TestTableToSheetWithoutHeader(t *testing.T) {
	_, _, err := tableToSheet(records.NewTable(), "Master!A1:B")
	assert.Error(t, err)
}

func TestSpreadsheetID(t *testing.T) {
	id, err := spreadsheetID("https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms", id)

	_, err = spreadsheetID("https://drive.google.com/drive/folders/abc")
	assert.Error(t, err)
}

func TestClearRange(t *testing.T) {
	tests := map[string]string{
		"Master!A1:AZ100": "Master!A1:AZ",
		"Master!A1:AZ":    "Master!A1:AZ",
		"Master":          "Master",
	}

	for area, expected := range tests {
		assert.Equal(t, expected, clearRange(area), area)
	}
}
