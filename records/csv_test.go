package records

import (
	"reflect"
	"strings"
	"testing"
)

func TestReadCSV(t *testing.T) {
	expected := Table{
		Header: []string{"item_id", "start", "amount", "item_type"},
		Records: []Record{
			{"1001", "2024-01-05T09:00:00-08:00", "60", "tool_usage"},
			{"1002", "2024-01-06 10:30:00", "", "area_access"},
		},
	}

	csv := `item_id,start,amount,item_type
1001,2024-01-05T09:00:00-08:00,60,tool_usage
1002,2024-01-06 10:30:00,,area_access
`

	table, err := ReadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Unexpected error returned from ReadCSV (%v)", err)
	}

	if !reflect.DeepEqual(*table, expected) {
		t.Errorf("Incorrect table\n   expected: %v\n   got:      %v\n", expected, *table)
	}
}

func TestReadCSVWithShortRows(t *testing.T) {
	expected := Table{
		Header: []string{"item_id", "start", "amount"},
		Records: []Record{
			{"1001", "2024-01-05", ""},
			{"1002", "", ""},
		},
	}

	csv := "item_id,start,amount\n1001,2024-01-05\n1002\n"

	table, err := ReadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Unexpected error returned from ReadCSV (%v)", err)
	}

	if !reflect.DeepEqual(*table, expected) {
		t.Errorf("Incorrect table\n   expected: %v\n   got:      %v\n", expected, *table)
	}
}

func TestReadCSVWithEmptyFile(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Fatalf("Expected error return for empty file, got %v", err)
	}
}

func TestReadCSVWithDuplicatedColumn(t *testing.T) {
	csv := "item_id,start,Item_ID\n1001,2024-01-05,1001\n"

	if _, err := ReadCSV(strings.NewReader(csv)); err == nil {
		t.Fatalf("Expected error return for duplicated column, got %v", err)
	}
}

func TestWriteCSV(t *testing.T) {
	expected := `item_id,start,name
1001,2024-01-05 09:00:00,"Smith, J"
1002,,
`

	table := Table{
		Header: []string{"item_id", "start", "name"},
		Records: []Record{
			{"1001", "2024-01-05 09:00:00", "Smith, J"},
			{"1002", "", ""},
		},
	}

	var f strings.Builder
	if err := WriteCSV(&f, &table); err != nil {
		t.Fatalf("Unexpected error returned from WriteCSV (%v)", err)
	}

	if f.String() != expected {
		t.Errorf("Incorrect CSV\n   expected: %s\n   got:      %s\n", expected, f.String())
	}
}

func TestWriteTSV(t *testing.T) {
	expected := "item_id\tstart\n1001\t2024-01-05\n"

	table := Table{
		Header:  []string{"item_id", "start"},
		Records: []Record{{"1001", "2024-01-05"}},
	}

	var f strings.Builder
	if err := WriteTSV(&f, &table); err != nil {
		t.Fatalf("Unexpected error returned from WriteTSV (%v)", err)
	}

	if f.String() != expected {
		t.Errorf("Incorrect TSV\n   expected: %s\n   got:      %s\n", expected, f.String())
	}
}

func TestWriteCSVWithoutHeader(t *testing.T) {
	var f strings.Builder

	if err := WriteCSV(&f, &Table{}); err == nil {
		t.Fatalf("Expected error return for missing header, got %v", err)
	}
}
