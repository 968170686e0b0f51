package records

import (
	"reflect"
	"strings"
	"testing"
)

func TestAlign(t *testing.T) {
	expected := Table{
		Header: []string{"start", "item_id", "tool"},
		Records: []Record{
			{"2024-01-05", "1001", ""},
			{"2024-01-06", "1002", ""},
		},
	}

	table := Table{
		Header: []string{"item_id", "amount", "start"},
		Records: []Record{
			{"1001", "60", "2024-01-05"},
			{"1002", "30", "2024-01-06"},
		},
	}

	aligned := table.Align([]string{"start", "item_id", "tool"})

	if !reflect.DeepEqual(*aligned, expected) {
		t.Errorf("Incorrect aligned table\n   expected: %v\n   got:      %v\n", expected, *aligned)
	}
}

func TestUnion(t *testing.T) {
	expected := []string{"item_id", "start", "amount", "tool", "user"}

	header := Union([]string{"item_id", "start", "amount"}, []string{"start", "tool", "item_id", "user"})

	if !reflect.DeepEqual(header, expected) {
		t.Errorf("Incorrect header\n   expected: %v\n   got:      %v\n", expected, header)
	}
}

func TestDrop(t *testing.T) {
	expected := Table{
		Header:  []string{"start", "amount"},
		Records: []Record{{"2024-01-05", "60"}},
	}

	table := Table{
		Header:  []string{"id", "start", "user", "amount"},
		Records: []Record{{"17", "2024-01-05", "3", "60"}},
	}

	dropped := table.Drop("id", "user", "missing")

	if !reflect.DeepEqual(*dropped, expected) {
		t.Errorf("Incorrect table\n   expected: %v\n   got:      %v\n", expected, *dropped)
	}
}

func TestAppendPadsRecord(t *testing.T) {
	table := NewTable("a", "b", "c")
	table.Append(Record{"1"})

	if !reflect.DeepEqual(table.Records[0], Record{"1", "", ""}) {
		t.Errorf("Incorrect record %v", table.Records[0])
	}
}

func TestKey(t *testing.T) {
	if Key(Record{"a,b", "c"}) == Key(Record{"a", "b,c"}) {
		t.Errorf("Expected different keys for records with different field boundaries")
	}

	if Key(Record{"1", "", "x"}) != Key(Record{"1", "", "x"}) {
		t.Errorf("Expected identical keys for identical records")
	}
}

func TestDecodeJSON(t *testing.T) {
	expected := Table{
		Header: []string{"item_id", "start", "amount", "waived", "details", "project"},
		Records: []Record{
			{"1001", "2024-03-01T08:00:00-08:00", "12.5", "False", `{"a":1}`, ""},
			{"1002", "2024-03-02T08:00:00-08:00", "60", "True", "", "17"},
		},
	}

	data := `[
	  {"item_id": 1001, "start": "2024-03-01T08:00:00-08:00", "amount": 12.5, "waived": false, "details": {"a": 1}},
	  {"item_id": 1002, "start": "2024-03-02T08:00:00-08:00", "amount": 60, "waived": true, "details": null, "project": 17}
	]`

	table, err := DecodeJSON(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Unexpected error returned from DecodeJSON (%v)", err)
	}

	if !reflect.DeepEqual(*table, expected) {
		t.Errorf("Incorrect table\n   expected: %v\n   got:      %v\n", expected, *table)
	}
}

func TestDecodeJSONWithInvalidDocument(t *testing.T) {
	if _, err := DecodeJSON(strings.NewReader(`{"detail": "Invalid token."}`)); err == nil {
		t.Fatalf("Expected error return for non-array document, got %v", err)
	}
}

func TestFromJSON(t *testing.T) {
	expected := Table{
		Header:  []string{"id", "name"},
		Records: []Record{{"7", "FIB"}, {"", "SEM"}},
	}

	table := FromJSON([]map[string]any{
		{"name": "FIB", "id": 7},
		{"name": "SEM"},
	})

	if !reflect.DeepEqual(*table, expected) {
		t.Errorf("Incorrect table\n   expected: %v\n   got:      %v\n", expected, *table)
	}
}
