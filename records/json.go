package records

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// DecodeJSON reads a JSON array of flat objects into a table. Columns are
// ordered by first appearance in the document and fields missing from an object
// are left empty.
func DecodeJSON(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expect(dec, json.Delim('[')); err != nil {
		return nil, err
	}

	header := []string{}
	columns := map[string]int{}
	rows := []map[string]string{}

	for dec.More() {
		if err := expect(dec, json.Delim('{')); err != nil {
			return nil, err
		}

		row := map[string]string{}
		for dec.More() {
			token, err := dec.Token()
			if err != nil {
				return nil, err
			}

			key, ok := token.(string)
			if !ok {
				return nil, fmt.Errorf("invalid object key %v", token)
			}

			var value any
			if err := dec.Decode(&value); err != nil {
				return nil, err
			}

			if _, ok := columns[key]; !ok {
				columns[key] = len(header)
				header = append(header, key)
			}

			row[key] = Text(value)
		}

		if err := expect(dec, json.Delim('}')); err != nil {
			return nil, err
		}

		rows = append(rows, row)
	}

	if err := expect(dec, json.Delim(']')); err != nil {
		return nil, err
	}

	table := NewTable(header...)
	for _, row := range rows {
		record := make(Record, len(header))
		for k, v := range row {
			record[columns[k]] = v
		}

		table.Records = append(table.Records, record)
	}

	return table, nil
}

// FromJSON builds a table from already decoded objects. Go maps are unordered so
// the columns are sorted by name.
func FromJSON(objects []map[string]any) *Table {
	seen := map[string]bool{}
	header := []string{}

	for _, object := range objects {
		for k := range object {
			if !seen[k] {
				header = append(header, k)
				seen[k] = true
			}
		}
	}

	sort.Strings(header)

	table := NewTable(header...)
	for _, object := range objects {
		row := make(Record, len(header))
		for i, h := range header {
			if v, ok := object[h]; ok {
				row[i] = Text(v)
			}
		}

		table.Records = append(table.Records, row)
	}

	return table
}

// Text renders a decoded JSON value the way it is stored in a CSV file: null is
// empty, booleans are True/False, numbers are written verbatim and nested values
// are compact JSON.
func Text(v any) string {
	switch value := v.(type) {
	case nil:
		return ""

	case string:
		return value

	case bool:
		if value {
			return "True"
		}
		return "False"

	case json.Number:
		return value.String()

	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)

	case int:
		return strconv.Itoa(value)

	case int64:
		return strconv.FormatInt(value, 10)

	case map[string]any, []any:
		if b, err := json.Marshal(value); err == nil {
			return string(b)
		}
	}

	return fmt.Sprintf("%v", v)
}

func expect(dec *json.Decoder, delim json.Delim) error {
	token, err := dec.Token()
	if err != nil {
		return err
	}

	if d, ok := token.(json.Delim); !ok || d != delim {
		return fmt.Errorf("invalid JSON - expected '%v', got '%v'", delim, token)
	}

	return nil
}
