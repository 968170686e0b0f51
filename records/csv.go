package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

func ReadCSV(r io.Reader) (*Table, error) {
	return read(r, ',')
}

func ReadTSV(r io.Reader) (*Table, error) {
	return read(r, '\t')
}

func WriteCSV(w io.Writer, table *Table) error {
	return write(w, table, ',')
}

func WriteTSV(w io.Writer, table *Table) error {
	return write(w, table, '\t')
}

func read(f io.Reader, comma rune) (*Table, error) {
	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	// ... header
	header := make([]string, len(rows[0]))
	for i, v := range rows[0] {
		header[i] = clean(strings.TrimPrefix(v, "\ufeff"))
	}

	if len(header) == 0 || (len(header) == 1 && header[0] == "") {
		return nil, fmt.Errorf("missing/invalid header row")
	}

	if _, err := index(header); err != nil {
		return nil, err
	}

	// ... records
	table := NewTable(header...)
	for _, row := range rows[1:] {
		if len(row) == 1 && row[0] == "" && len(header) > 1 {
			continue
		}

		table.Append(Record(row))
	}

	return table, nil
}

func write(f io.Writer, table *Table, comma rune) error {
	if table == nil || len(table.Header) == 0 {
		return fmt.Errorf("missing/invalid header row")
	}

	w := csv.NewWriter(f)
	w.Comma = comma

	if err := w.Write(table.Header); err != nil {
		return err
	}

	for _, record := range table.Records {
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()

	return w.Error()
}
