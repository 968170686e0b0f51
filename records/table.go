package records

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is a single row of text values, aligned with the header of the Table
// that holds it.
type Record []string

// Table is an ordered collection of records with a shared header. Every value is
// held as text so that a table read from a CSV file and a table built from the
// API compare field-for-field.
type Table struct {
	Header  []string
	Records []Record
}

func NewTable(header ...string) *Table {
	return &Table{
		Header:  append([]string{}, header...),
		Records: []Record{},
	}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}

	return len(t.Records)
}

// Column returns the index of the named column or -1 if the table has no such
// column. Column names are matched exactly.
func (t *Table) Column(name string) int {
	if t == nil {
		return -1
	}

	for i, h := range t.Header {
		if h == name {
			return i
		}
	}

	return -1
}

func (t *Table) HasColumn(name string) bool {
	return t.Column(name) >= 0
}

// Value returns the value of the named column for a record, or "" if either the
// column or the value is missing.
func (t *Table) Value(record Record, name string) string {
	if ix := t.Column(name); ix >= 0 && ix < len(record) {
		return record[ix]
	}

	return ""
}

// Append adds a record, padding or truncating it to the width of the header.
func (t *Table) Append(record Record) {
	row := make(Record, len(t.Header))
	copy(row, record)

	t.Records = append(t.Records, row)
}

// Align returns a copy of the table re-indexed to the given header. Columns that
// are not in the table are left empty and columns that are not in the header are
// dropped.
func (t *Table) Align(header []string) *Table {
	aligned := NewTable(header...)
	if t == nil {
		return aligned
	}

	index := make([]int, len(header))
	for i, h := range header {
		index[i] = t.Column(h)
	}

	for _, record := range t.Records {
		row := make(Record, len(header))
		for i, ix := range index {
			if ix >= 0 && ix < len(record) {
				row[i] = record[ix]
			}
		}

		aligned.Records = append(aligned.Records, row)
	}

	return aligned
}

// Drop returns a copy of the table without the named columns.
func (t *Table) Drop(columns ...string) *Table {
	drop := map[string]bool{}
	for _, c := range columns {
		drop[c] = true
	}

	header := []string{}
	for _, h := range t.Header {
		if !drop[h] {
			header = append(header, h)
		}
	}

	return t.Align(header)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	return t.Align(t.Header)
}

// Union merges two headers, keeping the order of the first and appending any
// columns that appear only in the second.
func Union(a, b []string) []string {
	header := append([]string{}, a...)
	seen := map[string]bool{}
	for _, h := range a {
		seen[h] = true
	}

	for _, h := range b {
		if !seen[h] {
			header = append(header, h)
			seen[h] = true
		}
	}

	return header
}

// Key returns a string that is identical for two records if and only if the
// records are identical in every field.
func Key(record Record) string {
	var b strings.Builder

	for _, v := range record {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}

	return b.String()
}

func index(header []string) (map[string]int, error) {
	index := map[string]int{}
	for i, h := range header {
		k := normalise(h)
		if _, ok := index[k]; ok {
			return nil, fmt.Errorf("duplicate column name '%s'", h)
		}

		index[k] = i
	}

	return index, nil
}

func clean(v string) string {
	return strings.TrimSpace(v)
}

func normalise(v string) string {
	return strings.ToLower(strings.ReplaceAll(v, " ", ""))
}
