// Package merge implements the incremental update of a master table: rows from
// inside a time window are replaced with freshly fetched rows, rows outside the
// window (or with an unparsable timestamp) are kept, and exact duplicates are
// removed.
package merge

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nemo-facility/nemo-app-drive/records"
)

// ErrEmptyBatch is returned when a merge is requested without any fresh rows.
// Replacing a window with nothing would silently delete history so the merge is
// refused and the existing table must be left as is.
var ErrEmptyBatch = errors.New("no fresh records to merge")

// ErrNoWindow is returned when a merge is requested without a replace boundary.
var ErrNoWindow = errors.New("merge window has no start time")

const (
	DefaultTimestampField = "start"
)

var DefaultKeyFields = []string{"item_id", "id"}

// Window is the replace scope of a merge. Existing rows with a timestamp at or
// after Start are replaced. If Partition is non-zero only rows from that
// calendar year are replaced.
type Window struct {
	Start     time.Time
	End       time.Time
	Partition int
}

func (w Window) String() string {
	if w.Partition != 0 {
		return fmt.Sprintf("%v..%v (%v)", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"), w.Partition)
	}

	return fmt.Sprintf("%v..%v", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

type Summary struct {
	Existing      int `json:"existing"`
	Invalid       int `json:"invalid"`
	Removed       int `json:"removed"`
	Retained      int `json:"retained"`
	Added         int `json:"added"`
	Duplicates    int `json:"duplicates"`
	KeyDuplicates int `json:"key_duplicates"`
	Total         int `json:"total"`
}

func (s Summary) String() string {
	return fmt.Sprintf("existing:%v  invalid:%v  removed:%v  retained:%v  added:%v  duplicates:%v  key-duplicates:%v  total:%v",
		s.Existing, s.Invalid, s.Removed, s.Retained, s.Added, s.Duplicates, s.KeyDuplicates, s.Total)
}

type Result struct {
	Table   *records.Table
	Summary Summary
}

type Engine struct {
	TimestampField string
	KeyFields      []string

	log log.FieldLogger
}

func NewEngine(logger log.FieldLogger) *Engine {
	return &Engine{
		TimestampField: DefaultTimestampField,
		KeyFields:      DefaultKeyFields,
		log:            logger,
	}
}

// Merge combines the existing master table with a freshly fetched batch. The
// result is the existing rows that are out of the replace scope followed by all
// of the fresh rows, with rows that are identical in every field removed.
//
// Neither input is modified. A nil existing table is treated as empty.
//
// Exact duplicates are removed across the whole combined table, including
// existing rows with an invalid timestamp, so two identical invalid rows are
// kept as one.
func (e *Engine) Merge(existing, fresh *records.Table, window Window) (*Result, error) {
	if fresh.Len() == 0 {
		return nil, ErrEmptyBatch
	}

	if window.Start.IsZero() {
		return nil, ErrNoWindow
	}

	if existing == nil {
		existing = records.NewTable(fresh.Header...)
	}

	field := e.TimestampField
	if field == "" {
		field = DefaultTimestampField
	}

	start := records.NormaliseTime(window.Start)
	summary := Summary{
		Existing: existing.Len(),
		Added:    fresh.Len(),
	}

	if existing.Len() > 0 && !existing.HasColumn(field) {
		e.warnf("existing table has no '%v' column - all %v existing records will be retained", field, existing.Len())
	}

	// ... drop the replace scope
	header := records.Union(existing.Header, fresh.Header)
	combined := records.NewTable(header...)

	for _, record := range existing.Align(header).Records {
		ts := records.Normalise(combined.Value(record, field))

		switch {
		case !ts.Valid():
			summary.Invalid++
			combined.Records = append(combined.Records, record)

		case inScope(ts, start, window.Partition):
			summary.Removed++

		default:
			combined.Records = append(combined.Records, record)
		}
	}

	summary.Retained = len(combined.Records)

	// ... append fresh batch and drop exact duplicates
	combined.Records = append(combined.Records, fresh.Align(header).Records...)

	deduplicated, duplicates := dedup(combined)
	summary.Duplicates = duplicates
	summary.KeyDuplicates = e.keyDuplicates(deduplicated)
	summary.Total = deduplicated.Len()

	e.report(window, summary)

	return &Result{
		Table:   deduplicated,
		Summary: summary,
	}, nil
}

func inScope(ts, start records.Timestamp, partition int) bool {
	if ts.Before(start) {
		return false
	}

	if partition != 0 && ts.Year() != partition {
		return false
	}

	return true
}

// dedup removes records that are identical in every field, keeping the last
// occurrence and otherwise preserving order. Keeping the last occurrence means a
// retained row that reappears in the fresh batch takes the fresh row's position,
// so that repeating a merge reproduces the same table in the same order.
func dedup(table *records.Table) (*records.Table, int) {
	seen := map[string]bool{}
	keep := make([]bool, len(table.Records))
	duplicates := 0

	for i := len(table.Records) - 1; i >= 0; i-- {
		k := records.Key(table.Records[i])
		if seen[k] {
			duplicates++
			continue
		}

		seen[k] = true
		keep[i] = true
	}

	deduplicated := records.NewTable(table.Header...)
	for i, record := range table.Records {
		if keep[i] {
			deduplicated.Records = append(deduplicated.Records, record)
		}
	}

	return deduplicated, duplicates
}

// keyDuplicates counts records that share a natural key with an earlier record
// but differ in some other field. These are reported, never removed.
func (e *Engine) keyDuplicates(table *records.Table) int {
	field := ""
	for _, k := range e.KeyFields {
		if table.HasColumn(k) {
			field = k
			break
		}
	}

	if field == "" {
		return 0
	}

	seen := map[string]bool{}
	count := 0

	for _, record := range table.Records {
		k := table.Value(record, field)
		if k == "" {
			continue
		}

		if seen[k] {
			count++
		}

		seen[k] = true
	}

	return count
}

func (e *Engine) report(window Window, summary Summary) {
	if e.log == nil {
		return
	}

	e.log.WithFields(log.Fields{
		"window":   window.String(),
		"existing": summary.Existing,
		"invalid":  summary.Invalid,
		"removed":  summary.Removed,
		"retained": summary.Retained,
	}).Infof("removed %v records from replace window (kept %v with invalid timestamps)", summary.Removed, summary.Invalid)

	e.log.WithFields(log.Fields{
		"added":      summary.Added,
		"duplicates": summary.Duplicates,
		"total":      summary.Total,
	}).Infof("added %v fresh records, dropped %v exact duplicates", summary.Added, summary.Duplicates)

	if summary.KeyDuplicates > 0 {
		e.log.WithField("key_duplicates", summary.KeyDuplicates).
			Warnf("%v records share a natural key with another record but differ in other fields", summary.KeyDuplicates)
	}
}

func (e *Engine) warnf(format string, args ...any) {
	if e.log != nil {
		e.log.Warnf(format, args...)
	}
}
