package workbook

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/cockroachdb/apd/v3"

	"github.com/nemo-facility/nemo-app-drive/records"
)

// Columns removed from the sanity check workbook.
var SanityCheckDropped = []string{
	"account_id",
	"project_id",
	"department",
	"department_id",
	"application",
	"reference_po",
	"rate_category",
	"validated",
	"waived",
}

// SanityCheckName is the file name of the sanity check workbook for a month,
// e.g. March_2025_sanity_check.xlsx.
func SanityCheckName(year int, month string) string {
	return fmt.Sprintf("%s_%d_sanity_check.xlsx", month, year)
}

// SanityCheck writes the billing data as a workbook with one '<item_type>_data'
// sheet per item type, sorted by amount in descending order and with the amount
// in minutes converted to hours.
func SanityCheck(w io.Writer, billing *records.Table) error {
	sheets, err := SanityCheckSheets(billing)
	if err != nil {
		return err
	}

	return WriteSheets(w, sheets...)
}

func SanityCheckSheets(billing *records.Table) ([]Sheet, error) {
	if billing.Len() == 0 {
		return nil, fmt.Errorf("no billing data")
	}

	if !billing.HasColumn("item_type") {
		return nil, fmt.Errorf("billing data has no 'item_type' column")
	}

	table := dropEmptyColumns(billing).Drop(SanityCheckDropped...)
	table = withHours(table)

	for _, c := range []string{"start", "end"} {
		if ix := table.Column(c); ix >= 0 {
			for _, record := range table.Records {
				if t, ok := records.Parse(record[ix]); ok {
					record[ix] = t.Format(records.DateTime)
				}
			}
		}
	}

	types := []string{}
	groups := map[string]*records.Table{}
	for _, record := range table.Records {
		k := table.Value(record, "item_type")
		if _, ok := groups[k]; !ok {
			groups[k] = records.NewTable(table.Header...)
			types = append(types, k)
		}

		groups[k].Records = append(groups[k].Records, record)
	}

	sheets := []Sheet{}
	for _, k := range types {
		group := groups[k]
		byAmount(group)

		sheets = append(sheets, Sheet{
			Name:    fmt.Sprintf("%s_data", k),
			Table:   group,
			Numeric: []string{"amount", "hours", "quantity"},
		})
	}

	return sheets, nil
}

// Hours converts an amount in minutes to hours, rounded to 2 decimal places
// with round-half-even.
func Hours(minutes string) (string, error) {
	var amount apd.Decimal
	if _, _, err := amount.SetString(minutes); err != nil {
		return "", fmt.Errorf("invalid amount '%v': %w", minutes, err)
	}

	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Rounding = apd.RoundHalfEven

	var hours apd.Decimal
	if _, err := ctx.Quo(&hours, &amount, apd.New(60, 0)); err != nil {
		return "", err
	}

	if _, err := ctx.Quantize(&hours, &hours, -2); err != nil {
		return "", err
	}

	return hours.Text('f'), nil
}

func withHours(table *records.Table) *records.Table {
	if !table.HasColumn("amount") {
		return table
	}

	header := append(append([]string{}, table.Header...), "hours")
	result := table.Align(header)
	ix := result.Column("hours")

	for _, record := range result.Records {
		if h, err := Hours(result.Value(record, "amount")); err == nil {
			record[ix] = h
		}
	}

	return result
}

// byAmount sorts by amount in descending order. Rows without a numeric amount
// sort last.
func byAmount(table *records.Table) {
	ix := table.Column("amount")
	if ix < 0 {
		return
	}

	amount := func(r records.Record) (float64, bool) {
		v, err := strconv.ParseFloat(r[ix], 64)
		return v, err == nil
	}

	sort.SliceStable(table.Records, func(i, j int) bool {
		p, okp := amount(table.Records[i])
		q, okq := amount(table.Records[j])

		switch {
		case okp && okq:
			return p > q
		default:
			return okp && !okq
		}
	})
}

// dropEmptyColumns removes columns that have no value in any row.
func dropEmptyColumns(table *records.Table) *records.Table {
	empty := []string{}
	for i, h := range table.Header {
		used := false
		for _, record := range table.Records {
			if i < len(record) && record[i] != "" {
				used = true
				break
			}
		}

		if !used {
			empty = append(empty, h)
		}
	}

	return table.Drop(empty...)
}
