package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/nemo-facility/nemo-app-drive/period"
	"github.com/nemo-facility/nemo-app-drive/store"
)

// Monthly fetches the billing data for the current month (or the whole of the
// previous month on the 1st) and writes it to <year>/Billing_Data. An empty
// month is skipped.
func (p *Pipeline) Monthly(ctx context.Context) (string, error) {
	r := period.CurrentMonth(p.Now())

	return p.month(ctx, r)
}

// Backfill writes the billing data for every month from January of the start
// year up to the current month. A failed month does not stop the remaining
// months.
func (p *Pipeline) Backfill(ctx context.Context) ([]string, error) {
	written := []string{}
	var errs []error

	for _, m := range period.Months(p.StartYear, p.Now()) {
		location, err := p.month(ctx, m.Range())
		if err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", m, err))
		} else if location != "" {
			written = append(written, location)
		}
	}

	return written, errors.Join(errs...)
}

func (p *Pipeline) month(ctx context.Context, r period.Range) (string, error) {
	year, month := r.Start.Year(), r.Start.Month()
	location := p.monthly(year, month)

	p.log.Infof("fetching billing data from %v", r)

	table, err := p.Source.Billing(ctx, r.Start, r.End)
	if err != nil {
		return "", fmt.Errorf("error fetching billing data for %v (%w)", r, err)
	}

	if table.Len() == 0 {
		p.log.Warnf("no billing data for %v, skipping upload", r.Start.Format("January 2006"))
		return "", nil
	}

	s, err := store.Open(location, p.Stores)
	if err != nil {
		return "", err
	}

	if err := s.Write(ctx, table); err != nil {
		return "", fmt.Errorf("error writing %v (%w)", s, err)
	}

	p.log.WithField("file", location).Infof("wrote %v records to %v", table.Len(), p.MonthlyName(year, month))

	return location, nil
}
