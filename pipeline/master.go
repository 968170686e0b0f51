package pipeline

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/nemo-facility/nemo-app-drive/audit"
	"github.com/nemo-facility/nemo-app-drive/merge"
	"github.com/nemo-facility/nemo-app-drive/period"
	"github.com/nemo-facility/nemo-app-drive/records"
	"github.com/nemo-facility/nemo-app-drive/store"
)

// UpdateYear replaces the last 'lookback' of the master table for a year with
// freshly fetched billing data. Years that ended before the lookback window are
// skipped.
func (p *Pipeline) UpdateYear(ctx context.Context, year int) (*Report, error) {
	master := p.YearMaster(year)

	r, cutoff, ok := period.YearWindow(year, p.Now(), p.Lookback)
	if !ok {
		p.log.WithField("master", master).Infof("%v is before the %v cutoff window, skipping update", year, p.Lookback)
		return &Report{Master: master, Skipped: true}, nil
	}

	window := merge.Window{
		Start:     cutoff,
		End:       r.End,
		Partition: year,
	}

	return p.update(ctx, "update-master", master, r, window)
}

// UpdateAll replaces the last 'lookback' of the all-years master table with
// freshly fetched billing data.
func (p *Pipeline) UpdateAll(ctx context.Context) (*Report, error) {
	r, cutoff := period.LookbackWindow(p.Now(), p.Lookback)

	window := merge.Window{
		Start: cutoff,
		End:   r.End,
	}

	return p.update(ctx, "update-master", p.AllMaster(), r, window)
}

// UpdateYears updates the master table for every year from the start year up to
// the current year. A failed year does not stop the remaining years from being
// updated.
func (p *Pipeline) UpdateYears(ctx context.Context) ([]Report, error) {
	reports := []Report{}
	var errs []error

	for year := p.StartYear; year <= p.Now().Year(); year++ {
		report, err := p.UpdateYear(ctx, year)
		if err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", year, err))
			continue
		}

		reports = append(reports, *report)
	}

	return reports, errors.Join(errs...)
}

// UpdateLatest updates the master tables for the years covered by a monthly run:
// the year of the month being uploaded and any earlier year still inside the
// lookback window.
func (p *Pipeline) UpdateLatest(ctx context.Context) ([]Report, error) {
	reports := []Report{}
	var errs []error

	for _, year := range period.LookbackYears(p.Now(), p.Lookback) {
		report, err := p.UpdateYear(ctx, year)
		if err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", year, err))
			continue
		}

		reports = append(reports, *report)
	}

	return reports, errors.Join(errs...)
}

func (p *Pipeline) update(ctx context.Context, command, master string, r period.Range, window merge.Window) (*Report, error) {
	run := audit.NewRun(command, master, p.Now())
	run.Window = window.String()

	logger := p.log.WithFields(log.Fields{"master": master, "window": window.String()})
	logger.Infof("fetching billing data from %v (replacing records from %v)", r, window.Start.Format("2006-01-02"))

	fail := func(err error) (*Report, error) {
		run.Fail(err)
		p.record(ctx, run)
		return nil, err
	}

	fresh, err := p.Source.Billing(ctx, r.Start, r.End)
	if err != nil {
		return fail(fmt.Errorf("error fetching billing data for %v (%w)", r, err))
	} else if fresh.Len() == 0 {
		logger.Warnf("no billing data for %v - master left unchanged", r)
		return fail(fmt.Errorf("%v: %w", r, merge.ErrEmptyBatch))
	}

	s, err := store.Open(master, p.Stores)
	if err != nil {
		return fail(err)
	}

	existing, fallback := p.read(ctx, s)
	run.Fallback = fallback

	result, err := p.Engine.Merge(existing, fresh, window)
	if err != nil {
		return fail(err)
	}

	run.Summary = result.Summary

	if err := s.Write(ctx, result.Table); err != nil {
		return fail(fmt.Errorf("error writing master %v (%w)", s, err))
	}

	logger.Infof("master updated with %v total records", result.Summary.Total)

	p.record(ctx, run)

	return &Report{
		Master:   master,
		Window:   window,
		Summary:  result.Summary,
		Fallback: fallback,
	}, nil
}

// RebuildYear fetches every month of a year and overwrites the year master
// table with the combined data.
func (p *Pipeline) RebuildYear(ctx context.Context, year int) (*Report, error) {
	return p.rebuild(ctx, p.YearMaster(year), period.MonthsOfYear(year, p.Now()))
}

// RebuildAll fetches every month from January of the start year and overwrites
// the all-years master table with the combined data.
func (p *Pipeline) RebuildAll(ctx context.Context) (*Report, error) {
	return p.rebuild(ctx, p.AllMaster(), period.Months(p.StartYear, p.Now()))
}

func (p *Pipeline) rebuild(ctx context.Context, master string, months []period.Month) (*Report, error) {
	run := audit.NewRun("create-master", master, p.Now())
	logger := p.log.WithField("master", master)

	fail := func(err error) (*Report, error) {
		run.Fail(err)
		p.record(ctx, run)
		return nil, err
	}

	if len(months) == 0 {
		return fail(fmt.Errorf("no months to fetch for %v", master))
	}

	first := months[0].Range()
	last := months[len(months)-1].Range()
	window := merge.Window{Start: first.Start, End: last.End}
	run.Window = window.String()

	combined := records.NewTable()
	for _, m := range months {
		r := m.Range()

		table, err := p.Source.Billing(ctx, r.Start, r.End)
		if err != nil {
			return fail(fmt.Errorf("error fetching billing data for %v (%w)", m, err))
		}

		logger.WithField("month", m.String()).Infof("fetched %v records for %v", table.Len(), m)

		header := records.Union(combined.Header, table.Header)
		combined = combined.Align(header)
		combined.Records = append(combined.Records, table.Align(header).Records...)
	}

	if combined.Len() == 0 {
		logger.Warnf("no billing data for %v - master left unchanged", window)
		return fail(fmt.Errorf("%v: %w", window, merge.ErrEmptyBatch))
	}

	s, err := store.Open(master, p.Stores)
	if err != nil {
		return fail(err)
	}

	if err := s.Write(ctx, combined); err != nil {
		return fail(fmt.Errorf("error writing master %v (%w)", s, err))
	}

	run.Summary = merge.Summary{Added: combined.Len(), Total: combined.Len()}
	p.record(ctx, run)

	logger.Infof("master created with %v records", combined.Len())

	return &Report{
		Master:  master,
		Window:  window,
		Summary: run.Summary,
	}, nil
}
