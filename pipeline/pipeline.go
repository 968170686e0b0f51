// Package pipeline implements the billing data pipelines: monthly CSV exports
// and the merge-and-persist cycles that keep the per-year and all-years master
// tables up to date.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nemo-facility/nemo-app-drive/audit"
	"github.com/nemo-facility/nemo-app-drive/merge"
	"github.com/nemo-facility/nemo-app-drive/nemo"
	"github.com/nemo-facility/nemo-app-drive/period"
	"github.com/nemo-facility/nemo-app-drive/records"
	"github.com/nemo-facility/nemo-app-drive/store"
)

const (
	BillingFolder = "Billing_Data"
	MasterFolder  = "Master_CSV"

	DefaultStartYear = 2024
)

type Pipeline struct {
	Source     nemo.Source
	Location   string
	Stores     store.Options
	Descriptor string
	Lookback   time.Duration
	StartYear  int
	Engine     *merge.Engine
	Recorder   audit.Recorder
	Now        func() time.Time

	log log.FieldLogger
}

// Report is the outcome of a single master update.
type Report struct {
	Master   string
	Window   merge.Window
	Summary  merge.Summary
	Fallback bool
	Skipped  bool
}

func New(source nemo.Source, location string, stores store.Options, logger log.FieldLogger) *Pipeline {
	if logger == nil {
		logger = log.StandardLogger()
	}

	return &Pipeline{
		Source:     source,
		Location:   location,
		Stores:     stores,
		Descriptor: nemo.Descriptor(nemo.BillingPath),
		Lookback:   period.DefaultLookback,
		StartYear:  DefaultStartYear,
		Engine:     merge.NewEngine(logger),
		Recorder:   audit.Recorders{},
		Now:        time.Now,
		log:        logger,
	}
}

// MonthlyName is the file name for a month of billing data, e.g.
// billing_data_2025_03.csv.
func (p *Pipeline) MonthlyName(year int, month time.Month) string {
	return fmt.Sprintf("%s_%d_%02d.csv", p.Descriptor, year, int(month))
}

// YearMaster is the location of the master table for a year, i.e.
// <location>/<year>/Master_CSV/<descriptor>_<year>_master.csv.
func (p *Pipeline) YearMaster(year int) string {
	name := fmt.Sprintf("%s_%d_master.csv", p.Descriptor, year)

	return store.Join(p.Location, strconv.Itoa(year), MasterFolder, name)
}

// AllMaster is the location of the all-years master table, i.e.
// <location>/<descriptor>_master_master.csv.
func (p *Pipeline) AllMaster() string {
	return store.Join(p.Location, fmt.Sprintf("%s_master_master.csv", p.Descriptor))
}

func (p *Pipeline) monthly(year int, month time.Month) string {
	return store.Join(p.Location, strconv.Itoa(year), BillingFolder, p.MonthlyName(year, month))
}

// read loads an existing master table. A missing master is an empty table. Any
// other read error is reported loudly and the master is treated as empty, in
// which case the returned flag is set.
func (p *Pipeline) read(ctx context.Context, s store.Store) (*records.Table, bool) {
	existing, err := s.Read(ctx)

	switch {
	case errors.Is(err, store.ErrNotFound):
		p.log.WithField("master", s.String()).Infof("no existing master - creating new master %v", s)
		return nil, false

	case err != nil:
		p.log.WithField("master", s.String()).WithError(err).
			Errorf("could not read existing master %v - continuing with an EMPTY master, prior history will be replaced", s)
		return nil, true

	default:
		p.log.WithField("master", s.String()).Infof("loaded existing master with %v records", existing.Len())
		return existing, false
	}
}

func (p *Pipeline) record(ctx context.Context, run audit.Run) {
	if p.Recorder == nil {
		return
	}

	run.Finished = p.Now()
	if err := p.Recorder.Record(ctx, run); err != nil {
		p.log.WithError(err).Warnf("failed to record run %v", run.ID)
	}
}
