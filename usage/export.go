package usage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nemo-facility/nemo-app-drive/drive"
	"github.com/nemo-facility/nemo-app-drive/nemo"
	"github.com/nemo-facility/nemo-app-drive/period"
	"github.com/nemo-facility/nemo-app-drive/records"
	"github.com/nemo-facility/nemo-app-drive/workbook"
)

const Folder = "Usage_Events"

// Exporter uploads the usage event workbooks to <root>/<year>/Usage_Events/<mm>.
type Exporter struct {
	Source    nemo.Source
	Drive     drive.Drive
	Root      string
	MaxEvents int

	// Tool and user names. Fetched from the source if nil.
	Lookups *Lookups

	log log.FieldLogger
}

func NewExporter(source nemo.Source, d drive.Drive, root string, logger log.FieldLogger) *Exporter {
	if logger == nil {
		logger = log.StandardLogger()
	}

	return &Exporter{
		Source:    source,
		Drive:     d,
		Root:      root,
		MaxEvents: DefaultMaxEvents,
		log:       logger,
	}
}

// Export fetches the usage events once and uploads the workbooks for each
// month. A failed month does not stop the remaining months. Returns the
// uploaded file paths.
func (x *Exporter) Export(ctx context.Context, months ...period.Month) ([]string, error) {
	events, lookups, err := x.fetch(ctx)
	if err != nil {
		return nil, err
	}

	uploaded := []string{}
	var errs []error

	for _, m := range months {
		files, err := x.month(ctx, events, lookups, m)
		uploaded = append(uploaded, files...)
		if err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", m, err))
		}
	}

	return uploaded, errors.Join(errs...)
}

func (x *Exporter) fetch(ctx context.Context) (*records.Table, *Lookups, error) {
	var events *records.Table
	lookups := x.Lookups

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		if events, err = x.Source.UsageEvents(gctx); err != nil {
			return fmt.Errorf("error fetching usage events (%w)", err)
		}
		return nil
	})

	if lookups == nil {
		g.Go(func() (err error) {
			lookups, err = FetchLookups(gctx, x.Source)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	x.log.WithFields(log.Fields{"tools": len(lookups.Tools), "users": len(lookups.Users)}).Infof("fetched %v usage events", events.Len())

	return events, lookups, nil
}

func (x *Exporter) month(ctx context.Context, events *records.Table, lookups *Lookups, m period.Month) ([]string, error) {
	logger := x.log.WithField("month", m.String())

	table := Stages(events, m.Year, m.Month, x.MaxEvents, lookups, logger)
	if table.Len() == 0 {
		logger.Warnf("no usage events with run data for %v, skipping upload", m)
		return nil, nil
	}

	folder := []string{strconv.Itoa(m.Year), Folder, fmt.Sprintf("%02d", int(m.Month))}
	parent, err := drive.Path(ctx, x.Drive, x.Root, folder...)
	if err != nil {
		return nil, err
	}

	uploaded := []string{}
	for _, group := range ByTool(table) {
		name := FileName(group.Tool, m.Year, m.Month)

		var b bytes.Buffer
		if err := workbook.Write(&b, workbook.DefaultSheet, group.Events); err != nil {
			return uploaded, fmt.Errorf("error creating %v (%w)", name, err)
		}

		if _, err := x.Drive.Upload(ctx, parent, name, drive.XLSXMimeType, &b); err != nil {
			return uploaded, fmt.Errorf("error uploading %v (%w)", name, err)
		}

		logger.WithField("tool", group.Tool).Infof("uploaded %v usage events to %v", group.Events.Len(), name)

		uploaded = append(uploaded, fmt.Sprintf("%v/%v/%02d/%v", m.Year, Folder, int(m.Month), name))
	}

	return uploaded, nil
}

// Month returns the month to export for 'now': the current month, or the
// previous month on the 1st.
func Month(now time.Time) period.Month {
	r := period.CurrentMonth(now)

	return period.Month{Year: r.Start.Year(), Month: r.Start.Month()}
}
