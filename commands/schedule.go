package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron"
	"github.com/spf13/pflag"
)

var ScheduleCmd = Schedule{}

// Schedule runs the monthly upload and the master update on a cron schedule
// until interrupted.
type Schedule struct {
	spec      string
	immediate bool
	usage     bool

	running sync.Mutex
}

func (cmd *Schedule) Name() string {
	return "schedule"
}

func (cmd *Schedule) Description() string {
	return "Runs the monthly upload and master update on a schedule"
}

func (cmd *Schedule) Usage() string {
	return "[--cron <spec>] [--now] [--usage-events]"
}

func (cmd *Schedule) Help() string {
	return strings.Join([]string{
		"Runs 'monthly' (which also updates the year and all-years masters) on a cron schedule",
		"until interrupted. The schedule has six fields (seconds first) and defaults to the",
		"'schedule' setting in the configuration file, i.e. 06:00 and 18:00 every day.",
		"",
		"A run that is still in progress when the next one is due is not overlapped.",
		"",
		"  Examples:",
		"    nemo-app-drive schedule",
		`    nemo-app-drive schedule --cron "0 30 7 * * *" --now --usage-events`,
	}, "\n")
}

func (cmd *Schedule) Flags(flagset *pflag.FlagSet) {
	flagset.StringVar(&cmd.spec, "cron", cmd.spec, "Cron schedule (seconds minutes hours day-of-month month day-of-week)")
	flagset.BoolVar(&cmd.immediate, "now", cmd.immediate, "Also runs once on startup")
	flagset.BoolVar(&cmd.usage, "usage-events", cmd.usage, "Also uploads the usage events for the current month")
}

func (cmd *Schedule) Execute(ctx context.Context, options *Options) error {
	spec := cmd.spec
	if spec == "" {
		spec = options.conf.Schedule
	}

	schedule, err := cron.Parse(spec)
	if err != nil {
		return fmt.Errorf("invalid schedule '%v' (%v)", spec, err)
	}

	c := cron.New()
	c.Schedule(schedule, cron.FuncJob(func() {
		cmd.run(ctx, options)
		infof(options.log, "next run at %v", schedule.Next(options.now()).Format("2006-01-02 15:04:05"))
	}))

	if cmd.immediate {
		cmd.run(ctx, options)
	}

	infof(options.log, "schedule '%v' - next run at %v", spec, schedule.Next(options.now()).Format("2006-01-02 15:04:05"))

	c.Start()
	defer c.Stop()

	<-ctx.Done()

	infof(options.log, "schedule stopped")

	return nil
}

func (cmd *Schedule) run(ctx context.Context, options *Options) {
	if !cmd.running.TryLock() {
		warnf(options.log, "previous run still in progress - skipping")
		return
	}

	defer cmd.running.Unlock()

	if ctx.Err() != nil {
		return
	}

	monthly := Monthly{}
	if err := monthly.Execute(ctx, options); err != nil {
		options.log.WithError(err).Errorf("scheduled %v failed", monthly.Name())
	}

	if cmd.usage {
		events := UsageEventsCmd
		events.month = ""
		events.all = false

		if err := events.Execute(ctx, options); err != nil {
			options.log.WithError(err).Errorf("scheduled %v failed", events.Name())
		}
	}
}
