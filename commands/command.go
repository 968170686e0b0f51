package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nemo-facility/nemo-app-drive/audit"
	"github.com/nemo-facility/nemo-app-drive/config"
	"github.com/nemo-facility/nemo-app-drive/drive"
	"github.com/nemo-facility/nemo-app-drive/nemo"
	"github.com/nemo-facility/nemo-app-drive/pipeline"
	"github.com/nemo-facility/nemo-app-drive/store"
)

const APP = "nemo-app-drive"

// Command is a single nemo-app-drive sub-command.
type Command interface {
	Name() string
	Description() string
	Usage() string
	Help() string
	Flags(*pflag.FlagSet)
	Execute(ctx context.Context, options *Options) error
}

// Options holds the flags shared by every command. Values that are not set on
// the command line are taken from the environment and then from the
// configuration file.
type Options struct {
	Config   string
	DotEnv   string
	LogLevel string
	DryRun   bool

	Workdir     string
	Credentials string
	URL         string
	Token       string
	ParentID    string
	Location    string
	StartYear   int
	Lookback    int

	AuditDSN     string
	LogSheet     string
	LogRange     string
	LogRetention uint
	NoLog        bool
	Pushgateway  string

	conf   *config.Config
	log    log.FieldLogger
	drive  drive.Drive
	google *http.Client
	now    func() time.Time
	out    io.Writer
}

func NewOptions() *Options {
	return &Options{
		Config:       DEFAULT_CONFIG,
		DotEnv:       ".env",
		LogLevel:     log.InfoLevel.String(),
		Workdir:      DEFAULT_WORKDIR,
		Credentials:  DEFAULT_CREDENTIALS,
		URL:          config.DefaultNEMOURL,
		StartYear:    config.DefaultStartYear,
		Lookback:     config.DefaultLookbackDays,
		LogRange:     audit.DefaultLogRange,
		LogRetention: config.DefaultLogRetention,
		now:          time.Now,
		out:          os.Stdout,
	}
}

// Flags registers the options as persistent flags of the root command.
func (o *Options) Flags(flagset *pflag.FlagSet) {
	flagset.StringVar(&o.Config, "config", o.Config, "Configuration file path")
	flagset.StringVar(&o.DotEnv, "env-file", o.DotEnv, "Optional .env file with NEMO_TOKEN and GDRIVE_PARENT_ID")
	flagset.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level (debug, info, warn, error)")
	flagset.BoolVar(&o.DryRun, "dryrun", o.DryRun, "Fetches and merges without writing to Google Drive or the audit log")

	flagset.StringVar(&o.Workdir, "workdir", o.Workdir, "Directory for working files (tokens, audit database, etc)")
	flagset.StringVar(&o.Credentials, "credentials", o.Credentials, "Path for the Google 'credentials.json' file")
	flagset.StringVar(&o.URL, "url", o.URL, "NEMO base URL")
	flagset.StringVar(&o.Token, "token", o.Token, "NEMO API token")
	flagset.StringVar(&o.ParentID, "parent-id", o.ParentID, "Google Drive parent folder ID")
	flagset.StringVar(&o.Location, "location", o.Location, "Output location (gdrive://<folder-id>, file:///<dir> or s3://<bucket>/<prefix>). Defaults to the Google Drive parent folder")
	flagset.IntVar(&o.StartYear, "start-year", o.StartYear, "First year of billing data")
	flagset.IntVar(&o.Lookback, "lookback-days", o.Lookback, "Number of days of master records replaced on each update")

	flagset.StringVar(&o.AuditDSN, "audit-db", o.AuditDSN, "Audit database (postgres:// DSN or SQLite file). Defaults to <workdir>/nemo-app-drive.db")
	flagset.StringVar(&o.LogSheet, "log-sheet", o.LogSheet, "Google Sheets spreadsheet URL for the run log")
	flagset.StringVar(&o.LogRange, "log-range", o.LogRange, fmt.Sprintf("Spreadsheet range for the run log. Defaults to %s", audit.DefaultLogRange))
	flagset.UintVar(&o.LogRetention, "log-retention", o.LogRetention, fmt.Sprintf("Log sheet records older than 'log-retention' days are automatically pruned. Defaults to %v", config.DefaultLogRetention))
	flagset.BoolVar(&o.NoLog, "no-log", o.NoLog, "Disables the audit log")
	flagset.StringVar(&o.Pushgateway, "pushgateway", o.Pushgateway, "Prometheus Pushgateway URL for run metrics")
}

// load resolves the configuration: command line flags, then NEMO_* environment
// variables (including a .env file), then the configuration file, then the
// defaults.
func (o *Options) load(flagset *pflag.FlagSet) error {
	if err := config.LoadDotEnv(o.DotEnv); err != nil {
		return err
	}

	if err := config.MapEnvVarToFlag(config.Env, flagset); err != nil {
		return err
	}

	if err := config.SetFlagsFromEnv(flagset, config.EnvPrefix); err != nil {
		return err
	}

	o.log = setupLogger(o.LogLevel)

	conf := config.Default(o.Workdir, o.Credentials)
	if err := conf.Load(o.Config); err != nil {
		return err
	}

	changed(flagset, "workdir", &conf.Workdir, o.Workdir)
	changed(flagset, "credentials", &conf.Google.Credentials, o.Credentials)
	changed(flagset, "url", &conf.NEMO.URL, o.URL)
	changed(flagset, "token", &conf.NEMO.Token, o.Token)
	changed(flagset, "parent-id", &conf.Google.ParentID, o.ParentID)
	changed(flagset, "location", &conf.Master.Location, o.Location)
	changed(flagset, "start-year", &conf.Master.StartYear, o.StartYear)
	changed(flagset, "lookback-days", &conf.Master.LookbackDays, o.Lookback)
	changed(flagset, "audit-db", &conf.Audit.DSN, o.AuditDSN)
	changed(flagset, "log-sheet", &conf.Audit.Spreadsheet, o.LogSheet)
	changed(flagset, "log-range", &conf.Audit.LogRange, o.LogRange)
	changed(flagset, "log-retention", &conf.Audit.Retention, int(o.LogRetention))
	changed(flagset, "pushgateway", &conf.Audit.Pushgateway, o.Pushgateway)

	if conf.Audit.DSN == "" {
		conf.Audit.DSN = filepath.Join(conf.Workdir, APP+".db")
	}

	o.conf = conf

	debugf(o.log, "configuration - NEMO:%v  location:%v  lookback:%vd  audit:%v", conf.NEMO.URL, conf.Location(), conf.Master.LookbackDays, conf.Audit.DSN)

	return nil
}

func changed[T any](flagset *pflag.FlagSet, name string, field *T, value T) {
	if f := flagset.Lookup(name); f != nil && f.Changed {
		*field = value
	}
}

func (o *Options) source() (nemo.Source, error) {
	if strings.TrimSpace(o.conf.NEMO.Token) == "" {
		return nil, fmt.Errorf("missing NEMO API token - set NEMO_TOKEN or use --token")
	}

	return nemo.NewClient(o.conf.NEMO.URL, o.conf.NEMO.Token, o.log, nemo.WithRateLimit(o.conf.NEMO.Rate, o.conf.NEMO.Burst)), nil
}

// authorise returns an HTTP client for the Google APIs.
func (o *Options) authorise(ctx context.Context) (*http.Client, error) {
	if o.google == nil {
		tokens := filepath.Join(o.conf.Workdir, ".google")
		client, err := drive.Authorize(ctx, o.conf.Google.Credentials, tokens, drive.DRIVE, drive.SHEETS)
		if err != nil {
			return nil, fmt.Errorf("authentication/authorization error (%v)", err)
		}

		o.google = client
	}

	return o.google, nil
}

// gdrive returns the Google Drive client. A dry run uses an in-memory drive.
func (o *Options) gdrive(ctx context.Context) (drive.Drive, error) {
	if o.drive != nil {
		return o.drive, nil
	}

	if o.DryRun {
		infof(o.log, "dry run - Google Drive uploads are kept in memory")
		o.drive = drive.NewMemory()
		return o.drive, nil
	}

	client, err := o.authorise(ctx)
	if err != nil {
		return nil, err
	}

	d, err := drive.NewService(ctx, client, o.log)
	if err != nil {
		return nil, err
	}

	o.drive = d

	return d, nil
}

// location returns the output location. A dry run writes to the in-memory
// drive instead.
func (o *Options) location() (string, error) {
	if o.DryRun {
		return "gdrive://" + o.root(), nil
	}

	location := o.conf.Location()
	if location == "" {
		return "", fmt.Errorf("no output location - set GDRIVE_PARENT_ID or use --parent-id or --location")
	}

	return location, nil
}

// root is the Google Drive folder for the usage event workbooks.
func (o *Options) root() string {
	if o.conf.Google.ParentID != "" {
		return o.conf.Google.ParentID
	}

	return "dryrun"
}

// listDryRun logs the files written to the in-memory drive.
func (o *Options) listDryRun() {
	if m, ok := o.drive.(*drive.Memory); ok {
		for _, f := range m.List(o.root()) {
			infof(o.log, "dry run - wrote %v", f)
		}
	}
}

func (o *Options) stores(ctx context.Context, location string) (store.Options, error) {
	options := store.Options{Log: o.log}

	if strings.HasPrefix(location, "gdrive://") {
		d, err := o.gdrive(ctx)
		if err != nil {
			return options, err
		}

		options.Drive = d
	}

	return options, nil
}

// recorder returns the audit log for the configured database, log sheet and
// Pushgateway. A dry run records to memory only.
func (o *Options) recorder(ctx context.Context) (audit.Recorder, func(), error) {
	if o.DryRun || o.NoLog {
		return &audit.Memory{}, func() {}, nil
	}

	recorders := audit.Recorders{}
	closers := []func(){}

	db, err := audit.Open(o.conf.Audit.DSN)
	if err != nil {
		return nil, nil, err
	}

	recorders = append(recorders, db)
	closers = append(closers, func() { db.Close() })

	if url := o.conf.Audit.Spreadsheet; url != "" {
		client, err := o.authorise(ctx)
		if err != nil {
			db.Close()
			return nil, nil, err
		}

		sheet, err := audit.NewSheetsLog(ctx, client, url, o.conf.Audit.LogRange, uint(o.conf.Audit.Retention), o.log)
		if err != nil {
			db.Close()
			return nil, nil, err
		}

		recorders = append(recorders, sheet)
	}

	if url := o.conf.Audit.Pushgateway; url != "" {
		recorders = append(recorders, audit.NewPushgateway(url, APP))
	}

	closer := func() {
		for _, f := range closers {
			f()
		}
	}

	return recorders, closer, nil
}

// pipeline builds the billing pipeline for the configured location.
func (o *Options) pipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	source, err := o.source()
	if err != nil {
		return nil, nil, err
	}

	location, err := o.location()
	if err != nil {
		return nil, nil, err
	}

	stores, err := o.stores(ctx, location)
	if err != nil {
		return nil, nil, err
	}

	recorder, closer, err := o.recorder(ctx)
	if err != nil {
		return nil, nil, err
	}

	p := pipeline.New(source, location, stores, o.log)
	p.Lookback = o.conf.Lookback()
	p.StartYear = o.conf.Master.StartYear
	p.Recorder = recorder
	p.Now = o.now

	return p, closer, nil
}

// master opens a master table: 'all' for the all-years master, a year for the
// year master or any other store location as is.
func (o *Options) master(ctx context.Context, which string) (store.Store, error) {
	which = strings.TrimSpace(which)
	location := which

	if year, err := strconv.Atoi(which); err == nil || which == "all" {
		base, err := o.location()
		if err != nil {
			return nil, err
		}

		p := pipeline.New(nil, base, store.Options{}, o.log)
		if which == "all" {
			location = p.AllMaster()
		} else {
			location = p.YearMaster(year)
		}
	}

	if location == "" {
		return nil, fmt.Errorf("missing master - expected 'all', a year or a location")
	}

	stores, err := o.stores(ctx, location)
	if err != nil {
		return nil, err
	}

	return store.Open(location, stores)
}

// Cobra wraps a command as a cobra sub-command.
func Cobra(c Command, options *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   c.Name() + " " + c.Usage(),
		Short: c.Description(),
		Long:  c.Help(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := options.load(cmd.Flags()); err != nil {
				return err
			}

			return c.Execute(cmd.Context(), options)
		},
	}

	c.Flags(cmd.Flags())

	return cmd
}

func setupLogger(level string) log.FieldLogger {
	logger := log.StandardLogger()

	if l, err := log.ParseLevel(level); err != nil {
		logger.WithError(err).Warnf("invalid log level '%v' - using %v", level, logger.GetLevel())
	} else {
		logger.SetLevel(l)
	}

	return logger.WithField("app", APP)
}

func debugf(logger log.FieldLogger, format string, args ...any) {
	logger.Debugf(format, args...)
}

func infof(logger log.FieldLogger, format string, args ...any) {
	logger.Infof(format, args...)
}

func warnf(logger log.FieldLogger, format string, args ...any) {
	logger.Warnf(format, args...)
}
