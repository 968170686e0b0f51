// Package config loads the nemo-app-drive configuration from a YAML file, a
// .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "NEMO"

	DefaultSchedule       = "0 0 6,18 * * *"
	DefaultLookbackDays   = 40
	DefaultStartYear      = 2024
	DefaultLogRetention   = 30
	DefaultNEMOURL        = "https://nemo.stanford.edu"
	DefaultRequestsPerSec = 1.0
	DefaultBurst          = 2
)

type Config struct {
	NEMO   NEMO   `yaml:"nemo"`
	Google Google `yaml:"google"`
	Master Master `yaml:"master"`
	Audit  Audit  `yaml:"audit"`

	Schedule string `yaml:"schedule"`
	Workdir  string `yaml:"workdir"`
}

type NEMO struct {
	URL   string  `yaml:"url"`
	Token string  `yaml:"token"`
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

type Google struct {
	Credentials string `yaml:"credentials"`
	ParentID    string `yaml:"parent-id"`
}

type Master struct {
	// gdrive://<folder id>, file:///<dir> or s3://<bucket>/<prefix>. Defaults to
	// the Google Drive parent folder.
	Location     string `yaml:"location"`
	LookbackDays int    `yaml:"lookback-days"`
	StartYear    int    `yaml:"start-year"`
}

type Audit struct {
	DSN         string `yaml:"dsn"`
	Spreadsheet string `yaml:"spreadsheet"`
	LogRange    string `yaml:"log-range"`
	Retention   int    `yaml:"retention-days"`
	Pushgateway string `yaml:"pushgateway"`
}

// Default returns the configuration used when there is no configuration file.
func Default(workdir, credentials string) *Config {
	return &Config{
		NEMO: NEMO{
			URL:   DefaultNEMOURL,
			Rate:  DefaultRequestsPerSec,
			Burst: DefaultBurst,
		},
		Google: Google{
			Credentials: credentials,
		},
		Master: Master{
			LookbackDays: DefaultLookbackDays,
			StartYear:    DefaultStartYear,
		},
		Audit: Audit{
			Retention: DefaultLogRetention,
		},
		Schedule: DefaultSchedule,
		Workdir:  workdir,
	}
}

// Load overlays the YAML file onto the configuration. A missing file is not an
// error.
func (c *Config) Load(file string) error {
	bytes, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	if err := yaml.Unmarshal(bytes, c); err != nil {
		return fmt.Errorf("invalid configuration file %v (%w)", file, err)
	}

	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(file string) error {
	bytes, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(file, bytes, 0600)
}

// Lookback is the merge window for the master updates.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Master.LookbackDays) * 24 * time.Hour
}

// Location returns the master location, defaulting to the Google Drive parent
// folder.
func (c *Config) Location() string {
	if c.Master.Location != "" {
		return c.Master.Location
	}

	if c.Google.ParentID != "" {
		return "gdrive://" + c.Google.ParentID
	}

	return ""
}

// LoadDotEnv loads a .env file into the environment. Variables that are already
// set are not overwritten and a missing file is ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error loading %v (%w)", f, err)
		}
	}

	return nil
}

// Env maps environment variables that do not follow the NEMO_ prefix convention
// onto flags.
var Env = map[string]string{
	"GDRIVE_PARENT_ID": "parent-id",
}

// MapEnvVarToFlag sets the flags in the mapping from the named environment
// variables, unless the flag was set on the command line.
func MapEnvVarToFlag(vars map[string]string, flagset *pflag.FlagSet) error {
	for env, flag := range vars {
		f := flagset.Lookup(flag)
		if f == nil || f.Changed {
			continue
		}

		if v := os.Getenv(env); v != "" {
			if err := f.Value.Set(v); err != nil {
				return fmt.Errorf("failed to set the %s flag: %v", flag, err)
			}
		}
	}

	return nil
}

// SetFlagsFromEnv sets any flag that was not set on the command line from the
// matching environment variable, e.g. NEMO_LOOKBACK_DAYS for --lookback-days.
func SetFlagsFromEnv(flagset *pflag.FlagSet, prefix string) (err error) {
	set := map[string]bool{}
	flagset.Visit(func(f *pflag.Flag) {
		set[f.Name] = true
	})

	flagset.VisitAll(func(f *pflag.Flag) {
		if set[f.Name] {
			return
		}

		key := prefix + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if v := os.Getenv(key); v != "" {
			if e := flagset.Set(f.Name, v); e != nil {
				err = fmt.Errorf("invalid value %q for %s: %v", v, key, e)
			}
		}
	})

	return err
}
