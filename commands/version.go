package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
)

// VERSION is set at build time with -ldflags "-X .../commands.VERSION=v1.0.0".
var VERSION = "v0.0.0"

// VersionCmd is an initialized Version command for the main() command list
var VersionCmd = Version{}

// Version is a CLI command implementation that displays the version information.
type Version struct {
}

// Returns 'version'
func (c *Version) Name() string {
	return "version"
}

// Description returns the 'version' command short form help
func (c *Version) Description() string {
	return "Displays the current version"
}

// Usage returns the string describing the additional options for the 'version' command
func (c *Version) Usage() string {
	return ""
}

// Help returns the 'version' command long form help
func (c *Version) Help() string {
	return fmt.Sprintf("Displays the %s version in the format v<major>.<minor>.<build> e.g. v1.00.10", APP)
}

func (c *Version) Flags(flagset *pflag.FlagSet) {
}

// Execute prints the current version
func (c *Version) Execute(ctx context.Context, options *Options) error {
	fmt.Printf("%s\n", VERSION)

	return nil
}
