package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/nemo-facility/nemo-app-drive/audit"
)

var HistoryCmd = History{
	limit: 20,
}

// History lists the most recent runs from the audit database.
type History struct {
	limit int
}

func (cmd *History) Name() string {
	return "history"
}

func (cmd *History) Description() string {
	return "Lists the most recent master updates from the audit log"
}

func (cmd *History) Usage() string {
	return "[--limit <N>]"
}

func (cmd *History) Help() string {
	return strings.Join([]string{
		"Lists the most recent master updates and rebuilds recorded in the audit database",
		"(--audit-db), newest first, with the merge counts for each run.",
		"",
		"  Examples:",
		"    nemo-app-drive history --limit 50",
		"    nemo-app-drive --audit-db postgres://nemo@localhost/nemo history",
	}, "\n")
}

func (cmd *History) Flags(flagset *pflag.FlagSet) {
	flagset.IntVar(&cmd.limit, "limit", cmd.limit, "Number of runs to list")
}

func (cmd *History) Execute(ctx context.Context, options *Options) error {
	if cmd.limit <= 0 {
		return fmt.Errorf("invalid --limit %v", cmd.limit)
	}

	db, err := audit.Open(options.conf.Audit.DSN)
	if err != nil {
		return err
	}

	defer db.Close()

	runs, err := db.Recent(ctx, cmd.limit)
	if err != nil {
		return err
	}

	printHistory(options.out, runs)

	return nil
}

func printHistory(w io.Writer, runs []audit.Run) {
	if len(runs) == 0 {
		fmt.Fprintf(w, "\n  no runs recorded\n\n")
		return
	}

	fmt.Fprintln(w)
	for _, run := range runs {
		fmt.Fprintf(w, "  %v\n", run)

		if run.Fallback {
			fmt.Fprintf(w, "      existing master could not be read - rebuilt from fetched records\n")
		}

		if run.Error != "" {
			fmt.Fprintf(w, "      %v\n", run.Error)
		}
	}

	fmt.Fprintln(w)
}
