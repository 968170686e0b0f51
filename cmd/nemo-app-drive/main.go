package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nemo-facility/nemo-app-drive/commands"
)

var cli = []commands.Command{
	&commands.VersionCmd,
	&commands.AuthoriseCmd,
	&commands.MonthlyCmd,
	&commands.BackfillCmd,
	&commands.CreateMasterCmd,
	&commands.UpdateMasterCmd,
	&commands.UsageEventsCmd,
	&commands.SanityCheckCmd,
	&commands.CheckDuplicatesCmd,
	&commands.InvalidDatesCmd,
	&commands.CompareCmd,
	&commands.ScheduleCmd,
	&commands.HistoryCmd,
	&commands.ReservationsCmd,
	&commands.GetCmd,
	&commands.PutCmd,
}

var options = commands.NewOptions()

var rootCmd = &cobra.Command{
	Use:           commands.APP,
	Short:         "Publishes NEMO billing and usage data to Google Drive",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	options.Flags(rootCmd.PersistentFlags())

	for _, c := range cli {
		rootCmd.AddCommand(commands.Cobra(c, options))
	}

	if err := rootCmd.ExecuteContext(setupSignals()); err != nil {
		log.WithError(err).Fatalf("%v", err)
	}
}

func setupSignals() context.Context {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := <-sigs
		log.Infof("got signal %s, shutting down", sig)
		cancel()
	}()

	return ctx
}
