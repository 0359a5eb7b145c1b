package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SampleEnvironment/secop-go/pkg/log"
)

// Version is overridden at build time.
var Version = "dev"

var (
	flagLogLevel string
	flagLogFile  string
)

var rootCmd = &cobra.Command{
	Use:           "secopd",
	Short:         "SECoP node server, client REPL, and config validator",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.Configure(log.Config{Level: flagLogLevel, FilePath: flagLogFile})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "rotating log file path (in addition to stderr)")

	rootCmd.AddCommand(serveCmd, clientCmd, describeCmd)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
