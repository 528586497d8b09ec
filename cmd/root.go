// Package cmd provides the command-line interface of cachesim.
package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// Environment variables that provide defaults. They can be set in a .env file
// in the working directory.
const (
	envLogLevel    = "CACHESIM_LOG"
	envMonitorPort = "CACHESIM_MONITOR_PORT"
)

// NewRootCommand creates the cachesim command with all its subcommands.
func NewRootCommand() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "cachesim",
		Short: "Simulate CPU caches over memory address traces",
		Long: `cachesim runs a trace of memory addresses through direct-mapped, ` +
			`fully-associative and set-associative caches and reports how ` +
			`many accesses hit.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("log") {
				if env := os.Getenv(envLogLevel); env != "" {
					logLevel = env
				}
			}

			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}

			logrus.SetLevel(level)
			logrus.SetOutput(cmd.ErrOrStderr())

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn",
		"Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newReportCommand())

	return rootCmd
}

// Execute loads .env, runs the command given on the command line and exits.
func Execute() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("Cannot load .env")
	}

	if err := NewRootCommand().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
