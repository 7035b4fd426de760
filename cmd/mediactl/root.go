package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-content-conversions/internal/logging"
)

type options struct {
	logLevel string
	server   string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "mediactl",
		Short:         "Inspect and run media conversions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logging.Options{Level: opts.logLevel, Output: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level")
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "Conversion service URL")

	rootCmd.AddCommand(newWidthsCommand())
	rootCmd.AddCommand(newDriversCommand())
	rootCmd.AddCommand(newConvertCommand())
	rootCmd.AddCommand(newSubmitCommand(opts))

	return rootCmd
}
