// Command snsnotifyd runs the snsnotify daemon without the CLI front end,
// for service managers that expect a dedicated binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"snsnotify/internal/config"
	"snsnotify/internal/daemonrun"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// runFunc is the daemon entry point; tests replace it.
type runFunc func(ctx context.Context, cfg *config.Config, opts daemonrun.Options) error

func newRootCommand() *cobra.Command {
	return buildRootCommand(daemonrun.Run)
}

func buildRootCommand(run runFunc) *cobra.Command {
	var configPath string
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:           "snsnotifyd",
		Short:         "Run the snsnotify daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolved, _, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cmd.Context(), cfg, daemonrun.Options{
				ConfigPath:  resolved,
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Use development logging (source locations, debug level)")
	return cmd
}
