package main

import (
	"github.com/spf13/cobra"

	"snsnotify/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var development bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the notification daemon in the foreground",
		Long: `Run the notification daemon in the foreground. The daemon serves the
HTTP API and consumes the configured message sources until interrupted.
Send SIGHUP to reload notification settings from the configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			level := ""
			if ctx.logLevelFlag != nil {
				level = *ctx.logLevelFlag
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				ConfigPath:  ctx.configPath,
				LogLevel:    level,
				Development: development,
			})
		},
	}
	cmd.Flags().BoolVar(&development, "dev", false, "Use development logging (source locations, debug level)")
	return cmd
}
