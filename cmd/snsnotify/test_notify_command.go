package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snsnotify/internal/build"
	"snsnotify/internal/notifier"
	"snsnotify/internal/render"
	"snsnotify/internal/settings"
)

const testNotifyJob = "snsnotify-test"

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	var topicARN string
	var result string
	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Publish a test notification to verify credentials and topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			parsed, err := build.ParseResult(result)
			if err != nil {
				return err
			}
			if !parsed.Present() {
				parsed = build.ResultSuccess
			}
			logger := ctx.logger()
			dispatcher := notifier.NewDispatcher(ctx.factory, render.New(render.ProcessEnvironment(), logger), logger)
			ev := build.Event{
				Job:         testNotifyJob,
				Number:      1,
				Phase:       build.PhaseCompleted,
				Result:      parsed,
				DisplayName: testNotifyJob + " (test notification)",
			}
			job := build.JobConfig{Job: testNotifyJob, TopicARN: strings.TrimSpace(topicARN)}

			outcome := dispatcher.Dispatch(cmd.Context(), job, settings.FromConfig(cfg), ev, notifier.WriterSink(cmd.OutOrStdout()))
			if outcome.Kind != notifier.KindPublished {
				return fmt.Errorf("test notification not delivered: %s", outcome)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Message ID: %s\n", outcome.MessageID)
			return nil
		},
	}
	cmd.Flags().StringVar(&topicARN, "topic", "", "Topic ARN (defaults to notifications.default_topic_arn)")
	cmd.Flags().StringVar(&result, "result", "", "Result to report in the test build (default SUCCESS)")
	return cmd
}
