package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snsnotify/internal/build"
	"snsnotify/internal/config"
	"snsnotify/internal/notifier"
	"snsnotify/internal/render"
	"snsnotify/internal/settings"
	"snsnotify/internal/store"
)

type notifyFlags struct {
	job            string
	number         int64
	result         string
	previousResult string
	displayName    string
	url            string
	durationMillis int64
	artifacts      []string
	vars           []string
	topic          string
	subject        string
	message        string
	jsonOutput     bool
}

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Report a build lifecycle event",
		Long: `Report a build lifecycle event and publish a notification when the
notification policy allows it. The process environment is available to
templates, so variables exported by the build script can be referenced as
${NAME}.`,
	}
	notifyCmd.AddCommand(newNotifyPhaseCommand(ctx, build.PhaseStarted))
	notifyCmd.AddCommand(newNotifyPhaseCommand(ctx, build.PhaseCompleted))
	return notifyCmd
}

func newNotifyPhaseCommand(ctx *commandContext, phase build.Phase) *cobra.Command {
	var flags notifyFlags
	cmd := &cobra.Command{
		Use:   strings.ToLower(string(phase)),
		Short: fmt.Sprintf("Report that a build %s", strings.ToLower(string(phase))),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := flags.event(phase)
			if err != nil {
				return err
			}
			return ctx.withConfigStore(func(cfg *config.Config, st *store.Store) error {
				logger := ctx.logger()
				renderer := render.New(render.ProcessEnvironment(), logger)
				dispatcher := notifier.NewDispatcher(ctx.factory, renderer, logger)
				jobs := inlineJobs{base: st, override: flags.jobOverride()}
				svc := notifier.NewService(dispatcher, settings.Static(settings.FromConfig(cfg)), jobs, st, logger)

				sink := notifier.WriterSink(cmd.OutOrStdout())
				if flags.jsonOutput {
					sink = notifier.Discard
				}
				outcome, err := svc.Handle(cmd.Context(), ev, sink)
				if err != nil {
					return err
				}
				if flags.jsonOutput {
					return writeJSON(cmd, outcome)
				}
				if outcome.Kind == notifier.KindSkipped && !dispatcherWarned(outcome.Reason) {
					fmt.Fprintf(cmd.OutOrStdout(), "Notification not sent: %s\n", outcome.Reason)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&flags.job, "job", "j", "", "Job name")
	cmd.Flags().Int64VarP(&flags.number, "number", "n", 0, "Build number")
	if phase == build.PhaseCompleted {
		cmd.Flags().StringVarP(&flags.result, "result", "r", "", "Build result (SUCCESS, UNSTABLE, FAILURE, ABORTED, NOT_BUILT)")
		cmd.Flags().Int64Var(&flags.durationMillis, "duration", 0, "Build duration in milliseconds")
		cmd.Flags().StringArrayVar(&flags.artifacts, "artifact", nil, "Archived artifact path (repeatable)")
	}
	cmd.Flags().StringVar(&flags.previousResult, "previous-result", "", "Result of the previous build, overriding recorded history")
	cmd.Flags().StringVar(&flags.displayName, "display-name", "", "Build display name (default \"<job> #<number>\")")
	cmd.Flags().StringVar(&flags.url, "url", "", "Build URL, absolute or relative to notifications.root_url")
	cmd.Flags().StringArrayVar(&flags.vars, "var", nil, "Build variable KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&flags.topic, "topic", "", "Topic ARN for this invocation (attaches the notifier inline)")
	cmd.Flags().StringVar(&flags.subject, "subject", "", "Subject template for this invocation")
	cmd.Flags().StringVar(&flags.message, "message", "", "Message template for this invocation")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the outcome as JSON")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("number")
	return cmd
}

func (f notifyFlags) event(phase build.Phase) (build.Event, error) {
	result, err := build.ParseResult(f.result)
	if err != nil {
		return build.Event{}, err
	}
	previous, err := build.ParseResult(f.previousResult)
	if err != nil {
		return build.Event{}, err
	}
	vars, err := parseKeyValues(f.vars)
	if err != nil {
		return build.Event{}, err
	}
	ev := build.Event{
		Job:            f.job,
		Number:         f.number,
		Phase:          phase,
		Result:         result,
		PreviousResult: previous,
		DisplayName:    f.displayName,
		URL:            f.url,
		DurationMillis: f.durationMillis,
		ArtifactPaths:  f.artifacts,
		Variables:      vars,
	}
	return ev, ev.Validate()
}

func (f notifyFlags) jobOverride() *build.JobConfig {
	if f.topic == "" && f.subject == "" && f.message == "" {
		return nil
	}
	return &build.JobConfig{
		TopicARN:        strings.TrimSpace(f.topic),
		SubjectTemplate: f.subject,
		MessageTemplate: f.message,
	}
}

// dispatcherWarned reports skip reasons the dispatcher already wrote to the
// sink.
func dispatcherWarned(reason string) bool {
	switch reason {
	case notifier.ReasonNoTopic, notifier.ReasonNoCredentials, notifier.ReasonNoEndpoint:
		return true
	default:
		return false
	}
}

func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q (want KEY=VALUE)", pair)
		}
		out[key] = value
	}
	return out, nil
}

// inlineJobs layers per-invocation flags over the stored job attachment.
// With an override the job counts as attached even if nothing is stored.
type inlineJobs struct {
	base     notifier.JobLookup
	override *build.JobConfig
}

func (j inlineJobs) JobConfig(ctx context.Context, job string) (build.JobConfig, bool, error) {
	stored, attached, err := j.base.JobConfig(ctx, job)
	if err != nil || j.override == nil {
		return stored, attached, err
	}
	stored.Job = job
	if j.override.TopicARN != "" {
		stored.TopicARN = j.override.TopicARN
	}
	if j.override.SubjectTemplate != "" {
		stored.SubjectTemplate = j.override.SubjectTemplate
	}
	if j.override.MessageTemplate != "" {
		stored.MessageTemplate = j.override.MessageTemplate
	}
	return stored, true, nil
}
