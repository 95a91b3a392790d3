package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snsnotify/internal/build"
	"snsnotify/internal/jobfile"
	"snsnotify/internal/store"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage per-job notifier attachments",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsSetCommand(ctx))
	jobsCmd.AddCommand(newJobsRemoveCommand(ctx))
	jobsCmd.AddCommand(newJobsImportCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs with the notifier attached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				jobs, err := st.ListJobs(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					if jobs == nil {
						jobs = []build.JobConfig{}
					}
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs attached")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.Job,
						orDefault(job.TopicARN),
						yesNo(job.SubjectTemplate != ""),
						yesNo(job.MessageTemplate != ""),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Job", "Topic", "Subject", "Message"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
					isTerminal(out),
				))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job>",
		Short: "Show one job's notifier attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				job, err := st.GetJob(cmd.Context(), args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("job %q has no notifier attached", args[0])
				}
				if err != nil {
					return err
				}
				return writeJSON(cmd, job)
			})
		},
	}
}

func newJobsSetCommand(ctx *commandContext) *cobra.Command {
	var topicARN, subject, message string
	cmd := &cobra.Command{
		Use:   "set <job>",
		Short: "Attach the notifier to a job or update its settings",
		Long: `Attach the notifier to a job or update its settings. Only the flags
given are changed; pass an empty value to fall back to the global default.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			return ctx.withStore(func(st *store.Store) error {
				job, err := st.GetJob(cmd.Context(), name)
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					return err
				}
				job.Job = name
				flags := cmd.Flags()
				if flags.Changed("topic") {
					job.TopicARN = strings.TrimSpace(topicARN)
				}
				if flags.Changed("subject") {
					job.SubjectTemplate = subject
				}
				if flags.Changed("message") {
					job.MessageTemplate = message
				}
				if err := st.PutJob(cmd.Context(), job); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Notifier attached to %s\n", name)
				manifest := jobfile.Manifest{Jobs: []build.JobConfig{job}}
				for _, warning := range manifest.Warnings() {
					fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: %s\n", warning)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&topicARN, "topic", "", "Topic ARN (empty uses the global default)")
	cmd.Flags().StringVar(&subject, "subject", "", "Subject template")
	cmd.Flags().StringVar(&message, "message", "", "Message template")
	return cmd
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <job>",
		Aliases: []string{"rm"},
		Short:   "Detach the notifier from a job",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				err := st.DeleteJob(cmd.Context(), args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("job %q has no notifier attached", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Notifier detached from %s\n", args[0])
				return nil
			})
		},
	}
}

func newJobsImportCommand(ctx *commandContext) *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import job attachments from a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := jobfile.LoadFromFile(args[0])
			if err != nil {
				return err
			}
			for _, warning := range manifest.Warnings() {
				fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: %s\n", warning)
			}
			return ctx.withStore(func(st *store.Store) error {
				res, err := jobfile.Apply(cmd.Context(), st, manifest, prune)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d job(s)\n", len(res.Written))
				if len(res.Removed) > 0 {
					fmt.Fprintf(out, "Detached: %s\n", strings.Join(res.Removed, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "Detach stored jobs missing from the manifest")
	return cmd
}

func orDefault(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(default)"
	}
	return value
}
