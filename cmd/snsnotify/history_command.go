package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"snsnotify/internal/build"
	"snsnotify/internal/store"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "history <job>",
		Short: "Show recorded builds of a job, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				records, err := st.ListBuilds(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					if records == nil {
						records = []build.Record{}
					}
					return writeJSON(cmd, records)
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintf(out, "No builds recorded for %s\n", args[0])
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						strconv.FormatInt(rec.Number, 10),
						recordStatus(rec),
						formatDuration(rec.DurationMillis),
						formatTime(rec.CompletedAt),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Build", "Result", "Duration", "Completed"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
					isTerminal(out),
				))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of builds to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print builds as JSON")
	return cmd
}

func recordStatus(rec build.Record) string {
	if rec.Building {
		return "BUILDING"
	}
	if !rec.Result.Present() {
		return "-"
	}
	return string(rec.Result)
}

func formatDuration(millis int64) string {
	if millis <= 0 {
		return "-"
	}
	return (time.Duration(millis) * time.Millisecond).Round(time.Second).String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
