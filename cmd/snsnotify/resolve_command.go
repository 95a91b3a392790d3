package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"snsnotify/internal/topic"
)

func newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "resolve <topic-arn>",
		Short:       "Show the region and API endpoint derived from a topic ARN",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := topic.Resolve(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Region:   %s\n", resolved.Region)
			fmt.Fprintf(out, "Endpoint: %s\n", resolved.URL())
			return nil
		},
	}
}
