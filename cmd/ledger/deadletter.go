package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var errNoDeadLetterStore = errors.New("dead letters are only stored with DEAD_LETTER_BACKEND=redis")

func newDeadLetterCmd(root *rootOptions) *cobra.Command {
	deadLetterCmd := &cobra.Command{
		Use:   "deadletter",
		Short: "Inspect and replay events whose delivery was abandoned",
	}

	var listLimit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			if a.deadLetter == nil {
				return errNoDeadLetterStore
			}

			records, err := a.deadLetter.List(cmd.Context(), listLimit)
			if err != nil {
				return err
			}

			if root.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), records)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FAILED AT\tEVENT\tTYPE\tPARTITION\tCAUSE")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.FailedAt.Format(time.RFC3339), r.EventID, r.EventType, r.PartitionKey, truncate(r.Cause, 60))
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().IntVar(&listLimit, "limit", 100, "Maximum number of records")

	var replayLimit int
	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Project dead-lettered events again and drop the ones that succeed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			if a.deadLetter == nil {
				return errNoDeadLetterStore
			}

			replayed, failed, err := a.deadLetter.Replay(cmd.Context(), a.channel, replayLimit)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d events, %d still failing\n", replayed, failed)
			return nil
		},
	}
	replayCmd.Flags().IntVar(&replayLimit, "limit", 100, "Maximum number of records to replay")

	deadLetterCmd.AddCommand(listCmd, replayCmd)
	return deadLetterCmd
}
