package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"peerlab-bird/pkg/journal"
)

func newHistoryCmd(o *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sync runs from the state database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := o.cfg.JournalPath()
			if path == "" {
				return errors.New("history needs --journal or --state-db (env JOURNAL, STATE_DB)")
			}
			j, err := journal.Open(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer j.Close()
			entries, err := j.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			last, ok, err := j.LastChange(cmd.Context())
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(cmd.OutOrStdout(), "last change: %s run %s (%s)\n", last.Time.Format(time.RFC3339), last.RunID, last.Detail)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "last change: never")
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tRUN\tCHANGED\tCLAUSES\tSKIPPED\tDIGEST\tDETAIL")
			for _, e := range entries {
				digest := e.Digest
				if len(digest) > 12 {
					digest = digest[:12]
				}
				fmt.Fprintf(tw, "%s\t%s\t%v\t%d\t%d\t%s\t%s\n",
					e.Time.Format(time.RFC3339), e.RunID, e.Changed, e.Clauses, e.Skipped, digest, e.Detail)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show (0 = all)")
	return cmd
}
