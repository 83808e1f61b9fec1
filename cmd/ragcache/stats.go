package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pario-ai/ragcache/pkg/budget"
	"github.com/pario-ai/ragcache/pkg/config"
	"github.com/pario-ai/ragcache/pkg/tracker"
)

func newStatsCmd(configPath *string) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show token usage of upstream calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}

			summaries, err := tr.Summary(cmd.Context(), from)
			if err != nil {
				return err
			}
			if cfg.Usage.Budget.MaxTokens > 0 {
				st, err := budget.New(cfg.Usage.Budget, tr).Status(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Budget (%s): %s of %s tokens used, %s remaining\n\n",
					st.Policy.Period,
					humanize.Comma(st.Used),
					humanize.Comma(st.Policy.MaxTokens),
					humanize.Comma(st.Remaining))
			}

			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tMODEL\tCALLS\tPROMPT\tCOMPLETION\tTOTAL\tAVG LATENCY")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					s.Kind, s.Model,
					humanize.Comma(int64(s.RequestCount)),
					humanize.Comma(int64(s.TotalPrompt)),
					humanize.Comma(int64(s.TotalCompletion)),
					humanize.Comma(int64(s.TotalTokens)),
					(time.Duration(s.AvgLatencyMs) * time.Millisecond).String())
			}
			return w.Flush()
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "only include calls newer than this (e.g. 24h)")
	return cmd
}
