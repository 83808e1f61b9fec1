package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pario-ai/ragcache/pkg/config"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persistent answer cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			c, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\nEntries:  %s\n", cfg.DBPath, humanize.Comma(stats.Entries))
			return nil
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			c, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			n, err := c.Clear(cmd.Context(), expiredOnly)
			if err != nil {
				return err
			}
			kind := "cache"
			if expiredOnly {
				kind = "expired cache"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s entries cleared.\n", humanize.Comma(n), kind)
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	var showAnswer bool
	hasCmd := &cobra.Command{
		Use:   "has QUESTION",
		Short: "Report whether a question is cached (exact match)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			c, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			entry, ok, err := c.Inspect(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "not cached")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cached %s (%s)\n",
				humanize.Time(entry.CreatedAt), humanize.Bytes(uint64(len(entry.Answer))))
			if showAnswer {
				fmt.Fprintln(cmd.OutOrStdout(), entry.Answer)
			}
			return nil
		},
	}

	hasCmd.Flags().BoolVar(&showAnswer, "show", false, "print the cached answer")

	cmd.AddCommand(statsCmd, clearCmd, hasCmd)
	return cmd
}
