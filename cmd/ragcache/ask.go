package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/ragcache/pkg/config"
)

func newAskCmd(configPath *string) *cobra.Command {
	var (
		repeat     int
		showSource bool
	)

	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a single question through the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cfg.LogLevel)

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			question := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			for i := 0; i < repeat; i++ {
				answer, src, err := a.facade.AnswerWithSource(cmd.Context(), question)
				if err != nil {
					return err
				}
				if showSource {
					fmt.Fprintf(out, "[%s]\n", src)
				}
				fmt.Fprintln(out, answer)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "ask the same question n times")
	cmd.Flags().BoolVar(&showSource, "source", false, "print which cache layer answered")
	return cmd
}
