package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/ragcache/pkg/config"
	"github.com/pario-ai/ragcache/pkg/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP query server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if listen != "" {
				cfg.Listen = listen
			}
			logger := newLogger(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error("close", "err", err)
				}
			}()

			logger.Info("starting ragcache",
				"config", *configPath,
				"memory_size", cfg.Cache.MemorySize,
				"db", cfg.DBPath,
				"index", cfg.Index.Backend)
			return server.New(cfg.Listen, a.facade, logger).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "override listen address")
	return cmd
}
