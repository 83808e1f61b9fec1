package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "ragcache",
		Short:         "ragcache: cached retrieval-augmented question answering",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults plus RAGCACHE_* env when empty)")

	root.AddCommand(
		newServeCmd(&configPath),
		newAskCmd(&configPath),
		newCacheCmd(&configPath),
		newStatsCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
