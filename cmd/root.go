// Package cmd implements the voxlog CLI.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/journalkit/voxlog/internal/config"
)

var (
	configPath string
	verbose    bool
)

// Execute runs the root command.
func Execute() {
	root := &cobra.Command{
		Use:   "voxlog",
		Short: "Personal voice-journaling assistant",
		Long: "voxlog ingests voice notes from Telegram, transcribes and embeds them,\n" +
			"and answers questions about your past entries with cited sources.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default voxlog.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		gatewayCmd(),
		backfillCmd(),
		queryCmd(),
		doctorCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return "voxlog.yaml"
}

func loadConfig() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}
