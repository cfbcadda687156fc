package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/journalkit/voxlog/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and local state",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Config file: %s\n", resolveConfigPath())

			cfg, err := loadConfig()
			if err != nil {
				fmt.Printf("  ✗ %v\n", err)
				return fmt.Errorf("configuration is not usable")
			}
			fmt.Printf("  ✓ loaded (timezone %s)\n", cfg.Timezone)

			fmt.Printf("Database: %s\n", cfg.Database)
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			repo, err := store.Open(cfg.Database)
			if err != nil {
				fmt.Printf("  ✗ %v\n", err)
			} else {
				defer repo.Close()
				if count, err := repo.Count(ctx); err != nil {
					fmt.Printf("  ✗ count: %v\n", err)
				} else {
					fmt.Printf("  ✓ open, %d entries\n", count)
				}
				if pending, err := repo.ListMissingEmbedding(ctx, 1000); err == nil && len(pending) > 0 {
					fmt.Printf("  · %d entries awaiting embedding backfill\n", len(pending))
				}
			}

			fmt.Println("Secrets:")
			printKeyCheck("telegram token", cfg.Telegram.Token)
			printKeyCheck("completion api key", cfg.Completion.APIKey)
			printKeyCheck("embedding api key", cfg.Embedding.APIKey)
			printKeyCheck("transcription api key", cfg.Transcription.APIKey)

			if cfg.Archive.Enabled {
				fmt.Printf("Archive: s3://%s/%s (region %s)\n",
					cfg.Archive.Bucket, cfg.Archive.Prefix, cfg.Archive.Region)
				if cfg.Archive.Bucket == "" {
					fmt.Println("  ✗ archive enabled but no bucket configured")
				}
			} else {
				fmt.Println("Archive: disabled")
			}

			return nil
		},
	}
}

func printKeyCheck(name, value string) {
	if value == "" {
		fmt.Printf("  ✗ %s missing\n", name)
	} else {
		fmt.Printf("  ✓ %s set\n", name)
	}
}
