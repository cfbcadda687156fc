package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/journalkit/voxlog/internal/embedding"
	"github.com/journalkit/voxlog/internal/ingest"
	"github.com/journalkit/voxlog/internal/store"
)

func backfillCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Embed journal entries that are missing a vector",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			repo, err := store.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer repo.Close()

			embedder, err := embedding.Setup(ctx, embedding.Config{
				APIKey:     cfg.Embedding.APIKey,
				APIBase:    cfg.Embedding.APIBase,
				Model:      cfg.Embedding.Model,
				Dimensions: cfg.Embedding.Dimensions,
				TimeoutMs:  cfg.Embedding.TimeoutMs,
				RPM:        cfg.Embedding.RPM,
			})
			if err != nil {
				return fmt.Errorf("embedding setup: %w", err)
			}

			svc := ingest.New(repo, nil, embedder, nil)
			total := 0
			for {
				filled, err := svc.Backfill(ctx, batchSize)
				if err != nil {
					return err
				}
				total += filled
				if filled < batchSize {
					break
				}
			}

			fmt.Printf("Backfilled %d entries.\n", total)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 50, "entries per embedding request")
	return cmd
}
