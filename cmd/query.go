package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/journalkit/voxlog/internal/embedding"
	"github.com/journalkit/voxlog/internal/index"
	"github.com/journalkit/voxlog/internal/journal"
	"github.com/journalkit/voxlog/internal/providers"
	"github.com/journalkit/voxlog/internal/query"
	"github.com/journalkit/voxlog/internal/store"
)

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <question>",
		Short: "Ask the journal a question from the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			repo, err := store.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer repo.Close()

			completer := providers.NewOpenAIClient(providers.OpenAIConfig{
				APIKey:    cfg.Completion.APIKey,
				APIBase:   cfg.Completion.APIBase,
				Model:     cfg.Completion.Model,
				TimeoutMs: cfg.Completion.TimeoutMs,
				RPM:       cfg.Completion.RPM,
			})

			var embedder journal.Embedder
			embClient, err := embedding.Setup(ctx, embedding.Config{
				APIKey:     cfg.Embedding.APIKey,
				APIBase:    cfg.Embedding.APIBase,
				Model:      cfg.Embedding.Model,
				Dimensions: cfg.Embedding.Dimensions,
				TimeoutMs:  cfg.Embedding.TimeoutMs,
				RPM:        cfg.Embedding.RPM,
			})
			if err != nil {
				slog.Warn("embedding setup failed, semantic search disabled", "error", err)
			} else {
				embedder = embClient
			}

			loc := cfg.Location()
			engine := query.NewEngine(query.EngineConfig{
				Classifier: query.NewClassifier(completer, loc, nil),
				Ranges:     query.NewRangeParser(loc, nil),
				Corpus:     index.New(repo),
				Embedder:   embedder,
				TopK:       cfg.Query.TopK,
				Location:   loc,
			})

			entries, err := engine.Retrieve(ctx, question)
			if err != nil {
				if errors.Is(err, journal.ErrNotInitialized) {
					return fmt.Errorf("semantic search unavailable: %w", err)
				}
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No matching journal entries.")
				return nil
			}

			composer := query.NewComposer(completer, loc, cfg.Query.MaxContextTokens)
			answer, err := composer.Compose(ctx, question, entries)
			if err != nil {
				return err
			}

			fmt.Println(answer)
			return nil
		},
	}
}
