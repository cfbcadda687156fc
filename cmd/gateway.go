package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/journalkit/voxlog/internal/blob"
	"github.com/journalkit/voxlog/internal/bus"
	"github.com/journalkit/voxlog/internal/channels/telegram"
	"github.com/journalkit/voxlog/internal/config"
	"github.com/journalkit/voxlog/internal/embedding"
	"github.com/journalkit/voxlog/internal/index"
	"github.com/journalkit/voxlog/internal/ingest"
	"github.com/journalkit/voxlog/internal/journal"
	"github.com/journalkit/voxlog/internal/providers"
	"github.com/journalkit/voxlog/internal/query"
	"github.com/journalkit/voxlog/internal/store"
	"github.com/journalkit/voxlog/internal/transcribe"
)

const (
	replyTryAgain  = "Something went wrong, please try again."
	replyNoResults = "I couldn't find any matching journal entries."
	replyNoSearch  = "Semantic search isn't ready yet (embeddings are still initializing). Time-scoped questions like \"what did I say today?\" still work."
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the Telegram bot and the journal pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runGateway(cfg)
		},
	}
}

func runGateway(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token not configured (set TELEGRAM_BOT_TOKEN)")
	}

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

	transcriber := transcribe.New(transcribe.Config{
		APIKey:    cfg.Transcription.APIKey,
		APIBase:   cfg.Transcription.APIBase,
		Model:     cfg.Transcription.Model,
		Language:  cfg.Transcription.Language,
		TimeoutMs: cfg.Transcription.TimeoutMs,
	})

	// Degrade rather than die: without embeddings the bot still ingests
	// notes and answers period questions; backfill catches up once a
	// later restart succeeds here.
	var embedder journal.Embedder
	setupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	embClient, err := embedding.Setup(setupCtx, embedding.Config{
		APIKey:     cfg.Embedding.APIKey,
		APIBase:    cfg.Embedding.APIBase,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		TimeoutMs:  cfg.Embedding.TimeoutMs,
		RPM:        cfg.Embedding.RPM,
	})
	cancel()
	if err != nil {
		slog.Warn("embedding setup failed, semantic search disabled", "error", err)
	} else {
		embedder = embClient
	}

	var blobs ingest.BlobStore
	if cfg.Archive.Enabled {
		s3store, err := blob.New(ctx, blob.Config{
			Bucket:   cfg.Archive.Bucket,
			Region:   cfg.Archive.Region,
			Prefix:   cfg.Archive.Prefix,
			Endpoint: cfg.Archive.Endpoint,
		})
		if err != nil {
			slog.Warn("audio archive disabled", "error", err)
		} else {
			blobs = s3store
		}
	}

	loc := cfg.Location()
	ingestSvc := ingest.New(repo, transcriber, embedder, blobs)
	engine := query.NewEngine(query.EngineConfig{
		Classifier: query.NewClassifier(completer, loc, nil),
		Ranges:     query.NewRangeParser(loc, nil),
		Corpus:     index.New(repo),
		Embedder:   embedder,
		TopK:       cfg.Query.TopK,
		Location:   loc,
	})
	composer := query.NewComposer(completer, loc, cfg.Query.MaxContextTokens)

	mbus := bus.New()
	channel, err := telegram.New(cfg.Telegram.Token, mbus, cfg.Telegram.AllowedUserIDs, repo, loc)
	if err != nil {
		return err
	}
	if err := channel.SyncMenuCommands(ctx); err != nil {
		slog.Warn("command menu sync failed", "error", err)
	}

	if embedder != nil {
		go func() {
			if err := ingestSvc.RunBackfillSchedule(ctx, cfg.Backfill.Schedule, cfg.Backfill.BatchSize); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("backfill schedule stopped", "error", err)
			}
		}()
	}

	go pipelineLoop(ctx, mbus, ingestSvc, engine, composer)

	slog.Info("voxlog gateway running", "semantic_search", embedder != nil, "archive", blobs != nil)
	err = channel.Run(ctx)
	if errors.Is(err, context.Canceled) {
		slog.Info("gateway shut down")
		return nil
	}
	return err
}

// pipelineLoop consumes inbound messages one at a time: voice notes go
// through ingestion, text goes through retrieval and composition. Every
// failure maps to a single user-facing retry message; nothing partial is
// ever sent.
func pipelineLoop(ctx context.Context, mbus *bus.MessageBus, ingestSvc *ingest.Service, engine *query.Engine, composer *query.Composer) {
	for {
		msg, ok := mbus.ConsumeInbound(ctx)
		if !ok {
			return
		}

		var reply string
		switch {
		case msg.Voice != nil:
			reply = handleVoice(ctx, ingestSvc, msg)
		case msg.Text != "":
			reply = handleQuery(ctx, engine, composer, msg.Text)
		default:
			continue
		}

		mbus.PublishOutbound(bus.OutboundMessage{ChatID: msg.ChatID, Text: reply})
	}
}

func handleVoice(ctx context.Context, ingestSvc *ingest.Service, msg bus.InboundMessage) string {
	entry, created, err := ingestSvc.IngestVoice(ctx, ingest.VoiceNote{
		SourceMessageID: msg.MessageID,
		SentAt:          msg.SentAt,
		DurationSeconds: msg.Voice.DurationSeconds,
		Audio:           msg.Voice.Audio,
		MIMEType:        msg.Voice.MIMEType,
	})
	if err != nil {
		slog.Error("voice ingestion failed", "message_id", msg.MessageID, "error", err)
		return replyTryAgain
	}
	if !created {
		return "Already saved that one."
	}
	return fmt.Sprintf("Saved (%ds):\n%s", entry.DurationSeconds, snippet(entry.Transcript, 200))
}

func handleQuery(ctx context.Context, engine *query.Engine, composer *query.Composer, text string) string {
	entries, err := engine.Retrieve(ctx, text)
	if err != nil {
		if errors.Is(err, journal.ErrNotInitialized) {
			return replyNoSearch
		}
		slog.Error("retrieval failed", "error", err)
		return replyTryAgain
	}
	if len(entries) == 0 {
		return replyNoResults
	}

	answer, err := composer.Compose(ctx, text, entries)
	if err != nil {
		slog.Error("answer composition failed", "error", err)
		return replyTryAgain
	}
	return answer
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
