package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/journalkit/voxlog/internal/journal"
)

// Backfill embeds up to batchSize entries that are missing a vector and
// returns how many were filled. It only ever transitions embeddings from
// absent to present, so running it while queries read the corpus is a
// benign race.
func (s *Service) Backfill(ctx context.Context, batchSize int) (int, error) {
	if s.embedder == nil {
		return 0, journal.ErrNotInitialized
	}
	if batchSize <= 0 {
		batchSize = 50
	}

	pending, err := s.repo.ListMissingEmbedding(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, e := range pending {
		texts[i] = e.Transcript
	}

	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vecs) != len(pending) {
		return 0, &journal.EmbeddingError{
			Err: fmt.Errorf("got %d vectors for %d entries", len(vecs), len(pending)),
		}
	}

	filled := 0
	for i, e := range pending {
		if err := s.repo.UpdateEmbedding(ctx, e.ID, vecs[i]); err != nil {
			// A dimension mismatch here means corrupt data; stop
			// rather than continue writing.
			return filled, fmt.Errorf("update embedding for %s: %w", e.ID, err)
		}
		filled++
	}

	slog.Info("embedding backfill pass complete", "filled", filled)
	return filled, nil
}

// RunBackfillSchedule runs Backfill on a cron schedule until ctx is done.
// The expression is validated up front; per-pass failures are logged and
// the schedule keeps going.
func (s *Service) RunBackfillSchedule(ctx context.Context, cronExpr string, batchSize int) error {
	g := gronx.New()
	if !g.IsValid(cronExpr) {
		return fmt.Errorf("invalid backfill schedule %q", cronExpr)
	}

	slog.Info("backfill schedule started", "schedule", cronExpr)
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			due, err := g.IsDue(cronExpr, time.Now())
			if err != nil || !due {
				continue
			}
			if _, err := s.Backfill(ctx, batchSize); err != nil {
				slog.Warn("backfill pass failed", "error", err)
			}
		}
	}
}
