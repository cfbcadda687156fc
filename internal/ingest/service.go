// Package ingest runs the voice-note pipeline: transcribe, persist,
// embed, archive. It also owns the embedding backfill for entries whose
// vectors are still missing.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/journalkit/voxlog/internal/journal"
)

// BlobStore archives source audio. Implementations are optional at
// runtime; a nil store skips archiving.
type BlobStore interface {
	Put(ctx context.Context, audio []byte, mimeType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// VoiceNote is one inbound voice message.
type VoiceNote struct {
	SourceMessageID string
	SentAt          int64 // unix seconds, from the message, not receipt time
	DurationSeconds int
	Audio           []byte
	MIMEType        string
}

// Service orchestrates ingestion. All collaborators are injected;
// embedder and blobs may be nil, degrading to transcript-only entries.
type Service struct {
	repo        journal.Repository
	transcriber journal.Transcriber
	embedder    journal.Embedder
	blobs       BlobStore
}

// New creates an ingestion service.
func New(repo journal.Repository, transcriber journal.Transcriber, embedder journal.Embedder, blobs BlobStore) *Service {
	return &Service{repo: repo, transcriber: transcriber, embedder: embedder, blobs: blobs}
}

// IngestVoice processes one voice note. A note whose SourceMessageID was
// already ingested is a no-op returning the stored entry with created ==
// false. Transcription failure aborts ingestion; embedding and archiving
// failures are logged and leave the entry transcript-only.
func (s *Service) IngestVoice(ctx context.Context, note VoiceNote) (*journal.Entry, bool, error) {
	if existing, err := s.repo.FindBySourceMessageID(ctx, note.SourceMessageID); err == nil {
		return existing, false, nil
	} else if err != journal.ErrNotFound {
		return nil, false, fmt.Errorf("dedup lookup: %w", err)
	}

	// The entry is not persisted before transcription succeeds.
	transcript, err := s.transcriber.Transcribe(ctx, note.Audio, note.MIMEType)
	if err != nil {
		return nil, false, err
	}

	entry := journal.Entry{
		SourceMessageID: note.SourceMessageID,
		CreatedAt:       note.SentAt,
		DurationSeconds: note.DurationSeconds,
		Transcript:      transcript,
	}

	// Best-effort: entry persists without an embedding and the backfill
	// picks it up later.
	if s.embedder != nil {
		vecs, err := s.embedder.Embed(ctx, []string{transcript})
		if err != nil || len(vecs) == 0 {
			slog.Warn("embedding failed during ingestion, leaving for backfill",
				"source_message_id", note.SourceMessageID, "error", err)
		} else {
			entry.Embedding = vecs[0]
		}
	}

	if s.blobs != nil {
		ref, err := s.blobs.Put(ctx, note.Audio, note.MIMEType)
		if err != nil {
			slog.Warn("audio archive failed", "source_message_id", note.SourceMessageID, "error", err)
		} else {
			entry.BlobRef = ref
		}
	}

	id, created, err := s.repo.Insert(ctx, entry)
	if err != nil {
		return nil, false, fmt.Errorf("persist entry: %w", err)
	}
	entry.ID = id
	if !created {
		// Lost the race with a concurrent duplicate; theirs won.
		stored, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return stored, false, nil
	}

	slog.Info("entry ingested", "id", id,
		"duration_s", note.DurationSeconds, "transcript_len", len(transcript),
		"embedded", entry.Embedding != nil, "archived", entry.BlobRef != "")
	return &entry, true, nil
}

// EditTranscript applies a user correction. The stored embedding is
// cleared so the backfill regenerates it from the corrected text.
func (s *Service) EditTranscript(ctx context.Context, id, transcript string) error {
	return s.repo.UpdateTranscript(ctx, id, transcript)
}

// Delete removes an entry and its archived audio.
func (s *Service) Delete(ctx context.Context, id string) error {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.blobs != nil && entry.BlobRef != "" {
		if err := s.blobs.Delete(ctx, entry.BlobRef); err != nil {
			slog.Warn("blob cleanup failed", "id", id, "blob_ref", entry.BlobRef, "error", err)
		}
	}
	return nil
}
