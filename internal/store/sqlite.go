// Package store implements the journal repository on SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/journalkit/voxlog/internal/journal"
)

// Store is a SQLite-backed journal.Repository. Embeddings are stored as
// little-endian float32 blobs; a meta row pins the corpus dimensionality
// so a mismatched vector is rejected instead of silently stored.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("journal store opened", "path", path)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			id TEXT PRIMARY KEY,
			source_message_id TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL,
			duration_s INTEGER NOT NULL DEFAULT 0,
			transcript TEXT NOT NULL,
			embedding BLOB,
			blob_ref TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}

	return nil
}

// Insert persists an entry. A duplicate SourceMessageID is a no-op that
// returns the existing entry's ID with created == false.
func (s *Store) Insert(ctx context.Context, e journal.Entry) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.DurationSeconds < 0 {
		return "", false, fmt.Errorf("negative duration: %d", e.DurationSeconds)
	}
	if e.Transcript == "" {
		return "", false, fmt.Errorf("empty transcript for message %s", e.SourceMessageID)
	}

	var blob []byte
	if e.Embedding != nil {
		if err := s.checkDimsLocked(len(e.Embedding)); err != nil {
			return "", false, err
		}
		blob = EncodeEmbedding(e.Embedding)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, source_message_id, created_at, duration_s, transcript, embedding, blob_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_message_id) DO NOTHING`,
		e.ID, e.SourceMessageID, e.CreatedAt, e.DurationSeconds, e.Transcript, blob, e.BlobRef)
	if err != nil {
		return "", false, fmt.Errorf("insert entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if n == 0 {
		var existing string
		err := s.db.QueryRowContext(ctx,
			"SELECT id FROM entries WHERE source_message_id = ?", e.SourceMessageID).Scan(&existing)
		if err != nil {
			return "", false, fmt.Errorf("lookup duplicate: %w", err)
		}
		return existing, false, nil
	}

	return e.ID, true, nil
}

// FindBySourceMessageID returns the entry for an inbound message ID, or
// journal.ErrNotFound.
func (s *Store) FindBySourceMessageID(ctx context.Context, sourceMessageID string) (*journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		selectCols+" FROM entries WHERE source_message_id = ?", sourceMessageID)
	return scanEntry(row)
}

// Get returns the entry with the given ID, or journal.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectCols+" FROM entries WHERE id = ?", id)
	return scanEntry(row)
}

// ListByCreatedAtRange returns entries with created_at in [Start, End),
// most-recent-first. End == 0 means no upper bound.
func (s *Store) ListByCreatedAtRange(ctx context.Context, r journal.DateRange) ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := selectCols + " FROM entries WHERE created_at >= ?"
	args := []any{r.Start}
	if r.End != 0 {
		q += " AND created_at < ?"
		args = append(args, r.End)
	}
	q += " ORDER BY created_at DESC"

	return s.list(ctx, q, args...)
}

// ListAllEmbedded returns entries with a stored embedding, most-recent-first.
func (s *Store) ListAllEmbedded(ctx context.Context) ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.list(ctx, selectCols+" FROM entries WHERE embedding IS NOT NULL ORDER BY created_at DESC")
}

// ListMissingEmbedding returns up to limit entries without an embedding,
// oldest first (backfill works forward through the backlog).
func (s *Store) ListMissingEmbedding(ctx context.Context, limit int) ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	return s.list(ctx,
		selectCols+" FROM entries WHERE embedding IS NULL ORDER BY created_at ASC LIMIT ?", limit)
}

// UpdateTranscript replaces the transcript and clears the embedding so the
// next backfill regenerates it from the corrected text.
func (s *Store) UpdateTranscript(ctx context.Context, id, transcript string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if transcript == "" {
		return fmt.Errorf("empty transcript")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE entries SET transcript = ?, embedding = NULL WHERE id = ?", transcript, id)
	if err != nil {
		return fmt.Errorf("update transcript: %w", err)
	}
	return requireRow(res)
}

// UpdateEmbedding stores the vector for an entry. Only transitions from
// absent to present happen on the backfill path, so running it concurrently
// with reads is safe. A dimension mismatch against the corpus is an error.
func (s *Store) UpdateEmbedding(ctx context.Context, id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(vec) == 0 {
		return fmt.Errorf("empty embedding for entry %s", id)
	}
	if err := s.checkDimsLocked(len(vec)); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE entries SET embedding = ? WHERE id = ?", EncodeEmbedding(vec), id)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	return requireRow(res)
}

// Delete removes an entry. The caller owns deleting any archived blob.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return requireRow(res)
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n)
	return n, err
}

// Span returns the created_at of the oldest and newest entries.
// Both are zero when the journal is empty.
func (s *Store) Span(ctx context.Context) (oldest, newest int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MIN(created_at), 0), COALESCE(MAX(created_at), 0) FROM entries").
		Scan(&oldest, &newest)
	return oldest, newest, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// checkDimsLocked pins the corpus embedding dimensionality in meta on
// first write and rejects mismatches afterwards.
func (s *Store) checkDimsLocked(dims int) error {
	var stored string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'embedding_dims'").Scan(&stored)
	if err == sql.ErrNoRows {
		_, err := s.db.Exec("INSERT INTO meta (key, value) VALUES ('embedding_dims', ?)",
			strconv.Itoa(dims))
		return err
	}
	if err != nil {
		return err
	}
	want, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("corrupt embedding_dims meta %q: %w", stored, err)
	}
	if dims != want {
		return fmt.Errorf("embedding dimension mismatch: got %d, corpus has %d", dims, want)
	}
	return nil
}

const selectCols = "SELECT id, source_message_id, created_at, duration_s, transcript, embedding, blob_ref"

func (s *Store) list(ctx context.Context, query string, args ...any) ([]journal.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		var e journal.Entry
		var blob []byte
		if err := rows.Scan(&e.ID, &e.SourceMessageID, &e.CreatedAt, &e.DurationSeconds,
			&e.Transcript, &blob, &e.BlobRef); err != nil {
			return nil, err
		}
		if len(blob) > 0 {
			vec, err := DecodeEmbedding(blob)
			if err != nil {
				return nil, fmt.Errorf("entry %s: %w", e.ID, err)
			}
			e.Embedding = vec
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row *sql.Row) (*journal.Entry, error) {
	var e journal.Entry
	var blob []byte
	err := row.Scan(&e.ID, &e.SourceMessageID, &e.CreatedAt, &e.DurationSeconds,
		&e.Transcript, &blob, &e.BlobRef)
	if err == sql.ErrNoRows {
		return nil, journal.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(blob) > 0 {
		vec, err := DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		e.Embedding = vec
	}
	return &e, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return journal.ErrNotFound
	}
	return nil
}
