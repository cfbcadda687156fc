// Package journaltest provides in-memory test doubles for the journal's
// collaborator interfaces.
package journaltest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/journalkit/voxlog/internal/journal"
)

// MemRepo is an in-memory journal.Repository.
type MemRepo struct {
	mu      sync.Mutex
	entries map[string]journal.Entry
	nextID  int
}

// NewMemRepo returns an empty in-memory repository.
func NewMemRepo() *MemRepo {
	return &MemRepo{entries: make(map[string]journal.Entry)}
}

// Seed inserts entries directly, bypassing validation. Entries without an
// ID get a generated one.
func (r *MemRepo) Seed(entries ...journal.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		if e.ID == "" {
			r.nextID++
			e.ID = fmt.Sprintf("e%d", r.nextID)
		}
		r.entries[e.ID] = e
	}
}

func (r *MemRepo) Insert(_ context.Context, e journal.Entry) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.SourceMessageID == e.SourceMessageID {
			return existing.ID, false, nil
		}
	}
	if e.ID == "" {
		r.nextID++
		e.ID = fmt.Sprintf("e%d", r.nextID)
	}
	r.entries[e.ID] = e
	return e.ID, true, nil
}

func (r *MemRepo) FindBySourceMessageID(_ context.Context, sourceMessageID string) (*journal.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.SourceMessageID == sourceMessageID {
			cp := e
			return &cp, nil
		}
	}
	return nil, journal.ErrNotFound
}

func (r *MemRepo) Get(_ context.Context, id string) (*journal.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, journal.ErrNotFound
	}
	cp := e
	return &cp, nil
}

func (r *MemRepo) ListByCreatedAtRange(_ context.Context, dr journal.DateRange) ([]journal.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []journal.Entry
	for _, e := range r.entries {
		if dr.Contains(e.CreatedAt) {
			out = append(out, e)
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

func (r *MemRepo) ListAllEmbedded(_ context.Context) ([]journal.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []journal.Entry
	for _, e := range r.entries {
		if len(e.Embedding) > 0 {
			out = append(out, e)
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

func (r *MemRepo) ListMissingEmbedding(_ context.Context, limit int) ([]journal.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []journal.Entry
	for _, e := range r.entries {
		if len(e.Embedding) == 0 {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemRepo) UpdateTranscript(_ context.Context, id, transcript string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return journal.ErrNotFound
	}
	e.Transcript = transcript
	e.Embedding = nil
	r.entries[id] = e
	return nil
}

func (r *MemRepo) UpdateEmbedding(_ context.Context, id string, vec []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return journal.ErrNotFound
	}
	e.Embedding = vec
	r.entries[id] = e
	return nil
}

func (r *MemRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return journal.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

// Len returns the number of stored entries.
func (r *MemRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func sortByCreatedDesc(entries []journal.Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt > entries[j].CreatedAt })
}

// Completer is a function-backed journal.Completer.
type Completer func(ctx context.Context, prompt string, opts journal.CompleteOptions) (string, error)

func (f Completer) Complete(ctx context.Context, prompt string, opts journal.CompleteOptions) (string, error) {
	return f(ctx, prompt, opts)
}

// StaticCompleter always returns the given text.
func StaticCompleter(text string) Completer {
	return func(context.Context, string, journal.CompleteOptions) (string, error) {
		return text, nil
	}
}

// Embedder is a function-backed journal.Embedder with fixed dimensions.
type Embedder struct {
	Dims int
	Fn   func(ctx context.Context, texts []string) ([][]float32, error)
}

func (e *Embedder) Dimensions() int { return e.Dims }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.Fn(ctx, texts)
}

// StaticEmbedder embeds every text as the same vector.
func StaticEmbedder(vec []float32) *Embedder {
	return &Embedder{
		Dims: len(vec),
		Fn: func(_ context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = vec
			}
			return out, nil
		},
	}
}

// Transcriber is a function-backed journal.Transcriber.
type Transcriber func(ctx context.Context, audio []byte, mimeType string) (string, error)

func (f Transcriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return f(ctx, audio, mimeType)
}
