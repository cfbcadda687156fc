package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/journalkit/voxlog/internal/index"
	"github.com/journalkit/voxlog/internal/journal"
	"github.com/journalkit/voxlog/internal/journal/journaltest"
)

// newTestEngine builds an engine around fakes. now is Wednesday
// 2026-03-04 10:00 UTC unless tests override entries accordingly.
func newTestEngine(repo journal.Repository, completer journal.Completer, embedder journal.Embedder) *Engine {
	now := func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	return NewEngine(EngineConfig{
		Classifier: NewClassifier(completer, time.UTC, now),
		Ranges:     NewRangeParser(time.UTC, now),
		Corpus:     index.New(repo),
		Embedder:   embedder,
		Location:   time.UTC,
		Now:        now,
	})
}

func TestRetrieve_TodayReturnsOnlyTodaysEntries(t *testing.T) {
	repo := journaltest.NewMemRepo()
	today := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC).Unix()
	yesterday := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC).Unix()
	repo.Seed(
		journal.Entry{SourceMessageID: "m-today", CreatedAt: today, Transcript: "today's note"},
		journal.Entry{SourceMessageID: "m-yday", CreatedAt: yesterday, Transcript: "yesterday's note"},
	)

	eng := newTestEngine(repo, journaltest.StaticCompleter(`{"kind": "today"}`), nil)

	got, err := eng.Retrieve(context.Background(), "what did I say today?")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if got[0].SourceMessageID != "m-today" {
		t.Errorf("got entry %s, want m-today", got[0].SourceMessageID)
	}
}

func TestRetrieve_PeriodIgnoresSearchTermsAndFilter(t *testing.T) {
	repo := journaltest.NewMemRepo()
	inWeek := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC).Unix() // Monday of that week
	repo.Seed(journal.Entry{SourceMessageID: "m1", CreatedAt: inWeek, Transcript: "weekly"})

	// Classifier emits stray terms and filters; the period path must
	// ignore both.
	eng := newTestEngine(repo, journaltest.StaticCompleter(
		`{"kind": "week", "search_terms": "noise", "date_filter": [{"year": "1999"}]}`), nil)

	got, err := eng.Retrieve(context.Background(), "recap my week")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d entries, want 1", len(got))
	}
}

func TestRetrieve_SemanticRanksByCosine(t *testing.T) {
	repo := journaltest.NewMemRepo()
	repo.Seed(
		journal.Entry{SourceMessageID: "best", CreatedAt: 100, Transcript: "a", Embedding: []float32{1, 0}},
		journal.Entry{SourceMessageID: "worst", CreatedAt: 200, Transcript: "b", Embedding: []float32{0, 1}},
		journal.Entry{SourceMessageID: "mid", CreatedAt: 300, Transcript: "c", Embedding: []float32{1, 1}},
	)

	eng := newTestEngine(repo,
		journaltest.StaticCompleter(`{"kind": "semantic", "search_terms": "topic"}`),
		journaltest.StaticEmbedder([]float32{1, 0}))

	got, err := eng.Retrieve(context.Background(), "anything about the topic?")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	wantOrder := []string{"best", "mid", "worst"}
	for i, want := range wantOrder {
		if got[i].SourceMessageID != want {
			t.Errorf("position %d: got %s, want %s", i, got[i].SourceMessageID, want)
		}
	}
}

func TestRetrieve_SemanticWithoutEmbedderIsNotInitialized(t *testing.T) {
	repo := journaltest.NewMemRepo()
	eng := newTestEngine(repo,
		journaltest.StaticCompleter(`{"kind": "semantic", "search_terms": "x"}`), nil)

	_, err := eng.Retrieve(context.Background(), "open question")
	if !errors.Is(err, journal.ErrNotInitialized) {
		t.Errorf("err = %v, want ErrNotInitialized", err)
	}

	// Period queries keep working without an embedder.
	eng = newTestEngine(repo, journaltest.StaticCompleter(`{"kind": "today"}`), nil)
	if _, err := eng.Retrieve(context.Background(), "what did I say today?"); err != nil {
		t.Errorf("period query failed without embedder: %v", err)
	}
}

func TestRetrieve_EmptyCorpusReturnsEmptyNotError(t *testing.T) {
	repo := journaltest.NewMemRepo()
	eng := newTestEngine(repo,
		journaltest.StaticCompleter(`{"kind": "semantic", "search_terms": "x"}`),
		journaltest.StaticEmbedder([]float32{1, 0}))

	got, err := eng.Retrieve(context.Background(), "anything at all?")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d entries, want 0", len(got))
	}
}

func TestRetrieve_SemanticAppliesDateFilter(t *testing.T) {
	repo := journaltest.NewMemRepo()
	in2024 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Unix()
	in2025 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Unix()
	repo.Seed(
		journal.Entry{SourceMessageID: "m-2024", CreatedAt: in2024, Transcript: "a", Embedding: []float32{1, 0}},
		journal.Entry{SourceMessageID: "m-2025", CreatedAt: in2025, Transcript: "b", Embedding: []float32{1, 0}},
	)

	eng := newTestEngine(repo, journaltest.StaticCompleter(
		`{"kind": "semantic", "search_terms": "trip", "date_filter": [{"year": "2024"}]}`),
		journaltest.StaticEmbedder([]float32{1, 0}))

	got, err := eng.Retrieve(context.Background(), "what about the trip in 2024?")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 || got[0].SourceMessageID != "m-2024" {
		t.Errorf("date-filtered retrieval = %+v, want only m-2024", got)
	}
}

func TestRetrieve_EmbeddingFailureSurfacesTyped(t *testing.T) {
	repo := journaltest.NewMemRepo()
	failing := &journaltest.Embedder{
		Dims: 2,
		Fn: func(context.Context, []string) ([][]float32, error) {
			return nil, errors.New("socket closed")
		},
	}
	eng := newTestEngine(repo,
		journaltest.StaticCompleter(`{"kind": "semantic", "search_terms": "x"}`), failing)

	_, err := eng.Retrieve(context.Background(), "q")
	var embErr *journal.EmbeddingError
	if !errors.As(err, &embErr) {
		t.Errorf("err = %v, want *journal.EmbeddingError", err)
	}
}

func TestRetrieve_QueryEmbeddingCached(t *testing.T) {
	repo := journaltest.NewMemRepo()
	calls := 0
	counting := &journaltest.Embedder{
		Dims: 2,
		Fn: func(_ context.Context, texts []string) ([][]float32, error) {
			calls++
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{1, 0}
			}
			return out, nil
		},
	}
	eng := newTestEngine(repo,
		journaltest.StaticCompleter(`{"kind": "semantic", "search_terms": "same terms"}`), counting)

	for i := 0; i < 3; i++ {
		if _, err := eng.Retrieve(context.Background(), "same question"); err != nil {
			t.Fatalf("Retrieve %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Errorf("embedder called %d times, want 1 (cache miss only once)", calls)
	}
}
