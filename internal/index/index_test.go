package index

import (
	"context"
	"math"
	"testing"

	"github.com/journalkit/voxlog/internal/journal"
	"github.com/journalkit/voxlog/internal/journal/journaltest"
)

func TestCosineSimilarity(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5}

	if sim := CosineSimilarity(v, v); math.Abs(sim-1.0) > 1e-6 {
		t.Errorf("similarity(v, v) = %f, want ~1.0", sim)
	}

	neg := []float32{-0.3, 1.2, -4.5}
	if sim := CosineSimilarity(v, neg); math.Abs(sim+1.0) > 1e-6 {
		t.Errorf("similarity(v, -v) = %f, want ~-1.0", sim)
	}

	a := []float32{1, 2, 3}
	b := []float32{4, 0, -1}
	if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
		t.Error("similarity is not symmetric")
	}

	if sim := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(sim) > 1e-6 {
		t.Errorf("orthogonal similarity = %f, want ~0", sim)
	}

	// Zero vectors and length mismatches must not blow up.
	if sim := CosineSimilarity([]float32{0, 0}, []float32{1, 1}); sim != 0 {
		t.Errorf("zero vector similarity = %f, want 0", sim)
	}
	if sim := CosineSimilarity([]float32{1}, []float32{1, 2}); sim != 0 {
		t.Errorf("mismatched length similarity = %f, want 0", sim)
	}
}

func TestSearch_RankingAndTopK(t *testing.T) {
	repo := journaltest.NewMemRepo()
	repo.Seed(
		journal.Entry{SourceMessageID: "m1", CreatedAt: 100, Transcript: "a", Embedding: []float32{0.9, 0.436}},
		journal.Entry{SourceMessageID: "m2", CreatedAt: 200, Transcript: "b", Embedding: []float32{0.95, 0.312}},
		journal.Entry{SourceMessageID: "m3", CreatedAt: 300, Transcript: "c", Embedding: []float32{0.1, 0.995}},
	)
	c := New(repo)

	got, err := c.Search(context.Background(), []float32{1, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Entry.SourceMessageID != "m2" || got[1].Entry.SourceMessageID != "m1" {
		t.Errorf("ranking = [%s %s], want [m2 m1]",
			got[0].Entry.SourceMessageID, got[1].Entry.SourceMessageID)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("scores not descending: %f < %f", got[0].Score, got[1].Score)
	}
}

func TestSearch_TiesBrokenByRecency(t *testing.T) {
	repo := journaltest.NewMemRepo()
	repo.Seed(
		journal.Entry{SourceMessageID: "old", CreatedAt: 100, Transcript: "a", Embedding: []float32{1, 0}},
		journal.Entry{SourceMessageID: "new", CreatedAt: 200, Transcript: "b", Embedding: []float32{2, 0}},
	)
	c := New(repo)

	got, err := c.Search(context.Background(), []float32{1, 0}, 5, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Entry.SourceMessageID != "new" {
		t.Errorf("tie not broken by recency: first = %s", got[0].Entry.SourceMessageID)
	}
}

func TestSearch_DateFilter(t *testing.T) {
	repo := journaltest.NewMemRepo()
	repo.Seed(
		journal.Entry{SourceMessageID: "in", CreatedAt: 150, Transcript: "a", Embedding: []float32{1, 0}},
		journal.Entry{SourceMessageID: "out", CreatedAt: 500, Transcript: "b", Embedding: []float32{1, 0}},
	)
	c := New(repo)

	filter := []journal.DateRange{{Start: 100, End: 200}}
	got, err := c.Search(context.Background(), []float32{1, 0}, 5, filter)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Entry.SourceMessageID != "in" {
		t.Errorf("filter failed: %+v", got)
	}

	// Two OR-ed ranges widen the match.
	filter = append(filter, journal.DateRange{Start: 400, End: 600})
	got, err = c.Search(context.Background(), []float32{1, 0}, 5, filter)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("OR semantics: got %d results, want 2", len(got))
	}
}

func TestSearch_EmptyCorpus(t *testing.T) {
	c := New(journaltest.NewMemRepo())
	got, err := c.Search(context.Background(), []float32{1, 0}, 5, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty corpus returned %d results", len(got))
	}
}
