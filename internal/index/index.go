// Package index provides similarity search over the embedded journal
// corpus. The scan is deliberately linear: a personal journal holds
// thousands of entries, not millions, and a linear pass keeps ranking
// exact. Callers only see the Search contract, so an ANN structure could
// replace the scan without touching them.
package index

import (
	"context"
	"math"
	"sort"

	"github.com/journalkit/voxlog/internal/journal"
)

// Corpus ranks journal entries against query vectors and serves
// period-bucket fetches straight from the repository.
type Corpus struct {
	repo journal.Repository
}

// New creates a corpus index over the given repository.
func New(repo journal.Repository) *Corpus {
	return &Corpus{repo: repo}
}

// Scored pairs an entry with its similarity to a query vector.
type Scored struct {
	Entry journal.Entry
	Score float64
}

// FetchByPeriod returns entries inside the range, most-recent-first.
func (c *Corpus) FetchByPeriod(ctx context.Context, r journal.DateRange) ([]journal.Entry, error) {
	return c.repo.ListByCreatedAtRange(ctx, r)
}

// FetchAllEmbedded returns entries with a stored embedding.
func (c *Corpus) FetchAllEmbedded(ctx context.Context) ([]journal.Entry, error) {
	return c.repo.ListAllEmbedded(ctx)
}

// Search scores every embedded entry against queryVec, keeping only
// entries whose CreatedAt falls in any of the filter ranges (nil filter
// means unrestricted). Results are sorted by descending score, ties broken
// by more-recent CreatedAt, truncated to topK.
func (c *Corpus) Search(ctx context.Context, queryVec []float32, topK int, filter []journal.DateRange) ([]Scored, error) {
	if topK <= 0 {
		topK = 5
	}

	entries, err := c.repo.ListAllEmbedded(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]Scored, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		if !journal.InAnyRange(e.CreatedAt, filter) {
			continue
		}
		scored = append(scored, Scored{Entry: e, Score: CosineSimilarity(queryVec, e.Embedding)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Entry.CreatedAt > scored[j].Entry.CreatedAt
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|). Mismatched lengths and
// all-zero vectors score 0 rather than dividing by zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
