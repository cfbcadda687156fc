package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/journalkit/voxlog/internal/index"
	"github.com/journalkit/voxlog/internal/journal"
)

// DefaultTopK is the number of entries a semantic search returns.
const DefaultTopK = 5

const queryEmbeddingCacheSize = 256

// Engine orchestrates one query end to end: classification, filter
// construction, then either an exact period fetch or a vector search.
// It holds no per-request state; concurrent queries only share the
// read-only corpus underneath.
type Engine struct {
	classifier *Classifier
	ranges     *RangeParser
	corpus     *index.Corpus
	embedder   journal.Embedder // nil until the embedding subsystem is ready
	cache      *lru.Cache[string, []float32]
	topK       int
	loc        *time.Location
	now        func() time.Time
}

// EngineConfig wires an Engine's collaborators.
type EngineConfig struct {
	Classifier *Classifier
	Ranges     *RangeParser
	Corpus     *index.Corpus
	Embedder   journal.Embedder // may be nil: semantic search stays blocked
	TopK       int
	Location   *time.Location
	Now        func() time.Time
}

// NewEngine creates a retrieval engine.
func NewEngine(cfg EngineConfig) *Engine {
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	cache, _ := lru.New[string, []float32](queryEmbeddingCacheSize)
	return &Engine{
		classifier: cfg.Classifier,
		ranges:     cfg.Ranges,
		corpus:     cfg.Corpus,
		embedder:   cfg.Embedder,
		cache:      cache,
		topK:       topK,
		loc:        loc,
		now:        now,
	}
}

// Retrieve returns the entries grounding an answer to the query. An empty
// result is not an error; the caller presents a "nothing found" message.
// Semantic queries fail with journal.ErrNotInitialized while no embedder
// is available; period queries always work.
func (e *Engine) Retrieve(ctx context.Context, userQuery string) ([]journal.Entry, error) {
	cls := e.classifier.Classify(ctx, userQuery)

	if cls.Kind.IsPeriod() {
		r := e.periodRange(cls.Kind)
		slog.Debug("period retrieval", "kind", cls.Kind, "start", r.Start, "end", r.End)
		return e.corpus.FetchByPeriod(ctx, r)
	}

	if e.embedder == nil {
		return nil, journal.ErrNotInitialized
	}

	terms := strings.TrimSpace(cls.SearchTerms)
	if terms == "" {
		terms = userQuery
	}

	vec, err := e.queryVector(ctx, terms)
	if err != nil {
		return nil, err
	}

	filter := e.ranges.Parse(cls.DateFilter)
	scored, err := e.corpus.Search(ctx, vec, e.topK, filter)
	if err != nil {
		return nil, fmt.Errorf("corpus search: %w", err)
	}

	entries := make([]journal.Entry, len(scored))
	for i, s := range scored {
		entries[i] = s.Entry
	}
	slog.Debug("semantic retrieval", "terms", terms, "filters", len(filter), "results", len(entries))
	return entries, nil
}

// queryVector embeds the search terms, with a small LRU so repeated
// questions skip the embedding call.
func (e *Engine) queryVector(ctx context.Context, terms string) ([]float32, error) {
	if vec, ok := e.cache.Get(terms); ok {
		return vec, nil
	}

	vecs, err := e.embedder.Embed(ctx, []string{terms})
	if err != nil {
		return nil, &journal.EmbeddingError{Err: err}
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, &journal.EmbeddingError{Err: fmt.Errorf("empty embedding for query")}
	}

	e.cache.Add(terms, vecs[0])
	return vecs[0], nil
}

// periodRange maps a fixed-period kind to its calendar bucket around now.
func (e *Engine) periodRange(kind journal.Kind) journal.DateRange {
	now := e.now().In(e.loc)

	switch kind {
	case journal.KindToday:
		start := StartOfDay(now)
		return journal.DateRange{
			Start:       start.Unix(),
			End:         start.AddDate(0, 0, 1).Unix(),
			Description: "today",
		}
	case journal.KindWeek:
		start := StartOfWeek(now)
		return journal.DateRange{
			Start:       start.Unix(),
			End:         start.AddDate(0, 0, 7).Unix(),
			Description: "this week",
		}
	case journal.KindMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, e.loc)
		return journal.DateRange{
			Start:       start.Unix(),
			End:         start.AddDate(0, 1, 0).Unix(),
			Description: "this month",
		}
	default: // journal.KindYear
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, e.loc)
		return journal.DateRange{
			Start:       start.Unix(),
			End:         start.AddDate(1, 0, 0).Unix(),
			Description: "this year",
		}
	}
}
