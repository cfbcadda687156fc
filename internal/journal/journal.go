// Package journal defines the data model of the voice journal: entries,
// date ranges, query classifications, and the collaborator interfaces the
// retrieval pipeline is built against.
package journal

import (
	"context"
	"time"
)

// Entry is one transcribed voice note plus metadata.
//
// CreatedAt is the timestamp of the originating message, not processing
// time, so retrieval by period reflects when the user spoke. Embedding is
// nil until computed; transcript persistence never waits on it.
type Entry struct {
	ID              string    `json:"id"`
	SourceMessageID string    `json:"source_message_id"`
	CreatedAt       int64     `json:"created_at"` // unix seconds
	DurationSeconds int       `json:"duration_seconds"`
	Transcript      string    `json:"transcript"`
	Embedding       []float32 `json:"embedding,omitempty"`
	BlobRef         string    `json:"blob_ref,omitempty"`
}

// Time returns CreatedAt in the given location.
func (e Entry) Time(loc *time.Location) time.Time {
	return time.Unix(e.CreatedAt, 0).In(loc)
}

// DateRange is a half-open interval [Start, End) of unix seconds.
// End == 0 means open-ended (no upper bound).
type DateRange struct {
	Start       int64  `json:"start"`
	End         int64  `json:"end,omitempty"`
	Description string `json:"description,omitempty"`
}

// Contains reports whether ts falls inside the range.
func (r DateRange) Contains(ts int64) bool {
	if ts < r.Start {
		return false
	}
	return r.End == 0 || ts < r.End
}

// InAnyRange reports whether ts falls in any of the given ranges.
// An empty or nil list means unrestricted: everything matches.
func InAnyRange(ts int64, ranges []DateRange) bool {
	if len(ranges) == 0 {
		return true
	}
	for _, r := range ranges {
		if r.Contains(ts) {
			return true
		}
	}
	return false
}

// Kind is the classification bucket for a user query.
type Kind string

const (
	KindToday    Kind = "today"
	KindWeek     Kind = "week"
	KindMonth    Kind = "month"
	KindYear     Kind = "year"
	KindSemantic Kind = "semantic"
)

// IsPeriod reports whether the kind is a fixed calendar bucket.
func (k Kind) IsPeriod() bool {
	switch k {
	case KindToday, KindWeek, KindMonth, KindYear:
		return true
	}
	return false
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k.IsPeriod() || k == KindSemantic
}

// FilterSpec is one structured date-filter description extracted from a
// query. Exactly one of its field groups applies, checked in this order:
// relative period token, single date, year or year span, start/end pair.
type FilterSpec struct {
	Period string `json:"period,omitempty"` // this_year | this_month | this_week | last_year
	Date   string `json:"date,omitempty"`   // YYYY-MM-DD
	Year   string `json:"year,omitempty"`   // YYYY or YYYY-YYYY
	Start  string `json:"start,omitempty"`  // YYYY-MM-DD
	End    string `json:"end,omitempty"`    // YYYY-MM-DD, inclusive
}

// Classification is the outcome of classifying one query. Produced once
// per query, consumed immediately, never persisted.
type Classification struct {
	Kind        Kind         `json:"kind"`
	SearchTerms string       `json:"search_terms,omitempty"`
	DateFilter  []FilterSpec `json:"date_filter,omitempty"`
}

// Repository is the durable store for journal entries.
type Repository interface {
	// Insert persists a new entry and returns its ID. Inserting an entry
	// whose SourceMessageID already exists returns the existing entry's
	// ID with created == false.
	Insert(ctx context.Context, e Entry) (id string, created bool, err error)
	FindBySourceMessageID(ctx context.Context, sourceMessageID string) (*Entry, error)
	Get(ctx context.Context, id string) (*Entry, error)
	// ListByCreatedAtRange returns entries inside the range,
	// most-recent-first.
	ListByCreatedAtRange(ctx context.Context, r DateRange) ([]Entry, error)
	// ListAllEmbedded returns entries with a non-nil embedding,
	// most-recent-first.
	ListAllEmbedded(ctx context.Context) ([]Entry, error)
	// ListMissingEmbedding returns up to limit entries without an
	// embedding, oldest first.
	ListMissingEmbedding(ctx context.Context, limit int) ([]Entry, error)
	// UpdateTranscript replaces the transcript and clears the stored
	// embedding; the next backfill regenerates it.
	UpdateTranscript(ctx context.Context, id, transcript string) error
	UpdateEmbedding(ctx context.Context, id string, vec []float32) error
	Delete(ctx context.Context, id string) error
}

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Embedder turns texts into fixed-dimension vectors. A non-nil Embedder is
// the capability token for semantic search: callers hold one only after
// the embedding subsystem initialized successfully.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// CompleteOptions tunes a single completion call.
type CompleteOptions struct {
	Temperature float64
	MaxTokens   int
}

// Completer is a generative text-completion service. Its output is
// untrusted free text; callers own any structural parsing of it.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, error)
}
