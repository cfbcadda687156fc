package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/journalkit/voxlog/internal/journal"
)

const classifyPromptTemplate = `You are a query router for a personal voice journal. Today is %s (%s).

Categorize the user's question into exactly one kind:
- "today", "week", "month", "year": the question asks for entries from the
  current calendar day, week, month, or year ("what did I say today?",
  "recap my week"). If the question contains ANY explicit time reference,
  relative or absolute, prefer a time-scoped kind over "semantic" even when
  the question also names a topic.
- "semantic": an open-ended question answered by similarity search.

For "semantic", also extract:
- "search_terms": the topical core of the question, stripped of filler.
- "date_filter": a list of date constraints, each one of:
    {"date": "YYYY-MM-DD"}
    {"start": "YYYY-MM-DD", "end": "YYYY-MM-DD"}   (end inclusive)
    {"start": "YYYY-MM-DD"}                         (open-ended)
    {"period": "this_week" | "this_month" | "this_year" | "last_year"}
    {"year": "YYYY"} or {"year": "YYYY-YYYY"}
  Omit date_filter when the question has no date constraint.

Reply with STRICT JSON only, no prose, no code fences:
{"kind": "...", "search_terms": "...", "date_filter": [...]}

Question: %s`

// Classifier buckets a free-text query via one completion call. It never
// fails: any service error or unparsable reply falls back to a plain
// semantic search over the raw query.
type Classifier struct {
	completer journal.Completer
	now       func() time.Time
	loc       *time.Location
}

// NewClassifier creates a classifier. now is injectable for tests; nil
// means time.Now.
func NewClassifier(completer journal.Completer, loc *time.Location, now func() time.Time) *Classifier {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Classifier{completer: completer, now: now, loc: loc}
}

// Classify categorizes the query. The zero-value fallback is
// {semantic, raw query, no filter}.
func (c *Classifier) Classify(ctx context.Context, userQuery string) journal.Classification {
	fallback := journal.Classification{Kind: journal.KindSemantic, SearchTerms: userQuery}

	now := c.now().In(c.loc)
	prompt := fmt.Sprintf(classifyPromptTemplate,
		now.Format("2006-01-02"), now.Format("Monday"), userQuery)

	raw, err := c.completer.Complete(ctx, prompt, journal.CompleteOptions{
		Temperature: 0,
		MaxTokens:   512,
	})
	if err != nil {
		slog.Warn("query classification failed, using semantic fallback", "error", err)
		return fallback
	}

	cls, err := parseClassification(raw)
	if err != nil {
		slog.Warn("unparsable classification reply, using semantic fallback",
			"error", err, "reply_len", len(raw))
		return fallback
	}

	if cls.Kind == journal.KindSemantic && strings.TrimSpace(cls.SearchTerms) == "" {
		cls.SearchTerms = userQuery
	}
	return *cls
}

// parseClassification extracts and validates the JSON object from a raw
// completion reply. The reply is untrusted text: it may wrap the object in
// prose or code fences, or emit near-JSON that needs repair.
func parseClassification(raw string) (*journal.Classification, error) {
	obj := firstJSONObject(raw)
	if obj == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var cls journal.Classification
	if err := json.Unmarshal([]byte(obj), &cls); err != nil {
		fixed, repairErr := jsonrepair.JSONRepair(obj)
		if repairErr != nil {
			return nil, fmt.Errorf("parse classification: %w", err)
		}
		if err := json.Unmarshal([]byte(fixed), &cls); err != nil {
			return nil, fmt.Errorf("parse repaired classification: %w", err)
		}
	}

	if !cls.Kind.Valid() {
		return nil, fmt.Errorf("unknown kind %q", cls.Kind)
	}
	return &cls, nil
}

// firstJSONObject returns the first balanced top-level {...} substring,
// tracking strings and escapes so braces inside values don't miscount.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
