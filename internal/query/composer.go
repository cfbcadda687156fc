package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/journalkit/voxlog/internal/journal"
)

const composePromptTemplate = `You are a personal voice-journal assistant. The numbered excerpts below are
the user's own transcribed voice notes. Answer the question directly and
conversationally, grounded only in the excerpts. Scale the level of detail
to what the question asks for. Do not invent entries, dates, or a sources
list; sources are appended separately.

Journal excerpts:
%s

Question: %s`

const defaultMaxContextTokens = 6000

// Composer builds a grounded prompt from retrieved entries, asks the
// completion service for an answer, and appends a citation block the core
// assembles itself so provenance never depends on model output.
type Composer struct {
	completer        journal.Completer
	loc              *time.Location
	maxContextTokens int
	encoder          *tiktoken.Tiktoken // nil: fall back to a byte heuristic
}

// NewComposer creates a composer. Token counting uses cl100k_base when the
// encoding is available; otherwise a conservative bytes/4 estimate.
func NewComposer(completer journal.Completer, loc *time.Location, maxContextTokens int) *Composer {
	if loc == nil {
		loc = time.Local
	}
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Warn("tiktoken encoding unavailable, using byte estimate", "error", err)
		enc = nil
	}
	return &Composer{
		completer:        completer,
		loc:              loc,
		maxContextTokens: maxContextTokens,
		encoder:          enc,
	}
}

// Compose answers the query from the given entries. Callers must not pass
// an empty entry list; the orchestration layer owns the "no results" reply.
func (c *Composer) Compose(ctx context.Context, userQuery string, entries []journal.Entry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("compose called with no entries")
	}

	contextBlock, used := c.buildContext(entries)
	prompt := fmt.Sprintf(composePromptTemplate, contextBlock, userQuery)

	answer, err := c.completer.Complete(ctx, prompt, journal.CompleteOptions{
		Temperature: 0.4,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", &journal.CompletionError{Err: err}
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", &journal.CompletionError{Err: fmt.Errorf("empty answer")}
	}

	return answer + "\n\n" + FormatSources(entries[:used], c.loc), nil
}

// buildContext renders entries as numbered excerpts, stopping when the
// token budget is spent. At least one entry is always included. Returns
// the block and how many entries made it in.
func (c *Composer) buildContext(entries []journal.Entry) (string, int) {
	var b strings.Builder
	budget := c.maxContextTokens
	used := 0

	for i, e := range entries {
		excerpt := fmt.Sprintf("[%d] %s (%s)\n%s\n\n",
			i+1, formatEntryTime(e, c.loc), formatDuration(e.DurationSeconds), e.Transcript)

		cost := c.countTokens(excerpt)
		if used > 0 && cost > budget {
			slog.Debug("context budget exhausted", "included", used, "total", len(entries))
			break
		}
		b.WriteString(excerpt)
		budget -= cost
		used++
	}

	return strings.TrimRight(b.String(), "\n"), used
}

func (c *Composer) countTokens(s string) int {
	if c.encoder != nil {
		return len(c.encoder.Encode(s, nil, nil))
	}
	return len(s)/4 + 1
}

// FormatSources renders the deterministic citation block for the answered
// entries. It is assembled here, never by the model, so every answer stays
// traceable to specific entries with stable formatting.
func FormatSources(entries []journal.Entry, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("Sources:")
	for i, e := range entries {
		b.WriteString(fmt.Sprintf("\n[%d] %s (%s)",
			i+1, formatEntryTime(e, loc), formatDuration(e.DurationSeconds)))
	}
	return b.String()
}

func formatEntryTime(e journal.Entry, loc *time.Location) string {
	return e.Time(loc).Format("Mon, 02 Jan 2006 15:04")
}

func formatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
}
