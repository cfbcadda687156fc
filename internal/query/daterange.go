// Package query implements the retrieval pipeline: classification of
// free-text questions, date-filter parsing, retrieval over the corpus
// index, and grounded answer composition.
package query

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/journalkit/voxlog/internal/journal"
)

var (
	yearRe     = regexp.MustCompile(`^\d{4}$`)
	yearSpanRe = regexp.MustCompile(`^(\d{4})\s*-\s*(\d{4})$`)
)

// RangeParser turns structured date-filter descriptions into absolute
// half-open [start, end) ranges in a fixed timezone. Weeks start on Monday.
type RangeParser struct {
	loc *time.Location
	now func() time.Time
}

// NewRangeParser creates a parser for the given timezone. now is
// injectable for tests; nil means time.Now.
func NewRangeParser(loc *time.Location, now func() time.Time) *RangeParser {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &RangeParser{loc: loc, now: now}
}

// Parse resolves each filter spec to a range, dropping malformed specs
// silently. A nil result means "no filter": the caller must treat it as
// match-everything, never match-nothing.
func (p *RangeParser) Parse(specs []journal.FilterSpec) []journal.DateRange {
	var ranges []journal.DateRange
	for _, spec := range specs {
		r, ok := p.parseOne(spec)
		if !ok {
			slog.Debug("dropping unusable date filter", "spec", fmt.Sprintf("%+v", spec))
			continue
		}
		ranges = append(ranges, r)
	}
	return ranges
}

func (p *RangeParser) parseOne(spec journal.FilterSpec) (journal.DateRange, bool) {
	switch {
	case spec.Period != "":
		return p.periodRange(spec.Period)
	case spec.Date != "":
		day, err := p.parseDay(spec.Date)
		if err != nil {
			return journal.DateRange{}, false
		}
		return journal.DateRange{
			Start:       day.Unix(),
			End:         day.AddDate(0, 0, 1).Unix(),
			Description: spec.Date,
		}, true
	case spec.Year != "":
		return p.yearRange(spec.Year)
	case spec.Start != "":
		start, err := p.parseDay(spec.Start)
		if err != nil {
			return journal.DateRange{}, false
		}
		if spec.End == "" {
			return journal.DateRange{
				Start:       start.Unix(),
				Description: "from " + spec.Start,
			}, true
		}
		end, err := p.parseDay(spec.End)
		if err != nil || end.Before(start) {
			return journal.DateRange{}, false
		}
		// End date is inclusive: push forward one day for the
		// half-open range.
		return journal.DateRange{
			Start:       start.Unix(),
			End:         end.AddDate(0, 0, 1).Unix(),
			Description: spec.Start + " to " + spec.End,
		}, true
	}
	return journal.DateRange{}, false
}

func (p *RangeParser) parseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, p.loc)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// periodRange computes calendar-aligned ranges against "now".
func (p *RangeParser) periodRange(period string) (journal.DateRange, bool) {
	now := p.now().In(p.loc)

	switch period {
	case "this_week":
		start := StartOfWeek(now)
		return journal.DateRange{
			Start:       start.Unix(),
			End:         start.AddDate(0, 0, 7).Unix(),
			Description: "this week",
		}, true
	case "this_month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, p.loc)
		return journal.DateRange{
			Start:       start.Unix(),
			End:         start.AddDate(0, 1, 0).Unix(),
			Description: "this month",
		}, true
	case "this_year":
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, p.loc)
		return journal.DateRange{
			Start:       start.Unix(),
			End:         start.AddDate(1, 0, 0).Unix(),
			Description: fmt.Sprintf("this year (%d)", now.Year()),
		}, true
	case "last_year":
		start := time.Date(now.Year()-1, 1, 1, 0, 0, 0, 0, p.loc)
		return journal.DateRange{
			Start:       start.Unix(),
			End:         start.AddDate(1, 0, 0).Unix(),
			Description: fmt.Sprintf("last year (%d)", now.Year()-1),
		}, true
	}
	return journal.DateRange{}, false
}

func (p *RangeParser) yearRange(s string) (journal.DateRange, bool) {
	if yearRe.MatchString(s) {
		y, _ := strconv.Atoi(s)
		start := time.Date(y, 1, 1, 0, 0, 0, 0, p.loc)
		return journal.DateRange{
			Start:       start.Unix(),
			End:         start.AddDate(1, 0, 0).Unix(),
			Description: s,
		}, true
	}
	if m := yearSpanRe.FindStringSubmatch(s); m != nil {
		from, _ := strconv.Atoi(m[1])
		to, _ := strconv.Atoi(m[2])
		if to < from {
			return journal.DateRange{}, false
		}
		return journal.DateRange{
			Start:       time.Date(from, 1, 1, 0, 0, 0, 0, p.loc).Unix(),
			End:         time.Date(to+1, 1, 1, 0, 0, 0, 0, p.loc).Unix(),
			Description: fmt.Sprintf("%d to %d", from, to),
		}, true
	}
	return journal.DateRange{}, false
}

// StartOfWeek returns midnight of the Monday of t's week.
func StartOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfDay returns midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
