package query

import (
	"testing"
	"time"

	"github.com/journalkit/voxlog/internal/journal"
)

func testParser(t *testing.T, now time.Time) (*RangeParser, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return NewRangeParser(loc, func() time.Time { return now.In(loc) }), loc
}

func TestParse_SingleDate(t *testing.T) {
	p, loc := testParser(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	got := p.Parse([]journal.FilterSpec{{Date: "2026-01-15"}})
	if len(got) != 1 {
		t.Fatalf("got %d ranges, want 1", len(got))
	}

	wantStart := time.Date(2026, 1, 15, 0, 0, 0, 0, loc).Unix()
	wantEnd := time.Date(2026, 1, 16, 0, 0, 0, 0, loc).Unix()
	if got[0].Start != wantStart || got[0].End != wantEnd {
		t.Errorf("range = [%d, %d), want [%d, %d)", got[0].Start, got[0].End, wantStart, wantEnd)
	}

	// Boundary checks: 23:59:59 on the day matches, midnight after does not.
	lastSecond := time.Date(2026, 1, 15, 23, 59, 59, 0, loc).Unix()
	nextMidnight := time.Date(2026, 1, 16, 0, 0, 0, 0, loc).Unix()
	if !got[0].Contains(lastSecond) {
		t.Error("23:59:59 on the filter day should match")
	}
	if got[0].Contains(nextMidnight) {
		t.Error("midnight of the next day should not match")
	}
}

func TestParse_StartEndPair_EndInclusive(t *testing.T) {
	p, loc := testParser(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	got := p.Parse([]journal.FilterSpec{{Start: "2026-01-10", End: "2026-01-12"}})
	if len(got) != 1 {
		t.Fatalf("got %d ranges, want 1", len(got))
	}

	endOfLastDay := time.Date(2026, 1, 12, 18, 30, 0, 0, loc).Unix()
	if !got[0].Contains(endOfLastDay) {
		t.Error("end date must be inclusive of the whole day")
	}
	dayAfter := time.Date(2026, 1, 13, 0, 0, 0, 0, loc).Unix()
	if got[0].Contains(dayAfter) {
		t.Error("day after the end date should not match")
	}
}

func TestParse_StartOnlyIsOpenEnded(t *testing.T) {
	p, loc := testParser(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	got := p.Parse([]journal.FilterSpec{{Start: "2025-06-01"}})
	if len(got) != 1 {
		t.Fatalf("got %d ranges, want 1", len(got))
	}
	if got[0].End != 0 {
		t.Errorf("End = %d, want 0 (open)", got[0].End)
	}
	farFuture := time.Date(2099, 1, 1, 0, 0, 0, 0, loc).Unix()
	if !got[0].Contains(farFuture) {
		t.Error("open-ended range should match far-future timestamps")
	}
}

func TestParse_RelativePeriods(t *testing.T) {
	// Wednesday 2026-03-04.
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	p, loc := testParser(t, now)

	tests := []struct {
		period    string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"this_week", time.Date(2026, 3, 2, 0, 0, 0, 0, loc), time.Date(2026, 3, 9, 0, 0, 0, 0, loc)},
		{"this_month", time.Date(2026, 3, 1, 0, 0, 0, 0, loc), time.Date(2026, 4, 1, 0, 0, 0, 0, loc)},
		{"this_year", time.Date(2026, 1, 1, 0, 0, 0, 0, loc), time.Date(2027, 1, 1, 0, 0, 0, 0, loc)},
		{"last_year", time.Date(2025, 1, 1, 0, 0, 0, 0, loc), time.Date(2026, 1, 1, 0, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		got := p.Parse([]journal.FilterSpec{{Period: tt.period}})
		if len(got) != 1 {
			t.Errorf("%s: got %d ranges, want 1", tt.period, len(got))
			continue
		}
		if got[0].Start != tt.wantStart.Unix() || got[0].End != tt.wantEnd.Unix() {
			t.Errorf("%s: range = [%d, %d), want [%d, %d)",
				tt.period, got[0].Start, got[0].End, tt.wantStart.Unix(), tt.wantEnd.Unix())
		}
	}
}

func TestParse_YearAndYearSpan(t *testing.T) {
	p, loc := testParser(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	got := p.Parse([]journal.FilterSpec{{Year: "2024"}})
	if len(got) != 1 {
		t.Fatalf("bare year: got %d ranges, want 1", len(got))
	}
	if got[0].Start != time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Unix() ||
		got[0].End != time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Unix() {
		t.Errorf("bare year range wrong: %+v", got[0])
	}

	got = p.Parse([]journal.FilterSpec{{Year: "2023-2025"}})
	if len(got) != 1 {
		t.Fatalf("year span: got %d ranges, want 1", len(got))
	}
	if got[0].Start != time.Date(2023, 1, 1, 0, 0, 0, 0, loc).Unix() ||
		got[0].End != time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Unix() {
		t.Errorf("year span range wrong: %+v", got[0])
	}
}

func TestParse_MalformedSpecsDroppedSilently(t *testing.T) {
	p, _ := testParser(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	specs := []journal.FilterSpec{
		{Date: "not-a-date"},
		{Period: "next_century"},
		{Year: "20x4"},
		{Year: "2025-2023"}, // reversed span
		{Start: "2026-02-01", End: "2026-01-01"}, // end before start
		{},                 // nothing set
		{Date: "2026-05-05"}, // the one good spec
	}

	got := p.Parse(specs)
	if len(got) != 1 {
		t.Fatalf("got %d ranges, want 1 (malformed specs must be dropped)", len(got))
	}
	if got[0].Description != "2026-05-05" {
		t.Errorf("kept the wrong spec: %q", got[0].Description)
	}
}

func TestParse_AllMalformedMeansNoFilter(t *testing.T) {
	p, _ := testParser(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	got := p.Parse([]journal.FilterSpec{{Date: "garbage"}, {Period: "??"}})
	if got != nil {
		t.Errorf("got %+v, want nil (no filter = unrestricted)", got)
	}

	// And nil filter means everything matches.
	if !journal.InAnyRange(12345, got) {
		t.Error("nil filter must match everything")
	}
}

func TestParse_DescriptionsAreHumanReadable(t *testing.T) {
	p, _ := testParser(t, time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC))

	tests := []struct {
		spec journal.FilterSpec
		want string
	}{
		{journal.FilterSpec{Date: "2026-01-15"}, "2026-01-15"},
		{journal.FilterSpec{Start: "2026-01-10", End: "2026-01-12"}, "2026-01-10 to 2026-01-12"},
		{journal.FilterSpec{Start: "2026-01-10"}, "from 2026-01-10"},
		{journal.FilterSpec{Period: "this_week"}, "this week"},
		{journal.FilterSpec{Year: "2023-2025"}, "2023 to 2025"},
	}
	for _, tt := range tests {
		got := p.Parse([]journal.FilterSpec{tt.spec})
		if len(got) != 1 || got[0].Description != tt.want {
			t.Errorf("spec %+v: description = %q, want %q", tt.spec, got[0].Description, tt.want)
		}
	}
}
