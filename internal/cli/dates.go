package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/JonMunkholm/afterflow/internal/core"
)

// dateLayouts are tried before natural language parsing.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
}

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseDay resolves s ("2024-03-01", "yesterday", "last week") to a calendar
// day in loc and returns its first instant.
func parseDay(w *when.Parser, s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return startOfDay(t, loc), nil
		}
	}

	result, err := w.Parse(s, now.In(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	return startOfDay(result.Time, loc), nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// endOfDay returns the last instant of the day that starts at day.
func endOfDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// dateRange builds the inclusive export range. Either bound may be empty;
// nil means no date filter.
func dateRange(from, to string, now time.Time, loc *time.Location) (*core.DateRange, error) {
	if from == "" && to == "" {
		return nil, nil
	}

	w := newDateParser()
	r := &core.DateRange{
		End: time.Date(9999, 12, 31, 23, 59, 59, 0, loc),
	}

	if from != "" {
		day, err := parseDay(w, from, now, loc)
		if err != nil {
			return nil, fmt.Errorf("--from: %w", err)
		}
		r.Start = day
	}
	if to != "" {
		day, err := parseDay(w, to, now, loc)
		if err != nil {
			return nil, fmt.Errorf("--to: %w", err)
		}
		r.End = endOfDay(day)
	}

	if r.End.Before(r.Start) {
		return nil, fmt.Errorf("--from %s is after --to %s", from, to)
	}
	return r, nil
}
