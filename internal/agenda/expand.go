package agenda

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "evepanel/internal/log"
)

// maxOccurrencesPerEvent caps the expansion of a single RRULE.
const maxOccurrencesPerEvent = 5000

// Entry is one concrete occurrence in the display timezone.
type Entry struct {
	SourceID string
	UID      string
	Summary  string
	Location string
	AllDay   bool
	Start    time.Time
	End      time.Time
}

// Expand turns events into the entries that overlap [from, to), sorted by
// start time. RRULE, EXDATE, RECURRENCE-ID overrides and cancelled
// instances are honoured. A nil loc means time.Local.
func Expand(events []Event, from, to time.Time, loc *time.Location) ([]Entry, error) {
	if to.Before(from) {
		return nil, errors.New("agenda: range end before start")
	}
	if loc == nil {
		loc = time.Local
	}

	overrides := make(map[string][]Event)
	var base []Event
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		base = append(base, ev)
	}

	var out []Entry
	for _, ev := range base {
		if ev.RRule == "" {
			out = appendVisible(out, ev, ev.Start, ev.End, from, to, loc)
			continue
		}
		out = expandRecurring(out, ev, overrides[ev.UID], from, to, loc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.AllDay != b.AllDay {
			return a.AllDay
		}
		return a.Summary < b.Summary
	})
	return out, nil
}

func expandRecurring(out []Entry, ev Event, overrides []Event, from, to time.Time, loc *time.Location) []Entry {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("agenda: bad RRULE", err, "uid", ev.UID, "rrule", ev.RRule)
		return out
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Occurrences that started before from may still be running.
	dur := ev.End.Sub(ev.Start)
	starts := set.Between(from.Add(-dur), to, true)
	if len(starts) > maxOccurrencesPerEvent {
		appLog.Warn("agenda: occurrences truncated", "uid", ev.UID, "cap", maxOccurrencesPerEvent)
		starts = starts[:maxOccurrencesPerEvent]
	}

	for _, s := range starts {
		if o, ok := findOverride(overrides, s); ok {
			out = appendVisible(out, o, o.Start, o.End, from, to, loc)
			continue
		}
		out = appendVisible(out, ev, s, s.Add(dur), from, to, loc)
	}
	return out
}

// findOverride returns the override whose RECURRENCE-ID is the instance
// starting at start.
func findOverride(overrides []Event, start time.Time) (Event, bool) {
	for _, o := range overrides {
		if o.RecurrenceID.Equal(start) {
			return o, true
		}
		// A date-only RECURRENCE-ID names the whole day.
		if o.AllDay && sameDay(*o.RecurrenceID, start) {
			return o, true
		}
	}
	return Event{}, false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

func appendVisible(out []Entry, ev Event, start, end time.Time, from, to time.Time, loc *time.Location) []Entry {
	if ev.Cancelled {
		return out
	}
	e := makeEntry(ev, start, end, loc)
	if !overlaps(e.Start, e.End, from, to) {
		return out
	}
	return append(out, e)
}

// makeEntry moves an occurrence into loc. All-day entries keep their
// calendar date rather than their instant.
func makeEntry(ev Event, start, end time.Time, loc *time.Location) Entry {
	e := Entry{
		SourceID: ev.SourceID,
		UID:      ev.UID,
		Summary:  ev.Summary,
		Location: ev.Location,
		AllDay:   ev.AllDay,
		Start:    start.In(loc),
		End:      end.In(loc),
	}
	if ev.AllDay {
		y, m, d := start.Date()
		days := int(end.Sub(start).Round(24*time.Hour) / (24 * time.Hour))
		if days < 1 {
			days = 1
		}
		e.Start = time.Date(y, m, d, 0, 0, 0, 0, loc)
		e.End = e.Start.AddDate(0, 0, days)
	}
	return e
}

func overlaps(start, end, from, to time.Time) bool {
	if !start.Before(to) {
		return false
	}
	if end.Equal(start) {
		return !start.Before(from)
	}
	return end.After(from)
}

// Collect fetches, parses and expands every source. A failing source is
// logged and skipped; an error is returned only when every source failed.
func Collect(ctx context.Context, f *Fetcher, sources []Source, from, to time.Time, loc *time.Location) ([]Entry, error) {
	var events []Event
	var errs []error
	for _, src := range sources {
		body, _, err := f.Fetch(ctx, src)
		if err == nil {
			var evs []Event
			if evs, err = Parse(src, body); err == nil {
				events = append(events, evs...)
				continue
			}
		}
		appLog.Error("agenda source failed", err, "id", src.ID, "url", redactURL(src.URL))
		errs = append(errs, fmt.Errorf("%s: %w", src.ID, err))
	}
	if len(sources) > 0 && len(errs) == len(sources) {
		return nil, errors.Join(errs...)
	}
	return Expand(events, from, to, loc)
}
