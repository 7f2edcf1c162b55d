// Package calendar merges dated documents, habit occurrences and external
// events into a per-day schedule.
package calendar

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/parser"
	"github.com/starford/gtdspace/internal/recurrence"
)

// DisplayTimeLayout is the 12-hour format entries are ordered by.
const DisplayTimeLayout = "03:04 PM"

// entryNamespace seeds the name-based entry IDs.
var entryNamespace = uuid.MustParse("0f3c2a6e-8d7b-4b1e-9a55-6c1d2f7e4a90")

// Input is everything one reconciliation pass reads.
type Input struct {
	Documents []models.Document
	External  []models.ExternalEvent
	Window    Window
	Kinds     KindSet
}

// Day is one column of the schedule.
type Day struct {
	Date    time.Time              `json:"date"`
	Entries []models.CalendarEntry `json:"entries"`
}

// Schedule is the reconciled view of a window.
type Schedule struct {
	Window Window `json:"window"`
	Days   []Day  `json:"days"`
}

// Entries returns all entries in day order.
func (s Schedule) Entries() []models.CalendarEntry {
	var out []models.CalendarEntry
	for _, d := range s.Days {
		out = append(out, d.Entries...)
	}
	return out
}

// Find returns the entry with the given ID.
func (s Schedule) Find(id string) (models.CalendarEntry, bool) {
	for _, d := range s.Days {
		for _, e := range d.Entries {
			if e.ID == id {
				return e, true
			}
		}
	}
	return models.CalendarEntry{}, false
}

// Reconcile builds the schedule for in.Window. It is pure: the same input
// always yields the same entries, IDs and order.
func Reconcile(in Input) Schedule {
	var entries []models.CalendarEntry

	for _, doc := range in.Documents {
		if doc.Kind == models.KindHabit {
			if in.Kinds.Enabled(models.EntryHabit) {
				entries = append(entries, habitEntries(doc, in.Window)...)
			}
			continue
		}
		if in.Kinds.Enabled(models.EntryDue) && !doc.Fields.Due.IsZero() {
			if e := documentEntry(doc, models.EntryDue, doc.Fields.Due); in.Window.Contains(e.Start) {
				entries = append(entries, e)
			}
		}
		if in.Kinds.Enabled(models.EntryFocus) && !doc.Fields.Focus.IsZero() {
			if e := documentEntry(doc, models.EntryFocus, doc.Fields.Focus); in.Window.Contains(e.Start) {
				entries = append(entries, e)
			}
		}
	}

	if in.Kinds.Enabled(models.EntryExternal) {
		for _, ev := range in.External {
			if e := externalEntry(ev); in.Window.Contains(e.Start) {
				entries = append(entries, e)
			}
		}
	}

	return layout(in.Window, entries)
}

// EntryID derives the stable identity of an entry. Habit occurrences add the
// occurrence's minute ordinal so IDs survive window changes.
func EntryID(kind models.EntryKind, source string, occurrence *time.Time) string {
	name := string(kind) + "|" + source
	if occurrence != nil {
		name += "|" + strconv.FormatInt(occurrence.Unix()/60, 10)
	}
	return uuid.NewSHA1(entryNamespace, []byte(name)).String()
}

func documentEntry(doc models.Document, kind models.EntryKind, at models.When) models.CalendarEntry {
	e := models.CalendarEntry{
		ID:          EntryID(kind, doc.Path, nil),
		Title:       doc.Fields.Title,
		Kind:        kind,
		Start:       at.Time,
		Timed:       at.HasTime,
		SourcePath:  doc.Path,
		DocKind:     doc.Kind,
		Status:      doc.Fields.Status,
		ProjectName: parser.ProjectName(doc.Path),
		Effort:      doc.Fields.Effort,
	}
	if !at.HasTime {
		e.Start = at.Date()
	}
	if kind == models.EntryFocus && doc.Kind == models.KindAction && doc.Fields.Effort != "" {
		e.DurationMinutes = EffortMinutes(doc.Fields.Effort)
		end := e.Start.Add(time.Duration(e.DurationMinutes) * time.Minute)
		e.End = &end
	}
	return e
}

func habitEntries(doc models.Document, w Window) []models.CalendarEntry {
	def := models.RecurrenceDefinition{Created: doc.Fields.Created.Time, Frequency: doc.Fields.Frequency}
	focus := doc.Fields.Focus

	var out []models.CalendarEntry
	for _, occ := range recurrence.Expand(def, w.Start, w.End) {
		start, timed := occ, true
		switch {
		case def.Frequency == models.FrequencyFiveMinute:
		case focus.HasTime:
			start = time.Date(occ.Year(), occ.Month(), occ.Day(),
				focus.Time.Hour(), focus.Time.Minute(), 0, 0, occ.Location())
		default:
			start, timed = midnight(occ), false
		}
		if !w.Contains(start) {
			continue
		}
		out = append(out, models.CalendarEntry{
			ID:         EntryID(models.EntryHabit, doc.Path, &occ),
			Title:      doc.Fields.Title,
			Kind:       models.EntryHabit,
			Start:      start,
			Timed:      timed,
			SourcePath: doc.Path,
			DocKind:    models.KindHabit,
			Status:     doc.Fields.Status,
		})
	}
	return out
}

func externalEntry(ev models.ExternalEvent) models.CalendarEntry {
	e := models.CalendarEntry{
		ID:    EntryID(models.EntryExternal, ev.ID, nil),
		Title: ev.Title,
		Kind:  models.EntryExternal,
		Start: ev.Start,
		Timed: !ev.AllDay,
	}
	if !ev.End.IsZero() && ev.End.After(ev.Start) {
		end := ev.End
		e.End = &end
		e.DurationMinutes = int(ev.End.Sub(ev.Start) / time.Minute)
	}
	return e
}

// priority orders entries that share a display time.
func priority(e models.CalendarEntry) int {
	switch {
	case e.Kind == models.EntryHabit:
		return 0
	case e.Kind == models.EntryExternal:
		return 3
	case e.DocKind == models.KindAction:
		return 1
	default:
		return 2
	}
}

// less orders entries within a day. Timed entries compare by their 12-hour
// display string, so "01:00 PM" sorts before "09:00 AM".
func less(a, b models.CalendarEntry) bool {
	if a.Timed != b.Timed {
		return a.Timed
	}
	if a.Timed {
		as, bs := a.Start.Format(DisplayTimeLayout), b.Start.Format(DisplayTimeLayout)
		if as != bs {
			return as < bs
		}
	}
	if pa, pb := priority(a), priority(b); pa != pb {
		return pa < pb
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.ID < b.ID
}

// layout buckets entries by day, orders each day and assigns side-by-side
// slots to timed entries that start on the same minute.
func layout(w Window, entries []models.CalendarEntry) Schedule {
	days := w.Days()
	index := make(map[string]int, len(days))
	s := Schedule{Window: w, Days: make([]Day, len(days))}
	for i, d := range days {
		s.Days[i] = Day{Date: d, Entries: []models.CalendarEntry{}}
		index[d.Format(parser.DateLayout)] = i
	}

	loc := w.Start.Location()
	for _, e := range entries {
		i, ok := index[e.Start.In(loc).Format(parser.DateLayout)]
		if !ok {
			continue
		}
		s.Days[i].Entries = append(s.Days[i].Entries, e)
	}

	for i := range s.Days {
		list := s.Days[i].Entries
		sort.SliceStable(list, func(a, b int) bool { return less(list[a], list[b]) })
		assignSlots(list)
	}
	return s
}

func assignSlots(list []models.CalendarEntry) {
	groups := make(map[int64][]int)
	for i := range list {
		list[i].Slot, list[i].Slots = 0, 1
		if !list[i].Timed {
			continue
		}
		key := list[i].Start.Unix() / 60
		groups[key] = append(groups[key], i)
	}
	for _, idx := range groups {
		for slot, i := range idx {
			list[i].Slot = slot
			list[i].Slots = len(idx)
		}
	}
}
