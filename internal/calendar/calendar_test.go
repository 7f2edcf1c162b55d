package calendar

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/parser"
)

func utc(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func decode(t *testing.T, path, text string) models.Document {
	t.Helper()
	return parser.Decode([]byte(text), parser.WithPath(path), parser.WithLocation(time.UTC))
}

func action(title string, focus, due models.When, effort models.Effort) models.Document {
	return models.Document{
		Path: "Projects/Launch/" + title + ".md",
		Kind: models.KindAction,
		Fields: models.Fields{
			Title: title, Status: models.StatusInProgress, Focus: focus, Due: due, Effort: effort,
		},
	}
}

func timed(t time.Time) models.When { return models.When{Time: t, HasTime: true} }

func TestReconcile_EffortDuration(t *testing.T) {
	doc := decode(t, "Projects/Launch/Write copy.md",
		"# Write copy\n\n## Focus Date\n[!datetime:focus_date_time:2024-05-01T09:00:00]\n\n## Effort\n[!singleselect:effort:large]\n")

	s := Reconcile(Input{Documents: []models.Document{doc}, Window: DaysWindow(utc(2024, 5, 1, 0, 0), 1)})
	entries := s.Entries()
	require.Len(t, entries, 1)

	e := entries[0]
	require.Equal(t, models.EntryFocus, e.Kind)
	require.Equal(t, 120, e.DurationMinutes)
	require.NotNil(t, e.End)
	require.True(t, e.End.Equal(utc(2024, 5, 1, 11, 0)), "end = %v", e.End)
	require.Equal(t, "Launch", e.ProjectName)
}

func TestReconcile_DueAndFocusEntries(t *testing.T) {
	doc := action("Plan", timed(utc(2024, 6, 3, 10, 0)), models.When{Time: utc(2024, 6, 5, 0, 0)}, "")
	s := Reconcile(Input{Documents: []models.Document{doc}, Window: WeekWindow(utc(2024, 6, 4, 0, 0), time.Monday)})

	entries := s.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, models.EntryFocus, entries[0].Kind)
	require.Zero(t, entries[0].DurationMinutes, "no effort means no duration")
	require.Equal(t, models.EntryDue, entries[1].Kind)
	require.False(t, entries[1].Timed)
}

func TestReconcile_LexicographicTimeOrder(t *testing.T) {
	docs := []models.Document{
		action("Morning", timed(utc(2024, 6, 3, 9, 0)), models.When{}, ""),
		action("Afternoon", timed(utc(2024, 6, 3, 13, 0)), models.When{}, ""),
		action("Late morning", timed(utc(2024, 6, 3, 11, 30)), models.When{}, ""),
		action("Someday", models.When{Time: utc(2024, 6, 3, 0, 0)}, models.When{}, ""),
	}
	s := Reconcile(Input{Documents: docs, Window: DaysWindow(utc(2024, 6, 3, 0, 0), 1)})

	var got []string
	for _, e := range s.Days[0].Entries {
		got = append(got, e.Title)
	}
	// "01:00 PM" < "09:00 AM" < "11:30 AM" as strings; untimed last.
	want := []string{"Afternoon", "Morning", "Late morning", "Someday"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_KindPriorityAndSlots(t *testing.T) {
	at := utc(2024, 6, 3, 9, 0)
	habit := decode(t, "Habits/Stretch.md",
		"# Stretch\n\n## Frequency\n[!singleselect:habit-frequency:daily]\n\n## Focus Time\n[!datetime:focus_date_time:2024-01-01T09:00:00]\n\n## Created\n[!datetime:created_date:2024-01-01]\n")
	project := models.Document{
		Path: "Projects/Launch/README.md", Kind: models.KindProject,
		Fields: models.Fields{Title: "Launch", Focus: timed(at)},
	}
	ext := models.ExternalEvent{ID: "evt-1", Title: "Standup", Start: at, End: at.Add(15 * time.Minute)}
	later := action("Later", timed(utc(2024, 6, 3, 9, 30)), models.When{}, models.EffortMedium)

	s := Reconcile(Input{
		Documents: []models.Document{project, later, action("Draft", timed(at), models.When{}, ""), habit},
		External:  []models.ExternalEvent{ext},
		Window:    DaysWindow(utc(2024, 6, 3, 0, 0), 1),
	})
	entries := s.Days[0].Entries
	require.Len(t, entries, 5)

	var kinds []string
	for _, e := range entries {
		kinds = append(kinds, e.Title)
	}
	require.Equal(t, []string{"Stretch", "Draft", "Launch", "Standup", "Later"}, kinds)

	for i := 0; i < 4; i++ {
		require.Equal(t, 4, entries[i].Slots, "entry %d", i)
		require.Equal(t, i, entries[i].Slot, "entry %d", i)
	}
	require.Equal(t, 1, entries[4].Slots, "different start time is not reflowed")
	require.Equal(t, 15, entries[3].DurationMinutes)
}

func TestReconcile_HabitOccurrencesUseFocusTime(t *testing.T) {
	habit := decode(t, "Habits/Run.md",
		"# Run\n\n## Frequency\n[!singleselect:habit-frequency:weekly]\n\n## Focus Time\n[!datetime:focus_date_time:2024-01-01T06:45:00]\n\n## Created\n[!datetime:created_date:2024-01-01]\n")
	s := Reconcile(Input{Documents: []models.Document{habit}, Window: WeekWindow(utc(2024, 3, 6, 0, 0), time.Monday)})

	entries := s.Entries()
	require.Len(t, entries, 1)
	require.True(t, entries[0].Start.Equal(utc(2024, 3, 4, 6, 45)), "start = %v", entries[0].Start)
	require.True(t, entries[0].Timed)
}

func TestReconcile_HabitWithoutFocusIsUntimed(t *testing.T) {
	habit := decode(t, "Habits/Journal.md",
		"# Journal\n\n## Frequency\n[!singleselect:habit-frequency:daily]\n\n## Created\n[!datetime:created_date:2024-01-01]\n")
	s := Reconcile(Input{Documents: []models.Document{habit}, Window: DaysWindow(utc(2024, 2, 1, 0, 0), 3)})
	entries := s.Entries()
	require.Len(t, entries, 3)
	for _, e := range entries {
		require.False(t, e.Timed)
	}
}

func TestReconcile_StableIDs(t *testing.T) {
	habit := decode(t, "Habits/Read.md",
		"# Read\n\n## Frequency\n[!singleselect:habit-frequency:daily]\n\n## Created\n[!datetime:created_date:2024-01-01]\n")
	week := WeekWindow(utc(2024, 3, 4, 0, 0), time.Monday)

	a := Reconcile(Input{Documents: []models.Document{habit}, Window: week})
	b := Reconcile(Input{Documents: []models.Document{habit}, Window: week})
	require.Equal(t, a.Entries(), b.Entries())

	// The same occurrence keeps its ID when it is reached from another window.
	shifted := Reconcile(Input{Documents: []models.Document{habit}, Window: DaysWindow(utc(2024, 3, 6, 0, 0), 2)})
	first := shifted.Entries()[0]
	same, ok := a.Find(first.ID)
	require.True(t, ok)
	require.True(t, same.Start.Equal(first.Start))
}

func TestReconcile_KindFilters(t *testing.T) {
	doc := action("Plan", timed(utc(2024, 6, 3, 10, 0)), models.When{Time: utc(2024, 6, 3, 0, 0)}, "")
	ext := models.ExternalEvent{ID: "x", Title: "Lunch", Start: utc(2024, 6, 3, 12, 0)}

	kinds, err := ParseKinds("due, external")
	require.NoError(t, err)
	s := Reconcile(Input{
		Documents: []models.Document{doc},
		External:  []models.ExternalEvent{ext},
		Window:    DaysWindow(utc(2024, 6, 3, 0, 0), 1),
		Kinds:     kinds,
	})
	for _, e := range s.Entries() {
		require.NotEqual(t, models.EntryFocus, e.Kind)
	}
	require.Len(t, s.Entries(), 2)

	_, err = ParseKinds("due,meetings")
	require.Error(t, err)
}

func TestWindowHelpers(t *testing.T) {
	w := WeekWindow(utc(2024, 3, 7, 15, 0), time.Monday)
	require.True(t, w.Start.Equal(utc(2024, 3, 4, 0, 0)))
	require.Len(t, w.Days(), 7)
	require.True(t, w.Contains(utc(2024, 3, 10, 23, 59)))
	require.False(t, w.Contains(utc(2024, 3, 11, 0, 0)))
	require.True(t, w.Shift(1).Start.Equal(utc(2024, 3, 11, 0, 0)))

	days, err := ParseSpan("1w2d")
	require.NoError(t, err)
	require.Equal(t, 9, days)
	days, err = ParseSpan("")
	require.NoError(t, err)
	require.Equal(t, 7, days)
	_, err = ParseSpan("3h")
	require.Error(t, err)
}

func TestEffortForMinutes(t *testing.T) {
	cases := map[int]models.Effort{
		10: models.EffortSmall, 44: models.EffortSmall, 45: models.EffortMedium,
		89: models.EffortMedium, 120: models.EffortLarge, 150: models.EffortExtraLarge, 400: models.EffortExtraLarge,
	}
	for minutes, want := range cases {
		require.Equal(t, want, EffortForMinutes(minutes), "minutes=%d", minutes)
	}
	for _, e := range []models.Effort{models.EffortSmall, models.EffortMedium, models.EffortLarge, models.EffortExtraLarge} {
		require.Equal(t, e, EffortForMinutes(EffortMinutes(e)))
	}
	require.Equal(t, DefaultEffortMinutes, EffortMinutes("huge"))
}

func TestParseWindow(t *testing.T) {
	w, ok, err := ParseWindow("2024-06-03", "2024-06-09", "", time.UTC)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, w.Days(), 7)
	require.True(t, w.Equal(WeekWindow(utc(2024, 6, 5, 0, 0), time.Monday)))

	w, ok, err = ParseWindow("2024-06-03", "", "3d", time.UTC)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, w.Days(), 3)

	_, ok, err = ParseWindow("", "", "", time.UTC)
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = ParseWindow("2024-06-09", "2024-06-03", "", time.UTC)
	require.Error(t, err)
	_, _, err = ParseWindow("June 3", "", "", time.UTC)
	require.Error(t, err)
}

func TestParseWindow_Bounded(t *testing.T) {
	w, ok, err := ParseWindow("2024-01-01", "2024-12-31", "", time.UTC)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, w.Days(), MaxWindowDays)

	_, _, err = ParseWindow("2023-01-01", "2024-01-02", "", time.UTC)
	require.Error(t, err)
	_, _, err = ParseWindow("0001-01-01", "9999-12-31", "", time.UTC)
	require.Error(t, err)
	_, _, err = ParseWindow("2024-06-03", "", "53w", time.UTC)
	require.Error(t, err)
}

func TestParseSpan_Bounded(t *testing.T) {
	days, err := ParseSpan("52w2d")
	require.NoError(t, err)
	require.Equal(t, MaxWindowDays, days)

	for _, in := range []string{"999999999w", "367d", "52w3d", "99999999999999999999d"} {
		_, err := ParseSpan(in)
		require.Error(t, err, in)
	}
}
