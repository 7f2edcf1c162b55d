package workspace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starford/gtdspace/internal/apperr"
	"github.com/starford/gtdspace/internal/calendar"
	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/parser"
	"github.com/starford/gtdspace/internal/storage"
)

var fixedNow = time.Date(2024, 6, 4, 8, 0, 0, 0, time.UTC)

const (
	actionPath = "Projects/Launch/Ship it.md"
	habitPath  = "Habits/Stretch.md"
)

var files = map[string]string{
	actionPath: "# Ship it\n\n## Status\n[!singleselect:status:in-progress]\n\n## Due Date\n[!datetime:due_date:2024-06-05]\n",
	"Projects/Launch/README.md": "# Launch\n\n## Status\n[!singleselect:project-status:in-progress]\n",
	habitPath:  "# Stretch\n\n## Frequency\n[!singleselect:habit-frequency:daily]\n\n## Created\n[!datetime:created_date:2024-01-01]\n",
	"Goals/Run a marathon.md": "# Run a marathon\n",
	"Goals/README.md":         "# Goals\n",
}

func newStore(t *testing.T, opts ...Option) (*Store, *storage.FS) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	for p, content := range files {
		require.NoError(t, fs.Write(p, []byte(content)))
	}
	opts = append([]Option{WithLocation(time.UTC), WithClock(func() time.Time { return fixedNow })}, opts...)
	s := New(fs, opts...)
	require.NoError(t, s.Load(context.Background()))
	return s, fs
}

func entriesOfKind(s calendar.Schedule, k models.EntryKind) []models.CalendarEntry {
	var out []models.CalendarEntry
	for _, e := range s.Entries() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

func TestLoad_BuildsCurrentWeek(t *testing.T) {
	s, _ := newStore(t)

	w := s.Window()
	require.True(t, w.Start.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)))
	require.Len(t, s.Documents(""), len(files))
	require.Len(t, s.Habits(), 1)

	sched := s.Schedule()
	require.Len(t, entriesOfKind(sched, models.EntryHabit), 7)
	due := entriesOfKind(sched, models.EntryDue)
	require.Len(t, due, 1)
	require.Equal(t, "Ship it", due[0].Title)
	require.Equal(t, "Launch", due[0].ProjectName)
}

func TestHandleMove_WritesThroughAndRefreshes(t *testing.T) {
	var notified int
	s, fs := newStore(t, WithListener(func(calendar.Schedule) { notified++ }))
	entry := entriesOfKind(s.Schedule(), models.EntryDue)[0]
	require.Equal(t, 1, notified, "Load publishes the first schedule")

	res, err := s.HandleMove(context.Background(), Gesture{EntryID: entry.ID, TargetDate: "2024-06-07"})
	require.NoError(t, err)
	require.Equal(t, "2024-06-07", res.NewValue)

	data, err := fs.Read(actionPath)
	require.NoError(t, err)
	v, _ := parser.Value(data, parser.KeyDue)
	require.Equal(t, "2024-06-07", v)

	moved, ok := s.Entry(entry.ID)
	require.True(t, ok, "due entry keeps its ID after the move")
	require.True(t, moved.Start.Equal(time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 2, notified)

	res, err = s.HandleMove(context.Background(), Gesture{EntryID: entry.ID, TargetDate: "2024-06-07"})
	require.NoError(t, err)
	require.True(t, res.Skipped)
}

func TestHandleMove_Errors(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.HandleMove(context.Background(), Gesture{EntryID: "nope", TargetDate: "2024-06-07"})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	habit := entriesOfKind(s.Schedule(), models.EntryHabit)[0]
	_, err = s.HandleMove(context.Background(), Gesture{EntryID: habit.ID, TargetDate: "2024-06-07"})
	require.ErrorIs(t, err, apperr.ErrNotRelocatable)

	due := entriesOfKind(s.Schedule(), models.EntryDue)[0]
	_, err = s.HandleMove(context.Background(), Gesture{EntryID: due.ID, TargetDate: "next friday"})
	require.ErrorIs(t, err, apperr.ErrInvalidGesture)
}

func TestSetWindowAndKinds(t *testing.T) {
	s, _ := newStore(t)

	s.SetWindow(calendar.DaysWindow(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), 2))
	require.Empty(t, entriesOfKind(s.Schedule(), models.EntryDue))
	require.Len(t, entriesOfKind(s.Schedule(), models.EntryHabit), 2)

	s.SetKinds(calendar.KindSet{models.EntryDue: true})
	require.Empty(t, s.Schedule().Entries())
}

func TestRefreshAndForget(t *testing.T) {
	s, fs := newStore(t)

	require.NoError(t, fs.Delete(habitPath))
	require.NoError(t, s.Refresh(context.Background(), habitPath, nil))
	_, ok := s.Document(habitPath)
	require.False(t, ok)
	require.Empty(t, entriesOfKind(s.Schedule(), models.EntryHabit))

	text := "# Plan\n\n## Focus Date\n[!datetime:focus_date_time:2024-06-06T10:00:00]\n"
	require.NoError(t, s.Refresh(context.Background(), "Projects/Launch/Plan.md", []byte(text)))
	focus := entriesOfKind(s.Schedule(), models.EntryFocus)
	require.Len(t, focus, 1)
	require.Equal(t, "Plan", focus[0].Title)
}

func TestSetExternal(t *testing.T) {
	s, _ := newStore(t)
	s.SetExternal([]models.ExternalEvent{{ID: "g1", Title: "Dentist", Start: time.Date(2024, 6, 6, 15, 0, 0, 0, time.UTC)}})
	ext := entriesOfKind(s.Schedule(), models.EntryExternal)
	require.Len(t, ext, 1)

	_, err := s.HandleMove(context.Background(), Gesture{EntryID: ext[0].ID, TargetDate: "2024-06-07"})
	require.ErrorIs(t, err, apperr.ErrNotRelocatable)
}

func TestReferenceOptions(t *testing.T) {
	s, _ := newStore(t)

	goals, err := s.ReferenceOptions(context.Background(), models.HorizonGoals)
	require.NoError(t, err)
	require.Equal(t, []Choice{{Path: "Goals/Run a marathon.md", Name: "Run a marathon"}}, goals)

	projects, err := s.ReferenceOptions(context.Background(), models.HorizonProjects)
	require.NoError(t, err)
	require.Equal(t, []Choice{{Path: "Projects/Launch", Name: "Launch"}}, projects)

	vision, err := s.ReferenceOptions(context.Background(), models.HorizonVision)
	require.NoError(t, err)
	require.Empty(t, vision)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ReferenceOptions(ctx, models.HorizonGeneral)
	require.True(t, errors.Is(err, context.Canceled))
}
