package agenda

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/gtdspace/internal/calendar"
	"github.com/starford/gtdspace/internal/habits"
	"github.com/starford/gtdspace/internal/models"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestPrinter_Schedule(t *testing.T) {
	mon := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	tue := mon.AddDate(0, 0, 1)
	sched := calendar.Schedule{
		Days: []calendar.Day{
			{Date: mon, Entries: []models.CalendarEntry{
				{Title: "Ship it", Kind: models.EntryFocus, Timed: true, Start: mon.Add(9 * time.Hour),
					DurationMinutes: 60, ProjectName: "Launch", Effort: models.EffortMedium},
				{Title: "File taxes", Kind: models.EntryDue, Start: mon},
			}},
			{Date: tue},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf).Schedule(sched))
	out := buf.String()

	assert.Contains(t, out, "Mon Jun 3")
	assert.Contains(t, out, "09:00 AM (60m)")
	assert.Contains(t, out, "Launch / medium")
	assert.Contains(t, out, "all day")
	assert.Contains(t, out, "Tue Jun 4")
	assert.Contains(t, out, "nothing scheduled")
	assert.Less(t, strings.Index(out, "Ship it"), strings.Index(out, "File taxes"))
}

func TestPrinter_Habits(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	require.NoError(t, p.Habits(nil))
	assert.Contains(t, buf.String(), "no habits")

	buf.Reset()
	require.NoError(t, p.Habits([]habits.Summary{
		{Title: "Stretch", Frequency: models.FrequencyDaily, Completed: true,
			NextReset: time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)},
		{Title: "Read", Frequency: models.FrequencyWeekly},
	}))
	out := buf.String()
	assert.Contains(t, out, "[x]")
	assert.Contains(t, out, "[ ]")
	assert.Contains(t, out, "Wed Jun 5 12:00 AM")
	assert.Contains(t, out, "weekly")
}

func TestPrinter_Reset(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	require.NoError(t, p.Reset(nil))
	assert.Equal(t, "no habits were due for reset\n", buf.String())

	buf.Reset()
	require.NoError(t, p.Reset([]string{"Habits/Stretch.md"}))
	assert.Equal(t, "reset Habits/Stretch.md\n", buf.String())
}
