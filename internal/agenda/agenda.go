// Package agenda renders schedules and habits as terminal tables.
package agenda

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/starford/gtdspace/internal/calendar"
	"github.com/starford/gtdspace/internal/habits"
	"github.com/starford/gtdspace/internal/models"
)

const dayLayout = "Mon Jan 2"

var (
	heading = color.New(color.Bold, color.Underline).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()

	kindColors = map[models.EntryKind]*color.Color{
		models.EntryDue:      color.New(color.FgRed),
		models.EntryFocus:    color.New(color.FgCyan),
		models.EntryHabit:    color.New(color.FgGreen),
		models.EntryExternal: color.New(color.FgYellow),
	}
)

// Printer writes human readable views of the workspace.
type Printer struct {
	out io.Writer
}

// NewPrinter returns a Printer writing to out. A nil out writes to
// color.Output.
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = color.Output
	}
	return &Printer{out: out}
}

// Schedule prints one table per day. Days without entries are listed with a
// placeholder so gaps in the week stay visible.
func (p *Printer) Schedule(s calendar.Schedule) error {
	for i, d := range s.Days {
		if i > 0 {
			if _, err := fmt.Fprintln(p.out); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(p.out, heading(d.Date.Format(dayLayout))); err != nil {
			return err
		}
		if len(d.Entries) == 0 {
			if _, err := fmt.Fprintln(p.out, faint("  nothing scheduled")); err != nil {
				return err
			}
			continue
		}

		tbl := uitable.New()
		tbl.Separator = "  "
		for _, e := range d.Entries {
			tbl.AddRow(entryRow(e)...)
		}
		if _, err := fmt.Fprintln(p.out, tbl); err != nil {
			return err
		}
	}
	return nil
}

func entryRow(e models.CalendarEntry) []any {
	when := "all day"
	if e.Timed {
		when = e.Start.Format(calendar.DisplayTimeLayout)
		if e.DurationMinutes > 0 {
			when += fmt.Sprintf(" (%dm)", e.DurationMinutes)
		}
	}

	kind := string(e.Kind)
	if c, ok := kindColors[e.Kind]; ok {
		kind = c.Sprint(kind)
	}

	title := e.Title
	if e.Status == models.StatusCompleted {
		title = faint(title)
	}

	var detail []string
	if e.ProjectName != "" {
		detail = append(detail, e.ProjectName)
	}
	if e.Effort != "" {
		detail = append(detail, string(e.Effort))
	}
	return []any{"  " + when, kind, title, strings.Join(detail, " / ")}
}

// Habits prints the completion state of every habit.
func (p *Printer) Habits(list []habits.Summary) error {
	if _, err := fmt.Fprintln(p.out, heading("Habits")); err != nil {
		return err
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(p.out, faint("  no habits"))
		return err
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(faint("  STATE"), faint("HABIT"), faint("FREQUENCY"), faint("NEXT RESET"))
	for _, h := range list {
		state := color.New(color.FgRed).Sprint("  [ ]")
		if h.Completed {
			state = color.New(color.FgGreen).Sprint("  [x]")
		}
		next := "-"
		if !h.NextReset.IsZero() {
			next = h.NextReset.Format("Mon Jan 2 " + calendar.DisplayTimeLayout)
		}
		tbl.AddRow(state, h.Title, string(h.Frequency), next)
	}
	_, err := fmt.Fprintln(p.out, tbl)
	return err
}

// Reset reports the habits that a reset pass rewrote.
func (p *Printer) Reset(paths []string) error {
	if len(paths) == 0 {
		_, err := fmt.Fprintln(p.out, "no habits were due for reset")
		return err
	}
	for _, path := range paths {
		if _, err := fmt.Fprintf(p.out, "reset %s\n", path); err != nil {
			return err
		}
	}
	return nil
}
