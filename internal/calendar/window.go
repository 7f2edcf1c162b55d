package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/gtdspace/internal/models"
)

// Window is a viewing range of whole days. End is the last instant of the
// last day.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DaysWindow returns the window of n days starting on from's date.
func DaysWindow(from time.Time, n int) Window {
	if n < 1 {
		n = 1
	}
	start := midnight(from)
	return Window{Start: start, End: start.AddDate(0, 0, n).Add(-time.Nanosecond)}
}

// WeekWindow returns the seven-day window containing t that begins on weekStart.
func WeekWindow(t time.Time, weekStart time.Weekday) Window {
	offset := (int(t.Weekday()) - int(weekStart) + 7) % 7
	return DaysWindow(midnight(t).AddDate(0, 0, -offset), 7)
}

// Contains reports whether t lies inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Equal reports whether both windows cover the same instants.
func (w Window) Equal(o Window) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}

// Days returns midnight of every day in the window.
func (w Window) Days() []time.Time {
	var out []time.Time
	for d := midnight(w.Start); !d.After(w.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Shift moves the window by n whole weeks.
func (w Window) Shift(weeks int) Window {
	return Window{Start: w.Start.AddDate(0, 0, 7*weeks), End: w.End.AddDate(0, 0, 7*weeks)}
}

const dateLayout = "2006-01-02"

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseWindow builds a window from inclusive YYYY-MM-DD bounds, or from start
// and a span when end is empty. ok is false when start is empty.
func ParseWindow(start, end, span string, loc *time.Location) (w Window, ok bool, err error) {
	if start == "" {
		return Window{}, false, nil
	}
	if loc == nil {
		loc = time.Local
	}
	from, err := time.ParseInLocation(dateLayout, start, loc)
	if err != nil {
		return Window{}, false, fmt.Errorf("invalid start %q", start)
	}
	if end != "" {
		to, err := time.ParseInLocation(dateLayout, end, loc)
		if err != nil {
			return Window{}, false, fmt.Errorf("invalid end %q", end)
		}
		if to.Before(from) {
			return Window{}, false, fmt.Errorf("end %s is before start %s", end, start)
		}
		days := 1
		for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
			days++
			if days > MaxWindowDays {
				return Window{}, false, fmt.Errorf("window %s to %s is longer than %d days", start, end, MaxWindowDays)
			}
		}
		return DaysWindow(from, days), true, nil
	}
	days, err := ParseSpan(span)
	if err != nil {
		return Window{}, false, err
	}
	return DaysWindow(from, days), true, nil
}

// DefaultSpan is the agenda length used when none is given.
const DefaultSpan = "1w"

// MaxWindowDays bounds every parsed window and span.
const MaxWindowDays = 366

var (
	spanPattern = regexp.MustCompile(`^\s*(\d+)\s*([a-z]+)`)
	spanUnits   = map[string]int{
		"d":     1,
		"day":   1,
		"days":  1,
		"w":     7,
		"wk":    7,
		"wks":   7,
		"week":  7,
		"weeks": 7,
	}
)

// ParseSpan parses a day count such as "1w", "3d" or "2w3d". An empty input
// yields DefaultSpan. Spans longer than MaxWindowDays are rejected.
func ParseSpan(input string) (int, error) {
	remaining := strings.ToLower(strings.TrimSpace(input))
	if remaining == "" {
		remaining = DefaultSpan
	}
	total := 0
	for len(remaining) > 0 {
		m := spanPattern.FindStringSubmatch(remaining)
		if len(m) != 3 {
			return 0, fmt.Errorf("invalid span segment %q", strings.TrimSpace(remaining))
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("invalid span value %q: %w", m[1], err)
		}
		unit, ok := spanUnits[m[2]]
		if !ok {
			return 0, fmt.Errorf("unsupported span unit %q", m[2])
		}
		if n > MaxWindowDays {
			return 0, fmt.Errorf("span %q is longer than %d days", strings.TrimSpace(input), MaxWindowDays)
		}
		total += n * unit
		if total > MaxWindowDays {
			return 0, fmt.Errorf("span %q is longer than %d days", strings.TrimSpace(input), MaxWindowDays)
		}
		remaining = remaining[len(m[0]):]
	}
	if total <= 0 {
		return 0, fmt.Errorf("span must be greater than zero")
	}
	return total, nil
}

// KindSet holds the enabled entry kinds. An empty set enables every kind.
type KindSet map[models.EntryKind]bool

// AllKinds lists every entry kind.
var AllKinds = []models.EntryKind{models.EntryDue, models.EntryFocus, models.EntryHabit, models.EntryExternal}

// ParseKinds reads a comma-separated kind list.
func ParseKinds(s string) (KindSet, error) {
	set := KindSet{}
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		k := models.EntryKind(part)
		switch k {
		case models.EntryDue, models.EntryFocus, models.EntryHabit, models.EntryExternal:
			set[k] = true
		default:
			return nil, fmt.Errorf("unknown entry kind %q", part)
		}
	}
	return set, nil
}

// Enabled reports whether entries of kind k are shown.
func (s KindSet) Enabled(k models.EntryKind) bool {
	return len(s) == 0 || s[k]
}
