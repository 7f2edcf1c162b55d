// Package ledger reads and writes the append-only history table embedded in
// habit documents.
package ledger

import (
	"strings"
	"time"

	"github.com/starford/gtdspace/internal/models"
)

// Default header used when a section has no table yet.
const (
	DefaultHeader    = "| Date | Time | Status | Action | Notes |"
	DefaultSeparator = "|------|------|--------|--------|-------|"
)

// Status and action labels written by the habit workflow.
const (
	StatusTodo     = "To Do"
	StatusComplete = "Complete"
	StatusMissed   = "Missed"

	ActionCreated   = "Created"
	ActionManual    = "Manual"
	ActionAutoReset = "Auto-Reset"
)

const (
	minCells     = 5
	lineBreak    = "<br>"
	cellDelim    = "|"
	escapedDelim = `\|`
)

// Row formats used for the date and time cells.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "3:04 PM"
)

// Table is a parsed ledger section.
type Table struct {
	Intro     []string
	Header    string
	Separator string
	Rows      []models.HistoryEntry
	// Kept holds table lines too short to be rows. They are written back
	// verbatim in their original position.
	Kept []KeptLine
	// Outro is everything from the first non-table, non-blank line after the
	// rows, verbatim.
	Outro string
}

// KeptLine is a table line that is not a history row. Before is the index
// of the row it precedes.
type KeptLine struct {
	Before int
	Line   string
}

// Parse splits a raw section into intro lines, table and outro. It never fails;
// rows with fewer than five cells are not history rows and land in Kept.
func Parse(section string) Table {
	var t Table
	lines := strings.SplitAfter(section, "\n")

	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\n")
		if isRow(line) {
			break
		}
		if line == "" && i == len(lines)-1 {
			// trailing remainder of SplitAfter
			break
		}
		t.Intro = append(t.Intro, line)
	}
	if i >= len(lines) || !isRow(strings.TrimRight(lines[i], "\n")) {
		return t
	}

	t.Header = strings.TrimRight(lines[i], "\n")
	i++
	if i < len(lines) && strings.TrimRight(lines[i], "\n") != "" {
		t.Separator = strings.TrimRight(lines[i], "\n")
		i++
	}

	for ; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !isRow(line) {
			t.Outro = strings.Join(lines[i:], "")
			break
		}
		cells := SplitRow(line)
		if len(cells) < minCells {
			t.Kept = append(t.Kept, KeptLine{Before: len(t.Rows), Line: line})
			continue
		}
		row := models.HistoryEntry{
			Date:    cells[0],
			Time:    cells[1],
			Status:  cells[2],
			Action:  cells[3],
			Details: cells[4],
		}
		if len(cells) > minCells {
			row.ExtraCells = cells[minCells:]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Reconstruct is the inverse of Parse for canonical input.
func Reconstruct(t Table) string {
	var b strings.Builder
	for _, line := range t.Intro {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	header, sep := t.Header, t.Separator
	if header == "" {
		header = DefaultHeader
	}
	if sep == "" {
		sep = DefaultSeparator
	}
	b.WriteString(header)
	b.WriteByte('\n')
	b.WriteString(sep)
	b.WriteByte('\n')

	k := 0
	for i, r := range t.Rows {
		for ; k < len(t.Kept) && t.Kept[k].Before <= i; k++ {
			b.WriteString(t.Kept[k].Line)
			b.WriteByte('\n')
		}
		b.WriteString(FormatRow(r))
		b.WriteByte('\n')
	}
	for ; k < len(t.Kept); k++ {
		b.WriteString(t.Kept[k].Line)
		b.WriteByte('\n')
	}

	if t.Outro != "" {
		b.WriteByte('\n')
		b.WriteString(t.Outro)
	}
	return b.String()
}

// Append pushes e to the end of the ledger. Earlier rows are never touched.
func (t *Table) Append(e models.HistoryEntry) {
	t.Rows = append(t.Rows, e)
}

// Last returns the newest row.
func (t Table) Last() (models.HistoryEntry, bool) {
	if len(t.Rows) == 0 {
		return models.HistoryEntry{}, false
	}
	return t.Rows[len(t.Rows)-1], true
}

// FormatRow renders one entry in canonical form.
func FormatRow(e models.HistoryEntry) string {
	cells := make([]string, 0, minCells+len(e.ExtraCells))
	cells = append(cells, e.Date, e.Time, e.Status, e.Action, e.Details)
	cells = append(cells, e.ExtraCells...)
	for i, c := range cells {
		cells[i] = encodeCell(c)
	}
	return "| " + strings.Join(cells, " | ") + " |"
}

// SplitRow tokenizes a table row into decoded cells. Escaped delimiters do not
// split cells.
func SplitRow(line string) []string {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, cellDelim)
	if strings.HasSuffix(s, cellDelim) && !strings.HasSuffix(s, escapedDelim) {
		s = s[:len(s)-1]
	}

	var (
		cells []string
		cur   strings.Builder
	)
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == '|':
			cur.WriteString(escapedDelim)
			i++
		case s[i] == '|':
			cells = append(cells, decodeCell(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	cells = append(cells, decodeCell(cur.String()))
	return cells
}

// NewEntry builds a row stamped with at.
func NewEntry(at time.Time, status, action, details string) models.HistoryEntry {
	return models.HistoryEntry{
		Date:    at.Format(DateLayout),
		Time:    at.Format(TimeLayout),
		Status:  status,
		Action:  action,
		Details: details,
	}
}

var rowTimeLayouts = []string{TimeLayout, "03:04 PM", "15:04", "15:04:05"}

// At parses the date and time cells of e in loc.
func At(e models.HistoryEntry, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(e.Date), loc)
	if err != nil {
		return time.Time{}, false
	}
	clock := strings.TrimSpace(e.Time)
	for _, layout := range rowTimeLayouts {
		if t, err := time.ParseInLocation(layout, clock, loc); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), true
		}
	}
	return day, true
}

func isRow(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), cellDelim)
}

// escapedBreak keeps a literal "<br>" typed in a cell from decoding as a
// line break.
const escapedBreak = `\<br>`

var cellDecoder = strings.NewReplacer(escapedBreak, lineBreak, escapedDelim, cellDelim, "<br />", "\n", "<br/>", "\n", lineBreak, "\n")

func decodeCell(c string) string {
	return cellDecoder.Replace(strings.TrimSpace(c))
}

var cellEncoder = strings.NewReplacer(lineBreak, escapedBreak, "\r\n", lineBreak, "\n", lineBreak, cellDelim, escapedDelim)

// encodeCell writes c in canonical form. Leading and trailing spaces are not
// preserved because cells are trimmed on read.
func encodeCell(c string) string {
	return cellEncoder.Replace(c)
}
