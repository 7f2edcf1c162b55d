package parser

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/starford/gtdspace/internal/models"
)

// Canonical datetime layouts written by Encode.
const (
	DateTimeLayout = "2006-01-02T15:04:05"
	DateLayout     = "2006-01-02"
)

var timedLayouts = []string{
	DateTimeLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseWhen reads a datetime tag value. Offsets in RFC 3339 input are dropped
// and the written wall-clock time is kept in loc.
func ParseWhen(s string, loc *time.Location) (models.When, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "not set") {
		return models.When{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
		return models.When{Time: wall, HasTime: true}, true
	}
	for _, layout := range timedLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return models.When{Time: t, HasTime: true}, true
		}
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return models.When{Time: t}, true
	}
	return models.When{}, false
}

// FormatWhen renders w in canonical form; the zero value renders empty.
func FormatWhen(w models.When) string {
	switch {
	case w.IsZero():
		return ""
	case w.HasTime:
		return w.Time.Format(DateTimeLayout)
	default:
		return w.Time.Format(DateLayout)
	}
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "-", " ", "-").Replace(s)
}

var statusAliases = map[string]models.Status{
	"in-progress": models.StatusInProgress,
	"inprogress":  models.StatusInProgress,
	"active":      models.StatusInProgress,
	"waiting":     models.StatusWaiting,
	"waiting-for": models.StatusWaiting,
	"on-hold":     models.StatusWaiting,
	"completed":   models.StatusCompleted,
	"complete":    models.StatusCompleted,
	"done":        models.StatusCompleted,
	"todo":        models.StatusTodo,
	"to-do":       models.StatusTodo,
}

// ParseStatus maps a stored status value to a Status.
func ParseStatus(s string) (models.Status, bool) {
	st, ok := statusAliases[normalizeEnum(s)]
	return st, ok
}

func parseHabitStatus(s string) (models.Status, bool) {
	switch normalizeEnum(s) {
	case "true", "checked", "yes":
		return models.StatusCompleted, true
	case "false", "unchecked", "no":
		return models.StatusTodo, true
	}
	st, ok := ParseStatus(s)
	if !ok {
		return "", false
	}
	if st == models.StatusCompleted {
		return st, true
	}
	return models.StatusTodo, true
}

// ParseEffort maps a stored effort value to an Effort.
func ParseEffort(s string) (models.Effort, bool) {
	switch normalizeEnum(s) {
	case "small", "s":
		return models.EffortSmall, true
	case "medium", "m":
		return models.EffortMedium, true
	case "large", "l":
		return models.EffortLarge, true
	case "extra-large", "extralarge", "xl":
		return models.EffortExtraLarge, true
	}
	return "", false
}

// ParseReferences decodes a reference list stored as a JSON array, a
// percent-encoded JSON array or a comma-joined string.
func ParseReferences(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if strings.HasPrefix(strings.ToLower(v), "%5b") {
		if u, err := url.PathUnescape(v); err == nil {
			v = u
		}
	}
	var items []string
	if strings.HasPrefix(v, "[") {
		if err := json.Unmarshal([]byte(v), &items); err != nil {
			items = strings.Split(strings.TrimSuffix(strings.TrimPrefix(v, "["), "]"), ",")
		}
	} else {
		items = strings.Split(v, ",")
	}
	return NormalizeReferences(items)
}

// NormalizeReferences trims, converts separators to forward slashes, drops
// index documents and removes duplicates keeping the first occurrence.
func NormalizeReferences(items []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		s := strings.Trim(strings.TrimSpace(it), `"'`)
		s = strings.ReplaceAll(s, `\`, "/")
		for strings.Contains(s, "//") {
			s = strings.ReplaceAll(s, "//", "/")
		}
		if s == "" || IsIndexDocument(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// FormatReferences renders a reference list in the canonical comma-joined form.
func FormatReferences(items []string) string {
	return strings.Join(NormalizeReferences(items), ",")
}
