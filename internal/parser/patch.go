package parser

import (
	"strings"
	"time"

	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/recurrence"
)

// Patch sets the value of the first tag with key in data and returns the new
// text. Bytes outside the tag value are left untouched. When no such tag
// exists a "## Heading" block carrying it is inserted after the existing
// metadata block.
func Patch(data []byte, key, value string) []byte {
	text := string(data)
	want := CanonicalKey(key)
	for _, t := range Scan(text) {
		if CanonicalKey(t.Key) == want {
			if t.Bare && value != "" {
				value = ":" + value
			}
			return []byte(text[:t.ValueStart] + value + text[t.ValueEnd:])
		}
	}
	return []byte(insertBlock(text, want, value))
}

// Value returns the raw value of the first tag with key.
func Value(data []byte, key string) (string, bool) {
	want := CanonicalKey(key)
	for _, t := range Scan(string(data)) {
		if CanonicalKey(t.Key) == want {
			return t.Value, true
		}
	}
	return "", false
}

func insertBlock(text, key, value string) string {
	nl := "\n"
	if strings.Contains(text, "\r\n") {
		nl = "\r\n"
	}
	block := sectionPrefix + Heading(models.KindGeneric, key) + nl + FormatTag(TypeOf(key), key, value) + nl + nl

	lines := strings.SplitAfter(text, "\n")
	offset := 0
	seenContent := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(line, sectionPrefix) && !isMetadataSection(lines[i+1:]) {
			return text[:offset] + block + text[offset:]
		}
		if trimmed == outroMarker && seenContent {
			return text[:offset] + block + text[offset:]
		}
		if trimmed != "" {
			seenContent = true
		}
		offset += len(line)
	}

	if text != "" && !strings.HasSuffix(text, "\n") {
		text += nl
	}
	if text != "" && !strings.HasSuffix(text, nl+nl) {
		text += nl
	}
	return text + strings.TrimRight(block, "\r\n") + nl
}

// isMetadataSection reports whether the section body starting at rest is a
// single whole-line tag.
func isMetadataSection(rest []string) bool {
	var body []string
	for _, line := range rest {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(line, sectionPrefix) || trimmed == outroMarker {
			break
		}
		if trimmed != "" {
			body = append(body, trimmed)
		}
	}
	if len(body) != 1 {
		return false
	}
	_, ok := wholeLineTag(body[0])
	return ok
}

const historyHeading = "history"

// ReplaceHistory swaps the body of the "## History" section for history and
// returns the new text. Without such a section one is added before the
// outro, or at the end.
func ReplaceHistory(data []byte, history string) []byte {
	text := string(data)
	body := strings.TrimRight(history, "\r\n") + "\n"
	lines := strings.SplitAfter(text, "\n")

	offset, start := 0, -1
	seenContent := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		isHeading := strings.HasPrefix(line, sectionPrefix)
		if start >= 0 && (isHeading || trimmed == outroMarker) {
			return []byte(text[:start] + body + "\n" + text[offset:])
		}
		if start < 0 && isHeading && strings.EqualFold(strings.TrimSpace(line[len(sectionPrefix):]), historyHeading) {
			start = offset + len(line)
		}
		if start < 0 && trimmed == outroMarker && seenContent {
			return []byte(text[:offset] + sectionPrefix + "History\n" + body + "\n" + text[offset:])
		}
		if trimmed != "" {
			seenContent = true
		}
		offset += len(line)
	}
	if start >= 0 {
		if !strings.HasSuffix(text[:start], "\n") {
			return []byte(text + "\n" + body)
		}
		return []byte(text[:start] + body)
	}

	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if text != "" && !strings.HasSuffix(text, "\n\n") {
		text += "\n"
	}
	return []byte(text + sectionPrefix + "History\n" + body)
}

// KnownKey reports whether key names a structured field.
func KnownKey(key string) bool {
	_, ok := fieldOf(CanonicalKey(key))
	return ok
}

// NormalizeValue validates value for key and returns it in the form the
// writer emits. An empty value clears the field and is always accepted.
func NormalizeValue(key, value string, loc *time.Location) (string, bool) {
	key = CanonicalKey(key)
	field, ok := fieldOf(key)
	if !ok {
		return "", false
	}
	if strings.TrimSpace(value) == "" {
		return "", true
	}
	switch field {
	case "status":
		if key == KeyHabitStatus {
			st, ok := parseHabitStatus(value)
			return StatusValue(models.KindHabit, st), ok
		}
		st, ok := ParseStatus(value)
		return string(st), ok
	case "frequency":
		fr, ok := recurrence.ParseFrequency(value)
		return string(fr), ok
	case "effort":
		e, ok := ParseEffort(value)
		return string(e), ok
	case "focus", "due", "created":
		w, ok := ParseWhen(value, loc)
		return FormatWhen(w), ok
	default:
		return FormatReferences(ParseReferences(value)), true
	}
}
