// Package parser decodes and encodes the structured fields that GTD Space
// documents carry as inline [!type:key:value] tags.
package parser

import "strings"

// Tag types.
const (
	TypeCheckbox     = "checkbox"
	TypeSingleSelect = "singleselect"
	TypeMultiSelect  = "multiselect"
	TypeDatetime     = "datetime"
	TypeText         = "text"
	TypeReferences   = "references"
)

const (
	tagOpen  = "[!"
	tagClose = ']'
)

// Tag is one inline field marker. Offsets are byte positions in the scanned
// text; the value occupies text[ValueStart:ValueEnd]. A tag written without
// its value separator, [!type:key], has Bare set and an empty value range
// just before the closing bracket.
type Tag struct {
	Type       string
	Key        string
	Value      string
	Start      int
	End        int
	ValueStart int
	ValueEnd   int
	Bare       bool
}

// String renders the tag in canonical form.
func (t Tag) String() string {
	return FormatTag(t.Type, t.Key, t.Value)
}

// FormatTag renders a tag. Reference keys use the two-part form.
func FormatTag(typ, key, value string) string {
	if typ == TypeReferences || isReferenceKey(key) {
		return tagOpen + key + ":" + value + "]"
	}
	return tagOpen + typ + ":" + key + ":" + value + "]"
}

// Scan returns every tag in text in document order. Values may contain
// brackets and quoted strings, so JSON array literals are read whole.
// Unterminated tags are ignored.
func Scan(text string) []Tag {
	var out []Tag
	pos := 0
	for {
		i := strings.Index(text[pos:], tagOpen)
		if i < 0 {
			return out
		}
		start := pos + i
		end, ok := closeIndex(text, start+len(tagOpen))
		if !ok {
			pos = start + len(tagOpen)
			continue
		}
		if tag, ok := splitTag(text, start, end); ok {
			out = append(out, tag)
		}
		pos = end
	}
}

// closeIndex finds the position just past the bracket that closes a tag whose
// body starts at from. A newline ends the search.
func closeIndex(text string, from int) (int, bool) {
	depth := 0
	var quote byte
	for i := from; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\n':
			return 0, false
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"':
			quote = c
		case c == '[':
			depth++
		case c == tagClose:
			if depth == 0 {
				return i + 1, true
			}
			depth--
		}
	}
	return 0, false
}

func splitTag(text string, start, end int) (Tag, bool) {
	bodyStart := start + len(tagOpen)
	body := text[bodyStart : end-1]

	first := strings.IndexByte(body, ':')
	if first <= 0 {
		return Tag{}, false
	}
	head := body[:first]

	if isReferenceKey(head) {
		vs := bodyStart + first + 1
		return Tag{
			Type: TypeReferences, Key: head, Value: text[vs : end-1],
			Start: start, End: end, ValueStart: vs, ValueEnd: end - 1,
		}, true
	}

	rest := body[first+1:]
	second := strings.IndexByte(rest, ':')
	if second < 0 {
		// [!type:key] carries an empty value.
		vs := end - 1
		return Tag{
			Type: head, Key: strings.TrimSpace(rest),
			Start: start, End: end, ValueStart: vs, ValueEnd: vs, Bare: true,
		}, true
	}
	vs := bodyStart + first + 1 + second + 1
	return Tag{
		Type: head, Key: strings.TrimSpace(rest[:second]), Value: text[vs : end-1],
		Start: start, End: end, ValueStart: vs, ValueEnd: end - 1,
	}, true
}

func isReferenceKey(key string) bool {
	return key == "references" || strings.HasSuffix(key, "-references")
}

// wholeLineTag returns the tag when line consists of exactly one tag.
func wholeLineTag(line string) (Tag, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, tagOpen) {
		return Tag{}, false
	}
	tags := Scan(trimmed)
	if len(tags) != 1 || tags[0].Start != 0 || tags[0].End != len(trimmed) {
		return Tag{}, false
	}
	return tags[0], true
}
