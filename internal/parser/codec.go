package parser

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/starford/gtdspace/internal/checksum"
	"github.com/starford/gtdspace/internal/ledger"
	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/recurrence"
)

const (
	titlePrefix   = "# "
	sectionPrefix = "## "
	outroMarker   = "---"
)

var createdLineRe = regexp.MustCompile(`(?im)^\s*\**created\**\s*:\s*\**\s*(\S[^*\n]*?)\s*\**\s*$`)

// Option configures Decode.
type Option func(*decodeConfig)

type decodeConfig struct {
	path    string
	modTime time.Time
	loc     *time.Location
	kind    models.Kind
}

// WithPath sets the workspace-relative path of the document. It is used to
// infer the kind and the fallback title.
func WithPath(p string) Option {
	return func(c *decodeConfig) { c.path = p }
}

// WithModTime sets the last-modified time used when no created value exists.
func WithModTime(t time.Time) Option {
	return func(c *decodeConfig) { c.modTime = t }
}

// WithLocation sets the location datetimes are read in. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(c *decodeConfig) { c.loc = loc }
}

// WithKind forces the document kind instead of inferring it.
func WithKind(k models.Kind) Option {
	return func(c *decodeConfig) { c.kind = k }
}

// Decode extracts fields and layout from raw document text. It never fails:
// missing or malformed tags fall back to defaults.
func Decode(data []byte, opts ...Option) models.Document {
	cfg := decodeConfig{loc: time.Local}
	for _, opt := range opts {
		opt(&cfg)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	tags := Scan(text)

	kind := cfg.kind
	if kind == "" {
		kind = KindFromPath(cfg.path)
		if kind == models.KindGeneric {
			kind = kindFromTags(tags)
		}
	}

	fields, claimed := decodeFields(tags, cfg.loc)
	title, layout, fallbackCreated := splitLayout(text, kind, cfg.loc)

	fields.Title = title
	if fields.Title == "" {
		fields.Title = TitleFromPath(cfg.path)
	}
	if !claimed["created"] {
		switch {
		case !fallbackCreated.IsZero():
			fields.Created = fallbackCreated
		case !cfg.modTime.IsZero():
			fields.Created = models.When{Time: cfg.modTime.In(cfg.loc), HasTime: true}
			layout.ImplicitCreated = true
		}
	}
	ApplyDefaults(kind, &fields)

	return models.Document{
		Path:     toSlash(cfg.path),
		Raw:      data,
		Kind:     kind,
		Fields:   fields,
		Layout:   layout,
		Checksum: checksum.Sum(data),
		ModTime:  cfg.modTime,
	}
}

// ApplyDefaults fills the values an absent or malformed tag decodes to.
func ApplyDefaults(k models.Kind, f *models.Fields) {
	switch k {
	case models.KindHabit:
		if f.Frequency == "" {
			f.Frequency = models.FrequencyDaily
		}
		if f.Status != models.StatusCompleted {
			f.Status = models.StatusTodo
		}
	case models.KindAction, models.KindProject:
		if f.Status == "" {
			f.Status = models.StatusInProgress
		}
	}
}

func kindFromTags(tags []Tag) models.Kind {
	for _, t := range tags {
		switch CanonicalKey(t.Key) {
		case KeyFrequency, KeyHabitStatus:
			return models.KindHabit
		case KeyProjectStatus:
			return models.KindProject
		case KeyEffort:
			return models.KindAction
		}
	}
	return models.KindGeneric
}

// decodeFields applies tags in document order; the first valid tag for a
// field wins.
func decodeFields(tags []Tag, loc *time.Location) (models.Fields, map[string]bool) {
	var f models.Fields
	claimed := make(map[string]bool)

	for _, t := range tags {
		key := CanonicalKey(t.Key)
		field, ok := fieldOf(key)
		if !ok || claimed[field] {
			continue
		}
		switch field {
		case "status":
			parse := ParseStatus
			if key == KeyHabitStatus {
				parse = parseHabitStatus
			}
			if st, ok := parse(t.Value); ok {
				f.Status = st
				claimed[field] = true
			}
		case "frequency":
			if fr, ok := recurrence.ParseFrequency(t.Value); ok {
				f.Frequency = fr
				claimed[field] = true
			}
		case "effort":
			if e, ok := ParseEffort(t.Value); ok {
				f.Effort = e
				claimed[field] = true
			}
		case "focus", "due", "created":
			w, ok := ParseWhen(t.Value, loc)
			if !ok {
				continue
			}
			switch field {
			case "focus":
				f.Focus = w
			case "due":
				f.Due = w
			default:
				f.Created = w
			}
			claimed[field] = true
		default:
			h, _ := horizonOf(key)
			refs := ParseReferences(t.Value)
			if len(refs) == 0 {
				continue
			}
			if f.References == nil {
				f.References = make(map[models.Horizon][]string)
			}
			f.References[h] = refs
			claimed[field] = true
		}
	}
	return f, claimed
}

type rawSection struct {
	heading string
	body    []string
}

// splitLayout separates the title, intro, metadata sections, prose sections,
// history ledger and outro. It also returns a created value found through the
// "## Created" heading or a "Created:" line.
func splitLayout(text string, kind models.Kind, loc *time.Location) (string, models.Layout, models.When) {
	var layout models.Layout
	lines := strings.Split(text, "\n")

	// Outro starts at the first horizontal rule that follows some content.
	seenContent := false
	for i, line := range lines {
		if strings.TrimSpace(line) == outroMarker && seenContent {
			layout.Outro = strings.Join(lines[i:], "\n")
			lines = lines[:i]
			break
		}
		if strings.TrimSpace(line) != "" {
			seenContent = true
		}
	}

	var (
		title    string
		hasTitle bool
		intro    []string
		sections []rawSection
	)
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, sectionPrefix):
			sections = append(sections, rawSection{heading: strings.TrimSpace(line[len(sectionPrefix):])})
		case len(sections) > 0:
			cur := &sections[len(sections)-1]
			cur.body = append(cur.body, line)
		case !hasTitle && strings.HasPrefix(line, titlePrefix):
			title = strings.TrimSpace(line[len(titlePrefix):])
			hasTitle = true
		default:
			intro = append(intro, line)
		}
	}
	layout.Intro = joinTrimmed(intro)

	canonical := kindKeys[kind]
	sectionClaimed := make(map[string]bool)
	var observed []string
	var fallback models.When
	historyTaken := false

	for _, s := range sections {
		body := joinTrimmed(s.body)

		if !historyTaken && strings.EqualFold(s.heading, "History") &&
			(kind == models.KindHabit || strings.HasPrefix(body, "|")) {
			historyTaken = true
			if body != "" {
				layout.History = body + "\n"
			}
			continue
		}

		if !strings.Contains(body, "\n") {
			if tag, ok := wholeLineTag(body); ok {
				key := CanonicalKey(tag.Key)
				if field, ok := fieldOf(key); ok && !sectionClaimed[field] {
					sectionClaimed[field] = true
					observed = append(observed, key)
					continue
				}
			}
			if strings.EqualFold(s.heading, "Created") && fallback.IsZero() {
				if w, ok := ParseWhen(body, loc); ok {
					fallback = w
					if slices.Contains(canonical, KeyCreated) {
						continue
					}
				}
			}
		}

		layout.Sections = append(layout.Sections, models.Section{Heading: s.heading, Body: body})
	}
	layout.Keys = blockKeys(kind, observed)

	if fallback.IsZero() {
		if m := createdLineRe.FindStringSubmatch(text); m != nil {
			if w, ok := ParseWhen(m[1], loc); ok {
				fallback = w
			}
		}
	}
	return title, layout, fallback
}

// Encode renders fields and layout in canonical form: title, intro, metadata
// block, prose sections, history ledger, outro. Re-encoding decoded canonical
// text reproduces it byte for byte.
func Encode(kind models.Kind, f models.Fields, layout models.Layout) []byte {
	ApplyDefaults(kind, &f)
	if layout.ImplicitCreated {
		f.Created = models.When{}
	}

	var b strings.Builder
	b.WriteString(titlePrefix + strings.TrimSpace(f.Title) + "\n\n")

	if intro := trimBlankLines(layout.Intro); intro != "" {
		b.WriteString(intro + "\n\n")
	}

	for _, key := range metadataKeys(kind, f, layout) {
		b.WriteString(sectionPrefix + Heading(kind, key) + "\n")
		b.WriteString(FormatTag(TypeOf(key), key, fieldValue(kind, f, key)) + "\n\n")
	}

	for _, s := range layout.Sections {
		b.WriteString(sectionPrefix + strings.TrimSpace(s.Heading) + "\n")
		if body := trimBlankLines(s.Body); body != "" {
			b.WriteString(body + "\n")
		}
		b.WriteString("\n")
	}

	history := trimBlankLines(layout.History)
	if history == "" && kind == models.KindHabit {
		history = trimBlankLines(ledger.Reconstruct(ledger.Table{}))
	}
	if history != "" {
		b.WriteString(sectionPrefix + "History\n" + history + "\n\n")
	}

	switch {
	case layout.Outro != "":
		b.WriteString(layout.Outro)
	case kind == models.KindAction && !f.Created.IsZero():
		b.WriteString(outroMarker + "\n" + FormatTag(TypeDatetime, KeyCreatedTime, FormatWhen(f.Created)) + "\n")
	}

	return []byte(strings.TrimRight(b.String(), "\n") + "\n")
}

// EncodeDocument re-encodes d from its fields and layout.
func EncodeDocument(d models.Document) []byte {
	return Encode(d.Kind, d.Fields, d.Layout)
}

// metadataKeys returns the block written for kind: its fixed keys first, then
// any other modelled keys from the layout, then the keys of set fields that
// neither list covers.
func metadataKeys(kind models.Kind, f models.Fields, layout models.Layout) []string {
	extra := append(append([]string(nil), layout.Keys...), fieldKeys(kind, f, layout)...)
	return blockKeys(kind, extra)
}

// blockKeys appends to the fixed keys of kind every key in extra whose field
// is not yet present.
func blockKeys(kind models.Kind, extra []string) []string {
	keys := append([]string(nil), kindKeys[kind]...)
	covered := make(map[string]bool, len(keys)+len(extra))
	for _, k := range keys {
		field, _ := fieldOf(k)
		covered[field] = true
	}
	for _, k := range extra {
		k = CanonicalKey(k)
		field, ok := fieldOf(k)
		if !ok || covered[field] {
			continue
		}
		covered[field] = true
		keys = append(keys, k)
	}
	return keys
}

var horizonOrder = []models.Horizon{
	models.HorizonGeneral, models.HorizonProjects, models.HorizonAreas,
	models.HorizonGoals, models.HorizonVision, models.HorizonPurpose,
}

// fieldKeys lists the keys of the non-zero fields of f in a fixed order.
func fieldKeys(kind models.Kind, f models.Fields, layout models.Layout) []string {
	var keys []string
	if f.Status != "" {
		keys = append(keys, StatusKey(kind))
	}
	if f.Frequency != "" {
		keys = append(keys, KeyFrequency)
	}
	if !f.Focus.IsZero() {
		keys = append(keys, KeyFocus)
	}
	if !f.Due.IsZero() {
		keys = append(keys, KeyDue)
	}
	if f.Effort != "" {
		keys = append(keys, KeyEffort)
	}
	if !f.Created.IsZero() && !createdInOutro(kind, layout) {
		keys = append(keys, KeyCreatedTime)
	}

	for _, h := range horizonOrder {
		if len(f.References[h]) > 0 {
			keys = append(keys, ReferenceKey(h))
		}
	}
	var other []string
	for h, refs := range f.References {
		if len(refs) > 0 && !slices.Contains(horizonOrder, h) {
			other = append(other, ReferenceKey(h))
		}
	}
	slices.Sort(other)
	return append(keys, other...)
}

// createdInOutro reports whether the outro carries the created value. An
// action without an outro gets one synthesized around its created tag.
func createdInOutro(kind models.Kind, layout models.Layout) bool {
	if layout.Outro == "" {
		return kind == models.KindAction
	}
	for _, t := range Scan(layout.Outro) {
		if field, _ := fieldOf(CanonicalKey(t.Key)); field == "created" {
			return true
		}
	}
	return false
}

func fieldValue(kind models.Kind, f models.Fields, key string) string {
	switch key {
	case KeyHabitStatus:
		return StatusValue(models.KindHabit, f.Status)
	case KeyStatus, KeyProjectStatus:
		return string(f.Status)
	case KeyFrequency:
		return string(f.Frequency)
	case KeyFocus:
		return FormatWhen(f.Focus)
	case KeyDue:
		return FormatWhen(f.Due)
	case KeyEffort:
		return string(f.Effort)
	case KeyCreated, KeyCreatedTime:
		return FormatWhen(f.Created)
	}
	if h, ok := horizonOf(key); ok {
		return FormatReferences(f.References[h])
	}
	return ""
}

func joinTrimmed(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

func trimBlankLines(s string) string {
	return joinTrimmed(strings.Split(s, "\n"))
}
