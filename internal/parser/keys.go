package parser

import (
	"path"
	"strings"

	"github.com/starford/gtdspace/internal/models"
)

// Field keys as they appear in tags.
const (
	KeyStatus        = "status"
	KeyProjectStatus = "project-status"
	KeyHabitStatus   = "habit-status"
	KeyFrequency     = "habit-frequency"
	KeyFocus         = "focus_date_time"
	KeyDue           = "due_date"
	KeyEffort        = "effort"
	KeyCreated       = "created_date"
	KeyCreatedTime   = "created_date_time"
)

var keyAliases = map[string]string{
	"focus_date":    KeyFocus,
	"due_date_time": KeyDue,
	"frequency":     KeyFrequency,
}

// CanonicalKey folds case and legacy spellings of a key.
func CanonicalKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}

// ReferenceKey returns the tag key of a horizon's reference list.
func ReferenceKey(h models.Horizon) string {
	if h == models.HorizonGeneral {
		return "references"
	}
	return string(h) + "-references"
}

func horizonOf(key string) (models.Horizon, bool) {
	if key == "references" {
		return models.HorizonGeneral, true
	}
	if p, ok := strings.CutSuffix(key, "-references"); ok && p != "" {
		return models.Horizon(p), true
	}
	return "", false
}

// fieldOf names the Fields member a key decodes into. Keys that share a
// member, like the two created keys, return the same name.
func fieldOf(key string) (string, bool) {
	switch key {
	case KeyStatus, KeyProjectStatus, KeyHabitStatus:
		return "status", true
	case KeyFrequency:
		return "frequency", true
	case KeyFocus:
		return "focus", true
	case KeyDue:
		return "due", true
	case KeyEffort:
		return "effort", true
	case KeyCreated, KeyCreatedTime:
		return "created", true
	}
	if h, ok := horizonOf(key); ok {
		return "ref:" + string(h), true
	}
	return "", false
}

// StatusKey returns the status key used by documents of kind k.
func StatusKey(k models.Kind) string {
	switch k {
	case models.KindHabit:
		return KeyHabitStatus
	case models.KindProject:
		return KeyProjectStatus
	default:
		return KeyStatus
	}
}

// StatusValue renders a status for the key StatusKey(k) returns.
func StatusValue(k models.Kind, s models.Status) string {
	if k == models.KindHabit {
		if s == models.StatusCompleted {
			return "true"
		}
		return "false"
	}
	return string(s)
}

// kindKeys is the metadata block each kind always carries, in order.
var kindKeys = map[models.Kind][]string{
	models.KindAction:  {KeyStatus, KeyFocus, KeyDue, KeyEffort, "references"},
	models.KindProject: {KeyProjectStatus, KeyDue, KeyCreated, "references"},
	models.KindHabit:   {KeyHabitStatus, KeyFrequency, KeyFocus, KeyCreated},
	models.KindArea:    {"projects-references", "goals-references", "vision-references", "purpose-references"},
	models.KindGoal:    {KeyDue, "areas-references", "vision-references", "purpose-references"},
	models.KindVision:  {"goals-references", "areas-references", "purpose-references"},
}

// KindKeys returns the metadata keys a document of kind k carries.
func KindKeys(k models.Kind) []string {
	return append([]string(nil), kindKeys[k]...)
}

var horizonHeadings = map[models.Horizon]string{
	models.HorizonGeneral:  "References",
	models.HorizonProjects: "Projects",
	models.HorizonAreas:    "Areas of Focus",
	models.HorizonGoals:    "Goals",
	models.HorizonVision:   "Vision",
	models.HorizonPurpose:  "Purpose & Principles",
}

// Heading returns the section heading placed above key's tag.
func Heading(k models.Kind, key string) string {
	switch key {
	case KeyStatus, KeyProjectStatus, KeyHabitStatus:
		return "Status"
	case KeyFrequency:
		return "Frequency"
	case KeyFocus:
		if k == models.KindHabit {
			return "Focus Time"
		}
		return "Focus Date"
	case KeyDue:
		return "Due Date"
	case KeyEffort:
		return "Effort"
	case KeyCreated, KeyCreatedTime:
		return "Created"
	}
	if h, ok := horizonOf(key); ok {
		if title, ok := horizonHeadings[h]; ok {
			return title
		}
		s := string(h)
		return strings.ToUpper(s[:1]) + s[1:]
	}
	return key
}

// TypeOf returns the tag type written for key.
func TypeOf(key string) string {
	switch key {
	case KeyHabitStatus:
		return TypeCheckbox
	case KeyFocus, KeyDue, KeyCreated, KeyCreatedTime:
		return TypeDatetime
	}
	if _, ok := horizonOf(key); ok {
		return TypeReferences
	}
	return TypeSingleSelect
}

var kindDirs = map[string]models.Kind{
	"habits":               models.KindHabit,
	"areas of focus":       models.KindArea,
	"goals":                models.KindGoal,
	"vision":               models.KindVision,
	"purpose & principles": models.KindPurpose,
}

// KindFromPath infers a document's kind from its workspace location. Paths
// may be absolute; the innermost GTD directory wins.
func KindFromPath(p string) models.Kind {
	segs := splitPath(p)
	for i := len(segs) - 2; i >= 0; i-- {
		dir := strings.ToLower(segs[i])
		if dir == "projects" {
			switch {
			case len(segs)-1 == i+2 && IsIndexDocument(segs[len(segs)-1]):
				return models.KindProject
			case len(segs)-1 >= i+2:
				return models.KindAction
			default:
				return models.KindGeneric
			}
		}
		if k, ok := kindDirs[dir]; ok {
			return k
		}
	}
	return models.KindGeneric
}

// ProjectName returns the project directory of an action or project README,
// or "" for other documents.
func ProjectName(p string) string {
	segs := splitPath(p)
	for i := len(segs) - 2; i >= 0; i-- {
		if strings.EqualFold(segs[i], "projects") {
			if len(segs)-1 >= i+2 {
				return segs[i+1]
			}
			return ""
		}
	}
	return ""
}

// TitleFromPath derives a display title from a file name. Project READMEs
// take the project directory's name.
func TitleFromPath(p string) string {
	if p == "" {
		return ""
	}
	base := path.Base(toSlash(p))
	if IsIndexDocument(base) {
		if name := ProjectName(p); name != "" {
			return name
		}
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// IsIndexDocument reports whether p names a README or index document. Such
// documents never appear in reference lists.
func IsIndexDocument(p string) bool {
	base := strings.ToLower(path.Base(toSlash(p)))
	switch base {
	case "readme.md", "readme", "index.md", "index":
		return true
	}
	return false
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(toSlash(p), "/") {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}

var horizonDirs = map[models.Horizon]string{
	models.HorizonProjects: "Projects",
	models.HorizonAreas:    "Areas of Focus",
	models.HorizonGoals:    "Goals",
	models.HorizonVision:   "Vision",
	models.HorizonPurpose:  "Purpose & Principles",
}

// HorizonDir returns the workspace directory holding a horizon's documents.
// The general horizon spans the whole workspace and yields "".
func HorizonDir(h models.Horizon) string {
	return horizonDirs[h]
}
