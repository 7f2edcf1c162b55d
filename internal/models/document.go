// Package models defines the domain types for GTD Space documents and schedules.
package models

import "time"

// Kind classifies a document by its place in the GTD hierarchy.
type Kind string

const (
	KindAction  Kind = "action"
	KindProject Kind = "project"
	KindHabit   Kind = "habit"
	KindArea    Kind = "area"
	KindGoal    Kind = "goal"
	KindVision  Kind = "vision"
	KindPurpose Kind = "purpose"
	KindGeneric Kind = "generic"
)

// Status is the lifecycle state of an action, project or habit.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusWaiting    Status = "waiting"
	StatusCompleted  Status = "completed"
	StatusTodo       Status = "todo"
)

// Effort is the size bucket of an action.
type Effort string

const (
	EffortSmall      Effort = "small"
	EffortMedium     Effort = "medium"
	EffortLarge      Effort = "large"
	EffortExtraLarge Effort = "extra-large"
)

// Horizon names a group of cross-references.
type Horizon string

const (
	HorizonGeneral  Horizon = "references"
	HorizonProjects Horizon = "projects"
	HorizonAreas    Horizon = "areas"
	HorizonGoals    Horizon = "goals"
	HorizonVision   Horizon = "vision"
	HorizonPurpose  Horizon = "purpose"
)

// Horizons lists every reference group in display order.
var Horizons = []Horizon{
	HorizonGeneral, HorizonProjects, HorizonAreas, HorizonGoals, HorizonVision, HorizonPurpose,
}

// When is a calendar value that is either a bare date or a date with a
// wall-clock time. The zero value means "not set".
type When struct {
	Time    time.Time `json:"time"`
	HasTime bool      `json:"has_time"`
}

// IsZero reports whether the value is unset.
func (w When) IsZero() bool { return w.Time.IsZero() }

// Date returns midnight of the value's day in its own location.
func (w When) Date() time.Time {
	y, m, d := w.Time.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, w.Time.Location())
}

// Equal reports whether two values denote the same field content.
func (w When) Equal(o When) bool {
	if w.IsZero() || o.IsZero() {
		return w.IsZero() == o.IsZero()
	}
	if w.HasTime != o.HasTime {
		return false
	}
	if !w.HasTime {
		return w.Date().Equal(o.Date())
	}
	return w.Time.Equal(o.Time)
}

// Fields holds the structured values decoded from a document's tags.
type Fields struct {
	Title      string               `json:"title"`
	Status     Status               `json:"status,omitempty"`
	Frequency  Frequency            `json:"frequency,omitempty"`
	Created    When                 `json:"created"`
	Focus      When                 `json:"focus"`
	Due        When                 `json:"due"`
	Effort     Effort               `json:"effort,omitempty"`
	References map[Horizon][]string `json:"references,omitempty"`
}

// Section is one "## Heading" block of author-owned prose.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Layout keeps the parts of a document that are not structured fields so that
// encoding can reproduce them.
type Layout struct {
	Intro    string    `json:"intro,omitempty"`
	Keys     []string  `json:"keys,omitempty"`
	Sections []Section `json:"sections,omitempty"`
	History  string    `json:"history,omitempty"`
	Outro    string    `json:"outro,omitempty"`
	// ImplicitCreated is set when the created value did not come from a tag,
	// for example from the file's modification time. Encoding then leaves it
	// implicit.
	ImplicitCreated bool `json:"-"`
}

// Document is a decoded workspace file. Raw is the only durable state; the
// other fields are derived from it.
type Document struct {
	Path     string    `json:"path"`
	Raw      []byte    `json:"-"`
	Kind     Kind      `json:"kind"`
	Fields   Fields    `json:"fields"`
	Layout   Layout    `json:"-"`
	Checksum string    `json:"checksum"`
	ModTime  time.Time `json:"mod_time"`
}

// DocumentMeta is a lightweight representation returned by list operations.
type DocumentMeta struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
