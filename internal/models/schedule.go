package models

import "time"

// Frequency is a habit recurrence rule.
type Frequency string

const (
	FrequencyFiveMinute    Frequency = "5-minute"
	FrequencyDaily         Frequency = "daily"
	FrequencyWeekdays      Frequency = "weekdays"
	FrequencyEveryOtherDay Frequency = "every-other-day"
	FrequencyTwiceWeekly   Frequency = "twice-weekly"
	FrequencyWeekly        Frequency = "weekly"
	FrequencyBiweekly      Frequency = "biweekly"
	FrequencyMonthly       Frequency = "monthly"
)

// HistoryEntry is one row of a habit's ledger table.
type HistoryEntry struct {
	Date       string   `json:"date"`
	Time       string   `json:"time"`
	Status     string   `json:"status"`
	Action     string   `json:"action"`
	Details    string   `json:"details"`
	ExtraCells []string `json:"extra_cells,omitempty"`
}

// RecurrenceDefinition is the input of occurrence projection.
type RecurrenceDefinition struct {
	Created   time.Time `json:"created"`
	Frequency Frequency `json:"frequency"`
}

// EntryKind tells which field or source produced a calendar entry.
type EntryKind string

const (
	EntryDue      EntryKind = "due"
	EntryFocus    EntryKind = "focus"
	EntryHabit    EntryKind = "habit"
	EntryExternal EntryKind = "external"
)

// CalendarEntry is a single item on the reconciled schedule. Entries are
// recomputed on every pass and never persisted.
type CalendarEntry struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Kind            EntryKind  `json:"kind"`
	Start           time.Time  `json:"start"`
	End             *time.Time `json:"end,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	Timed           bool       `json:"timed"`
	SourcePath      string     `json:"source_path,omitempty"`
	DocKind         Kind       `json:"doc_kind,omitempty"`
	Status          Status     `json:"status,omitempty"`
	ProjectName     string     `json:"project_name,omitempty"`
	Effort          Effort     `json:"effort,omitempty"`
	Slot            int        `json:"slot"`
	Slots           int        `json:"slots"`
}

// ExternalEvent is a read-only event synced from an outside calendar.
type ExternalEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Attendees   []string  `json:"attendees,omitempty"`
	MeetingLink string    `json:"meeting_link,omitempty"`
	Status      string    `json:"status,omitempty"`
	ColorID     string    `json:"color_id,omitempty"`
}
