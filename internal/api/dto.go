package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/gtdspace/internal/calendar"
	"github.com/starford/gtdspace/internal/docservice"
	"github.com/starford/gtdspace/internal/parser"
	"github.com/starford/gtdspace/internal/workspace"
)

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = docservice.DocumentDetail

// DocumentListItem is a lightweight item in a list response (aliased from the domain layer).
type DocumentListItem = docservice.DocumentListItem

// DocumentListResponse wraps document listings.
type DocumentListResponse struct {
	Documents []DocumentListItem `json:"documents" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// PatchFieldRequest is the request body for a single-field update.
type PatchFieldRequest struct {
	Key   string `json:"key" example:"due_date" validate:"required"`
	Value string `json:"value" example:"2024-06-07"`
}

// Validate validates the request.
func (r *PatchFieldRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Key, validation.Required),
		validation.Field(&r.Value, validation.Length(0, 4096)),
	)
}

// WindowRequest optionally names the window the client was looking at when
// the gesture was made. Dates are inclusive.
type WindowRequest struct {
	Start string `json:"start,omitempty" example:"2024-06-03"`
	End   string `json:"end,omitempty" example:"2024-06-09"`
}

func (r *WindowRequest) rules() []*validation.FieldRules {
	return []*validation.FieldRules{
		validation.Field(&r.Start, validation.Date(parser.DateLayout), validation.When(r.End != "", validation.Required)),
		validation.Field(&r.End, validation.Date(parser.DateLayout)),
	}
}

// MoveRequest is the request body for a drag-and-drop move.
type MoveRequest struct {
	WindowRequest
	EntryID      string `json:"entry_id" validate:"required"`
	TargetDate   string `json:"target_date" example:"2024-06-07" validate:"required"`
	TargetHour   *int   `json:"target_hour,omitempty" example:"14"`
	TargetMinute *int   `json:"target_minute,omitempty" example:"30"`
}

// Validate validates the request.
func (r *MoveRequest) Validate() error {
	rules := append(r.WindowRequest.rules(),
		validation.Field(&r.EntryID, validation.Required),
		validation.Field(&r.TargetDate, validation.Required, validation.Date(parser.DateLayout)),
		validation.Field(&r.TargetHour, validation.Min(0), validation.Max(23)),
		validation.Field(&r.TargetMinute, validation.Min(0), validation.Max(59)),
	)
	return validation.ValidateStruct(r, rules...)
}

// Gesture converts the request into a workspace gesture.
func (r *MoveRequest) Gesture() workspace.Gesture {
	return workspace.Gesture{
		EntryID:      r.EntryID,
		TargetDate:   r.TargetDate,
		TargetHour:   r.TargetHour,
		TargetMinute: r.TargetMinute,
	}
}

// ResizeRequest is the request body for a resize gesture.
type ResizeRequest struct {
	WindowRequest
	EntryID string `json:"entry_id" validate:"required"`
	Minutes int    `json:"minutes" example:"90" validate:"required"`
}

// Validate validates the request.
func (r *ResizeRequest) Validate() error {
	rules := append(r.WindowRequest.rules(),
		validation.Field(&r.EntryID, validation.Required),
		validation.Field(&r.Minutes, validation.Required, validation.Min(1), validation.Max(24*60)),
	)
	return validation.ValidateStruct(r, rules...)
}

// Gesture converts the request into a workspace gesture.
func (r *ResizeRequest) Gesture() workspace.Gesture {
	return workspace.Gesture{EntryID: r.EntryID, Minutes: r.Minutes}
}

// HabitStatusRequest is the request body for marking a habit.
type HabitStatusRequest struct {
	Completed bool `json:"completed" example:"true"`
}

// GestureResponse reports the outcome of a move or resize.
type GestureResponse struct {
	OpID     string            `json:"op_id" example:"01HZY3J7W4B8K9Q2R6T5V1X0NM"`
	Path     string            `json:"path" example:"Projects/Launch/Ship it.md"`
	Key      string            `json:"key" example:"due_date"`
	OldValue string            `json:"old_value"`
	NewValue string            `json:"new_value"`
	Skipped  bool              `json:"skipped"`
	Schedule calendar.Schedule `json:"schedule"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path" example:"Goals/Run a marathon.md" validate:"required"`
	Title   string `json:"title" example:"Run a marathon" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// ReferenceOptionsResponse wraps the selectable reference targets.
type ReferenceOptionsResponse struct {
	Horizon string             `json:"horizon" example:"projects"`
	Options []workspace.Choice `json:"options"`
}

// ScheduleResponse is the reconciled calendar for a window.
type ScheduleResponse struct {
	calendar.Schedule
	GeneratedAt time.Time `json:"generated_at"`
}
