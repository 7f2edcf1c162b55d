// Package reschedule turns calendar move and resize gestures into single
// field edits on the source document.
package reschedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/starford/gtdspace/internal/apperr"
	"github.com/starford/gtdspace/internal/calendar"
	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/parser"
)

// Store is the persistence boundary the writer talks to.
type Store interface {
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
}

// Refresher re-decodes one document from text that was just written, so the
// schedule is rebuilt without rescanning the workspace.
type Refresher interface {
	Refresh(ctx context.Context, path string, data []byte) error
}

// Target is a drop position. Hour and Minute are nil for a date-only drop.
type Target struct {
	Date   time.Time
	Hour   *int
	Minute *int
}

// Result describes one gesture outcome.
type Result struct {
	OpID     string `json:"op_id"`
	Path     string `json:"path"`
	Key      string `json:"key"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
	Skipped  bool   `json:"skipped"`
}

// Writer applies gestures. It holds no lock on documents; concurrent writes
// to the same file are last-write-wins.
type Writer struct {
	store     Store
	refresher Refresher
	logger    *slog.Logger
}

// New creates a Writer. refresher may be nil.
func New(store Store, refresher Refresher, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, refresher: refresher, logger: logger}
}

// Move rewrites the date field behind entry so that it lands on target.
func (w *Writer) Move(ctx context.Context, entry models.CalendarEntry, target Target) (Result, error) {
	var key string
	switch entry.Kind {
	case models.EntryDue:
		key = parser.KeyDue
	case models.EntryFocus:
		key = parser.KeyFocus
	default:
		return Result{}, fmt.Errorf("reschedule: %s entry %q: %w", entry.Kind, entry.Title, apperr.ErrNotRelocatable)
	}
	if entry.SourcePath == "" {
		return Result{}, fmt.Errorf("reschedule: entry %q has no source: %w", entry.Title, apperr.ErrNotRelocatable)
	}
	if target.Date.IsZero() {
		return Result{}, fmt.Errorf("reschedule: missing target date: %w", apperr.ErrInvalidGesture)
	}

	next, err := resolve(entry, target)
	if err != nil {
		return Result{}, err
	}
	current := models.When{Time: entry.Start, HasTime: entry.Timed}

	res := Result{
		OpID:     ulid.Make().String(),
		Path:     entry.SourcePath,
		Key:      key,
		OldValue: parser.FormatWhen(current),
		NewValue: parser.FormatWhen(next),
	}
	if next.Equal(current) {
		res.Skipped = true
		w.logger.Debug("move skipped", slog.String("op", res.OpID), slog.String("path", res.Path))
		return res, nil
	}
	return res, w.apply(ctx, &res)
}

// Resize maps minutes to the nearest effort bucket and patches the effort
// field of the action behind a focus entry.
func (w *Writer) Resize(ctx context.Context, entry models.CalendarEntry, minutes int) (Result, error) {
	switch {
	case entry.Kind != models.EntryFocus || entry.DocKind != models.KindAction:
		return Result{}, fmt.Errorf("reschedule: only action focus entries can be resized: %w", apperr.ErrInvalidGesture)
	case entry.Effort == "":
		return Result{}, fmt.Errorf("reschedule: %q has no effort: %w", entry.Title, apperr.ErrInvalidGesture)
	case entry.Status == models.StatusCompleted:
		return Result{}, fmt.Errorf("reschedule: %q is completed: %w", entry.Title, apperr.ErrInvalidGesture)
	case minutes <= 0:
		return Result{}, fmt.Errorf("reschedule: duration %d: %w", minutes, apperr.ErrInvalidGesture)
	}

	res := Result{
		OpID:     ulid.Make().String(),
		Path:     entry.SourcePath,
		Key:      parser.KeyEffort,
		OldValue: string(entry.Effort),
		NewValue: string(calendar.EffortForMinutes(minutes)),
	}
	if res.NewValue == res.OldValue {
		res.Skipped = true
		return res, nil
	}
	return res, w.apply(ctx, &res)
}

// apply runs read, patch, write and refresh. A failed read or write leaves
// the document untouched.
func (w *Writer) apply(ctx context.Context, res *Result) error {
	data, err := w.store.Read(res.Path)
	if err != nil {
		return fmt.Errorf("reschedule: read %s: %w: %w", res.Path, apperr.ErrPersistence, err)
	}
	if v, ok := parser.Value(data, res.Key); ok {
		res.OldValue = v
	}
	patched := parser.Patch(data, res.Key, res.NewValue)
	if err := w.store.Write(res.Path, patched); err != nil {
		w.logger.Error("document write failed",
			slog.String("op", res.OpID), slog.String("path", res.Path), slog.String("error", err.Error()))
		return fmt.Errorf("reschedule: write %s: %w: %w", res.Path, apperr.ErrPersistence, err)
	}
	w.logger.Info("document rescheduled",
		slog.String("op", res.OpID), slog.String("path", res.Path),
		slog.String("key", res.Key), slog.String("old", res.OldValue), slog.String("new", res.NewValue))

	if w.refresher != nil {
		if err := w.refresher.Refresh(ctx, res.Path, patched); err != nil {
			w.logger.Warn("refresh after write failed", slog.String("op", res.OpID), slog.String("error", err.Error()))
		}
	}
	return nil
}

// resolve computes the new field value. An explicit time wins; a date-only
// drop keeps the entry's time of day; otherwise a bare date is written.
func resolve(entry models.CalendarEntry, target Target) (models.When, error) {
	loc := entry.Start.Location()
	y, m, d := target.Date.Date()

	if target.Hour != nil {
		hour, minute := *target.Hour, 0
		if target.Minute != nil {
			minute = *target.Minute
		}
		if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return models.When{}, fmt.Errorf("reschedule: time %02d:%02d: %w", hour, minute, apperr.ErrInvalidGesture)
		}
		return models.When{Time: time.Date(y, m, d, hour, minute, 0, 0, loc), HasTime: true}, nil
	}
	if target.Minute != nil {
		return models.When{}, fmt.Errorf("reschedule: minute without hour: %w", apperr.ErrInvalidGesture)
	}
	if entry.Timed {
		s := entry.Start
		return models.When{Time: time.Date(y, m, d, s.Hour(), s.Minute(), s.Second(), 0, loc), HasTime: true}, nil
	}
	return models.When{Time: time.Date(y, m, d, 0, 0, 0, 0, loc)}, nil
}
