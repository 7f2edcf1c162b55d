// Package habits records habit completions in the document's history ledger
// and resets habits whose period has elapsed.
package habits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/gtdspace/internal/apperr"
	"github.com/starford/gtdspace/internal/ledger"
	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/parser"
	"github.com/starford/gtdspace/internal/recurrence"
)

// Store is the persistence boundary habits are read from and written to.
type Store interface {
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
}

// Source lists the habit documents currently known.
type Source interface {
	Habits() []models.Document
}

// Refresher is told about every document this package rewrites.
type Refresher interface {
	Refresh(ctx context.Context, path string, data []byte) error
}

// Summary is the state of one habit.
type Summary struct {
	Path      string               `json:"path"`
	Title     string               `json:"title"`
	Frequency models.Frequency     `json:"frequency"`
	Completed bool                 `json:"completed"`
	LastReset time.Time            `json:"last_reset"`
	NextReset time.Time            `json:"next_reset"`
	History   []models.HistoryEntry `json:"history"`
}

// Service updates habit documents.
type Service struct {
	store     Store
	source    Source
	refresher Refresher
	loc       *time.Location
	logger    *slog.Logger
}

// NewService creates a habit service. refresher may be nil.
func NewService(store Store, source Source, refresher Refresher, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, source: source, refresher: refresher, loc: loc, logger: logger}
}

// Summarize reports the ledger state of a decoded habit.
func (s *Service) Summarize(doc models.Document) Summary {
	table := ledger.Parse(doc.Layout.History)
	last := lastReset(doc, table, s.loc)
	rows := table.Rows
	if rows == nil {
		rows = []models.HistoryEntry{}
	}
	return Summary{
		Path:      doc.Path,
		Title:     doc.Fields.Title,
		Frequency: doc.Fields.Frequency,
		Completed: doc.Fields.Status == models.StatusCompleted,
		LastReset: last,
		NextReset: recurrence.NextReset(doc.Fields.Frequency, last),
		History:   rows,
	}
}

// List summarizes every known habit.
func (s *Service) List() []Summary {
	docs := s.source.Habits()
	out := make([]Summary, 0, len(docs))
	for _, d := range docs {
		out = append(out, s.Summarize(d))
	}
	return out
}

// SetStatus marks the habit at path complete or not and appends a manual
// ledger row stamped with now.
func (s *Service) SetStatus(ctx context.Context, path string, completed bool, now time.Time) (Summary, error) {
	doc, err := s.read(path)
	if err != nil {
		return Summary{}, err
	}
	status, label := models.StatusTodo, ledger.StatusTodo
	if completed {
		status, label = models.StatusCompleted, ledger.StatusComplete
	}
	details := "Marked as to do"
	if completed {
		details = "Marked as complete"
	}
	entry := ledger.NewEntry(now.In(s.loc), label, ledger.ActionManual, details)
	return s.write(ctx, doc, status, entry)
}

// CheckAndReset walks every habit and, once its period has elapsed, starts
// a new one: completed habits go back to to-do with an Auto-Reset row and
// unfinished ones get a Missed row. It returns the paths it rewrote.
func (s *Service) CheckAndReset(ctx context.Context, now time.Time) ([]string, error) {
	var reset []string
	var errs []error
	for _, doc := range s.source.Habits() {
		if err := ctx.Err(); err != nil {
			return reset, err
		}
		sum := s.Summarize(doc)
		if sum.LastReset.IsZero() || now.Before(sum.NextReset) {
			continue
		}

		entry := ledger.NewEntry(now.In(s.loc), ledger.StatusTodo, ledger.ActionAutoReset, "New period started")
		if !sum.Completed {
			entry = ledger.NewEntry(now.In(s.loc), ledger.StatusMissed, ledger.ActionAutoReset, "Not completed last period")
		}
		current, err := s.read(doc.Path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := s.write(ctx, current, models.StatusTodo, entry); err != nil {
			errs = append(errs, err)
			continue
		}
		s.logger.Info("habit reset", slog.String("path", doc.Path), slog.String("status", entry.Status))
		reset = append(reset, doc.Path)
	}
	return reset, errors.Join(errs...)
}

func (s *Service) read(path string) (models.Document, error) {
	data, err := s.store.Read(path)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, apperr.ErrNotFound) {
		return models.Document{}, fmt.Errorf("habits: %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("habits: read %s: %w: %w", path, apperr.ErrPersistence, err)
	}
	doc := parser.Decode(data, parser.WithPath(path), parser.WithLocation(s.loc))
	if doc.Kind != models.KindHabit {
		return models.Document{}, fmt.Errorf("habits: %s is a %s document: %w", path, doc.Kind, apperr.ErrNotFound)
	}
	return doc, nil
}

// write patches the status tag and appends entry to the ledger, leaving the
// rest of the text as it was.
func (s *Service) write(ctx context.Context, doc models.Document, status models.Status, entry models.HistoryEntry) (Summary, error) {
	table := ledger.Parse(doc.Layout.History)
	table.Append(entry)

	data := parser.Patch(doc.Raw, parser.KeyHabitStatus, parser.StatusValue(models.KindHabit, status))
	data = parser.ReplaceHistory(data, ledger.Reconstruct(table))
	if err := s.store.Write(doc.Path, data); err != nil {
		return Summary{}, fmt.Errorf("habits: write %s: %w: %w", doc.Path, apperr.ErrPersistence, err)
	}
	if s.refresher != nil {
		if err := s.refresher.Refresh(ctx, doc.Path, data); err != nil {
			s.logger.Warn("refresh after habit write failed", slog.String("path", doc.Path), slog.String("error", err.Error()))
		}
	}
	return s.Summarize(parser.Decode(data, parser.WithPath(doc.Path), parser.WithLocation(s.loc))), nil
}

// lastReset is the newest Created or Auto-Reset row, or the creation time
// when the ledger has none. Manual rows do not start a period.
func lastReset(doc models.Document, table ledger.Table, loc *time.Location) time.Time {
	var last time.Time
	for _, row := range table.Rows {
		if row.Action != ledger.ActionCreated && row.Action != ledger.ActionAutoReset {
			continue
		}
		if at, ok := ledger.At(row, loc); ok && at.After(last) {
			last = at
		}
	}
	if last.IsZero() {
		last = doc.Fields.Created.Time
	}
	return last
}
