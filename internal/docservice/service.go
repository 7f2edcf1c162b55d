// Package docservice is the domain facade shared by the REST API and the MCP
// server. It reads documents from storage, keeps the workspace store and the
// search index in step with every write, and exposes schedule and habit
// operations.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/gtdspace/internal/apperr"
	"github.com/starford/gtdspace/internal/calendar"
	"github.com/starford/gtdspace/internal/checksum"
	"github.com/starford/gtdspace/internal/habits"
	"github.com/starford/gtdspace/internal/index"
	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/parser"
	"github.com/starford/gtdspace/internal/reschedule"
	"github.com/starford/gtdspace/internal/storage"
	"github.com/starford/gtdspace/internal/workspace"
)

// DocumentDetail is the full representation of a document.
type DocumentDetail struct {
	Path      string           `json:"path"`
	Kind      models.Kind      `json:"kind"`
	Title     string           `json:"title"`
	Fields    models.Fields    `json:"fields"`
	Content   string           `json:"content"`
	Checksum  string           `json:"checksum"`
	Backlinks []index.Backlink `json:"backlinks"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// DocumentListItem is a lightweight item in a list response.
type DocumentListItem struct {
	Path      string      `json:"path"`
	Kind      models.Kind `json:"kind"`
	Title     string      `json:"title"`
	Status    string      `json:"status,omitempty"`
	Checksum  string      `json:"checksum"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Service coordinates storage, the workspace store and the index.
type Service struct {
	store  storage.Provider
	db     *index.DB
	ws     *workspace.Store
	habits *habits.Service
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now for ledger stamps and index times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a document service. Habit writes made through it are
// reflected in both the store and the index.
func NewService(store storage.Provider, db *index.DB, ws *workspace.Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, db: db, ws: ws, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	s.habits = habits.NewService(store, ws, s, ws.Location(), logger)
	return s
}

// Habits returns the habit service bound to this document service.
func (s *Service) Habits() *habits.Service { return s.habits }

// Workspace returns the underlying store.
func (s *Service) Workspace() *workspace.Store { return s.ws }

// GetDocument reads a document from storage, decodes it and adds backlinks.
func (s *Service) GetDocument(_ context.Context, path string) (*DocumentDetail, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(path, data)
}

// ListDocuments returns indexed documents, optionally restricted to kind.
func (s *Service) ListDocuments(_ context.Context, kind models.Kind) ([]DocumentListItem, error) {
	rows, err := s.db.ListDocuments(kind)
	if err != nil {
		return nil, err
	}
	items := make([]DocumentListItem, len(rows))
	for i, r := range rows {
		items[i] = DocumentListItem{
			Path:      r.Path,
			Kind:      r.Kind,
			Title:     r.Title,
			Status:    r.Status,
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, nil
}

// PatchField rewrites the value of a single tag in place. ifMatch, when set,
// must equal the checksum of the current content.
func (s *Service) PatchField(ctx context.Context, path, key, value, ifMatch string) (*DocumentDetail, error) {
	if !parser.KnownKey(key) {
		return nil, fmt.Errorf("docservice: unknown field %q: %w", key, apperr.ErrInvalidGesture)
	}
	normalized, ok := parser.NormalizeValue(key, value, s.ws.Location())
	if !ok {
		return nil, fmt.Errorf("docservice: invalid value %q for %s: %w", value, key, apperr.ErrInvalidGesture)
	}

	existing, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}

	updated := parser.Patch(existing, key, normalized)
	if !checksum.Changed(checksum.Sum(existing), updated) {
		return s.buildDetail(path, existing)
	}
	if err := s.store.Write(path, updated); err != nil {
		return nil, fmt.Errorf("docservice: write %s: %w: %w", path, apperr.ErrPersistence, err)
	}
	if err := s.Refresh(ctx, path, updated); err != nil {
		return nil, err
	}
	s.logger.Info("field updated",
		slog.String("path", path),
		slog.String("key", parser.CanonicalKey(key)),
		slog.String("value", normalized),
	)
	return s.buildDetail(path, updated)
}

// Refresh tells the store and the index that path now holds data.
func (s *Service) Refresh(ctx context.Context, path string, data []byte) error {
	if err := s.ws.Refresh(ctx, path, data); err != nil {
		return err
	}
	return s.IndexFile(path, data)
}

// IndexFile decodes data and upserts it into the index.
func (s *Service) IndexFile(path string, data []byte) error {
	doc := parser.Decode(data,
		parser.WithPath(path),
		parser.WithModTime(s.now()),
		parser.WithLocation(s.ws.Location()),
	)
	return s.db.UpsertDocument(doc)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Backlinks returns the documents that reference target.
func (s *Service) Backlinks(_ context.Context, target string) ([]index.Backlink, error) {
	bl, err := s.db.Backlinks(target)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(bl), nil
}

// Schedule reconciles w without changing the store's current window. A zero
// window means the store's own.
func (s *Service) Schedule(_ context.Context, w calendar.Window, kinds calendar.KindSet) calendar.Schedule {
	if w.Start.IsZero() {
		return s.ws.Schedule()
	}
	return s.ws.ScheduleFor(w, kinds)
}

// MoveEntry applies a drag-and-drop move. The entry must be part of the
// store's current schedule, so the window is switched to cover the target
// entry when a window is given.
func (s *Service) MoveEntry(ctx context.Context, w calendar.Window, g workspace.Gesture) (reschedule.Result, error) {
	s.focus(w)
	return s.ws.HandleMove(ctx, g)
}

// ResizeEntry applies a resize gesture.
func (s *Service) ResizeEntry(ctx context.Context, w calendar.Window, g workspace.Gesture) (reschedule.Result, error) {
	s.focus(w)
	return s.ws.HandleResize(ctx, g)
}

// ReferenceOptions lists the documents a horizon's reference list may point at.
func (s *Service) ReferenceOptions(ctx context.Context, h models.Horizon) ([]workspace.Choice, error) {
	return s.ws.ReferenceOptions(ctx, h)
}

// ListHabits summarizes every loaded habit.
func (s *Service) ListHabits(_ context.Context) []habits.Summary {
	return s.habits.List()
}

// SetHabitStatus marks a habit complete or not.
func (s *Service) SetHabitStatus(ctx context.Context, path string, completed bool) (habits.Summary, error) {
	return s.habits.SetStatus(ctx, path, completed, s.now())
}

func (s *Service) focus(w calendar.Window) {
	if w.Start.IsZero() || w.Equal(s.ws.Window()) {
		return
	}
	s.ws.SetWindow(w)
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("docservice: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// buildDetail constructs a DocumentDetail from raw data without re-reading the file.
func (s *Service) buildDetail(path string, data []byte) (*DocumentDetail, error) {
	bl, err := s.db.Backlinks(path)
	if err != nil {
		return nil, err
	}
	updated := s.now()
	if doc, ok := s.ws.Document(path); ok && !doc.ModTime.IsZero() {
		updated = doc.ModTime
	}
	doc := parser.Decode(data,
		parser.WithPath(path),
		parser.WithModTime(updated),
		parser.WithLocation(s.ws.Location()),
	)
	return &DocumentDetail{
		Path:      path,
		Kind:      doc.Kind,
		Title:     doc.Fields.Title,
		Fields:    doc.Fields,
		Content:   string(data),
		Checksum:  doc.Checksum,
		Backlinks: nonNilSlice(bl),
		UpdatedAt: updated,
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
