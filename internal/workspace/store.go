// Package workspace holds the loaded documents of one workspace root and the
// schedule derived from them. It replaces ambient global state with a single
// explicit Store that reacts to discrete events.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/gtdspace/internal/apperr"
	"github.com/starford/gtdspace/internal/calendar"
	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/parser"
	"github.com/starford/gtdspace/internal/reschedule"
	"github.com/starford/gtdspace/internal/storage"
)

const defaultLoadLimit = 8

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithLocation sets the zone datetime values are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithWeekStart sets the first day of the default window.
func WithWeekStart(d time.Weekday) Option {
	return func(s *Store) { s.weekStart = d }
}

// WithKinds sets the initial entry kind filter.
func WithKinds(k calendar.KindSet) Option {
	return func(s *Store) { s.kinds = k }
}

// WithLoadLimit bounds concurrent document reads during Load.
func WithLoadLimit(n int) Option {
	return func(s *Store) { s.loadLimit = n }
}

// WithListener registers fn to receive every rebuilt schedule.
func WithListener(fn func(calendar.Schedule)) Option {
	return func(s *Store) { s.listeners = append(s.listeners, fn) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Gesture is a move or resize request coming from a calendar view.
type Gesture struct {
	EntryID      string `json:"entry_id"`
	TargetDate   string `json:"target_date,omitempty"`
	TargetHour   *int   `json:"target_hour,omitempty"`
	TargetMinute *int   `json:"target_minute,omitempty"`
	Minutes      int    `json:"minutes,omitempty"`
}

// Choice is a selectable reference target.
type Choice struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Store is the in-memory view of a workspace. Documents on disk remain the
// source of truth; the store only caches what was decoded from them.
type Store struct {
	provider  storage.Provider
	writer    *reschedule.Writer
	logger    *slog.Logger
	loc       *time.Location
	weekStart time.Weekday
	loadLimit int
	listeners []func(calendar.Schedule)
	now       func() time.Time

	mu       sync.RWMutex
	docs     map[string]models.Document
	external []models.ExternalEvent
	window   calendar.Window
	kinds    calendar.KindSet
	schedule calendar.Schedule
}

// New creates an empty Store over provider. The initial window is the
// current week.
func New(provider storage.Provider, opts ...Option) *Store {
	s := &Store{
		provider:  provider,
		logger:    slog.Default(),
		loc:       time.Local,
		weekStart: time.Monday,
		loadLimit: defaultLoadLimit,
		now:       time.Now,
		docs:      make(map[string]models.Document),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.writer = reschedule.New(provider, s, s.logger)
	s.window = calendar.WeekWindow(s.now().In(s.loc), s.weekStart)
	s.schedule = calendar.Reconcile(calendar.Input{Window: s.window, Kinds: s.kinds})
	return s
}

// Location returns the zone the store decodes datetimes in.
func (s *Store) Location() *time.Location { return s.loc }

// Load reads every document under the workspace root and rebuilds the
// schedule. Previously loaded documents are replaced.
func (s *Store) Load(ctx context.Context) error {
	metas, err := s.provider.List("")
	if err != nil {
		return fmt.Errorf("workspace: list: %w", err)
	}

	docs := make([]models.Document, len(metas))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.loadLimit)
	for i, meta := range metas {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			data, err := s.provider.Read(meta.Path)
			if err != nil {
				return fmt.Errorf("workspace: load %s: %w", meta.Path, err)
			}
			docs[i] = s.decode(meta.Path, data, meta.UpdatedAt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	loaded := make(map[string]models.Document, len(docs))
	for _, d := range docs {
		loaded[d.Path] = d
	}
	s.mu.Lock()
	s.docs = loaded
	s.mu.Unlock()

	s.logger.Info("workspace loaded", slog.Int("documents", len(loaded)))
	s.rebuild()
	return nil
}

// DocumentLoaded adds or replaces one decoded document.
func (s *Store) DocumentLoaded(doc models.Document) {
	s.mu.Lock()
	s.docs[doc.Path] = doc
	s.mu.Unlock()
	s.rebuild()
}

// Refresh re-decodes the document at path. When data is nil the text is read
// from storage; a missing file is forgotten.
func (s *Store) Refresh(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if data == nil {
		var err error
		data, err = s.provider.Read(path)
		if errors.Is(err, os.ErrNotExist) {
			s.Forget(path)
			return nil
		}
		if err != nil {
			return fmt.Errorf("workspace: refresh %s: %w", path, err)
		}
	}

	s.mu.RLock()
	prev, ok := s.docs[path]
	s.mu.RUnlock()
	modTime := s.now()
	if ok && !prev.ModTime.IsZero() {
		modTime = prev.ModTime
	}
	s.DocumentLoaded(s.decode(path, data, modTime))
	return nil
}

// Forget drops a document, for example after it was deleted on disk.
func (s *Store) Forget(path string) {
	s.mu.Lock()
	_, ok := s.docs[path]
	delete(s.docs, path)
	s.mu.Unlock()
	if ok {
		s.rebuild()
	}
}

// SetWindow changes the viewing range. The previous schedule is discarded.
func (s *Store) SetWindow(w calendar.Window) {
	s.mu.Lock()
	s.window = w
	s.mu.Unlock()
	s.rebuild()
}

// SetKinds changes the entry kind filter.
func (s *Store) SetKinds(k calendar.KindSet) {
	s.mu.Lock()
	s.kinds = k
	s.mu.Unlock()
	s.rebuild()
}

// SetExternal replaces the external events.
func (s *Store) SetExternal(events []models.ExternalEvent) {
	s.mu.Lock()
	s.external = append([]models.ExternalEvent(nil), events...)
	s.mu.Unlock()
	s.rebuild()
}

// Window returns the current viewing range.
func (s *Store) Window() calendar.Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

// Schedule returns the last reconciled schedule.
func (s *Store) Schedule() calendar.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule
}

// ScheduleFor reconciles an arbitrary window without changing the store's
// own window.
func (s *Store) ScheduleFor(w calendar.Window, kinds calendar.KindSet) calendar.Schedule {
	s.mu.RLock()
	in := s.inputLocked()
	s.mu.RUnlock()
	in.Window, in.Kinds = w, kinds
	return calendar.Reconcile(in)
}

// Entry looks up an entry of the current schedule.
func (s *Store) Entry(id string) (models.CalendarEntry, bool) {
	return s.Schedule().Find(id)
}

// Document returns a loaded document.
func (s *Store) Document(path string) (models.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[path]
	return d, ok
}

// Documents returns loaded documents of kind k, or all documents when k is
// empty, ordered by path.
func (s *Store) Documents(k models.Kind) []models.Document {
	s.mu.RLock()
	out := make([]models.Document, 0, len(s.docs))
	for _, d := range s.docs {
		if k == "" || d.Kind == k {
			out = append(out, d)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Habits returns every loaded habit document.
func (s *Store) Habits() []models.Document {
	return s.Documents(models.KindHabit)
}

// HandleMove applies a move gesture to the entry it names.
func (s *Store) HandleMove(ctx context.Context, g Gesture) (reschedule.Result, error) {
	entry, err := s.lookup(g.EntryID)
	if err != nil {
		return reschedule.Result{}, err
	}
	date, err := time.ParseInLocation(parser.DateLayout, g.TargetDate, s.loc)
	if err != nil {
		return reschedule.Result{}, fmt.Errorf("workspace: target date %q: %w", g.TargetDate, apperr.ErrInvalidGesture)
	}
	return s.writer.Move(ctx, entry, reschedule.Target{Date: date, Hour: g.TargetHour, Minute: g.TargetMinute})
}

// HandleResize applies a resize gesture to the entry it names.
func (s *Store) HandleResize(ctx context.Context, g Gesture) (reschedule.Result, error) {
	entry, err := s.lookup(g.EntryID)
	if err != nil {
		return reschedule.Result{}, err
	}
	return s.writer.Resize(ctx, entry, g.Minutes)
}

// ReferenceOptions lists the documents that can be referenced from a
// horizon's list. Projects are offered by folder; index documents are never
// offered. It stops early when ctx is cancelled.
func (s *Store) ReferenceOptions(ctx context.Context, h models.Horizon) ([]Choice, error) {
	metas, err := s.provider.List(parser.HorizonDir(h))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Choice{}, nil
		}
		return nil, fmt.Errorf("workspace: reference options: %w", err)
	}

	seen := make(map[string]bool)
	out := []Choice{}
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := Choice{Path: m.Path, Name: m.Name}
		if h == models.HorizonProjects {
			name := parser.ProjectName(m.Path)
			if name == "" {
				continue
			}
			c = Choice{Path: parser.HorizonDir(h) + "/" + name, Name: name}
		} else if parser.IsIndexDocument(m.Path) {
			continue
		}
		if seen[c.Path] {
			continue
		}
		seen[c.Path] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) lookup(id string) (models.CalendarEntry, error) {
	if id == "" {
		return models.CalendarEntry{}, fmt.Errorf("workspace: missing entry id: %w", apperr.ErrInvalidGesture)
	}
	entry, ok := s.Entry(id)
	if !ok {
		return models.CalendarEntry{}, fmt.Errorf("workspace: entry %s: %w", id, apperr.ErrNotFound)
	}
	return entry, nil
}

func (s *Store) decode(path string, data []byte, modTime time.Time) models.Document {
	return parser.Decode(data, parser.WithPath(path), parser.WithModTime(modTime), parser.WithLocation(s.loc))
}

func (s *Store) inputLocked() calendar.Input {
	docs := make([]models.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return calendar.Input{Documents: docs, External: s.external, Window: s.window, Kinds: s.kinds}
}

func (s *Store) rebuild() {
	s.mu.Lock()
	s.schedule = calendar.Reconcile(s.inputLocked())
	sched := s.schedule
	s.mu.Unlock()

	for _, fn := range s.listeners {
		fn(sched)
	}
}
