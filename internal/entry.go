// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/sync/errgroup"

	"github.com/starford/gtdspace/internal/agenda"
	"github.com/starford/gtdspace/internal/api"
	"github.com/starford/gtdspace/internal/calendar"
	"github.com/starford/gtdspace/internal/docservice"
	"github.com/starford/gtdspace/internal/external"
	"github.com/starford/gtdspace/internal/habits"
	"github.com/starford/gtdspace/internal/index"
	"github.com/starford/gtdspace/internal/mcpserver"
	"github.com/starford/gtdspace/internal/sse"
	"github.com/starford/gtdspace/internal/storage"
	"github.com/starford/gtdspace/internal/workspace"
)

// Version is reported by the MCP server.
var Version = "dev"

// AgendaRequest selects what the agenda command prints.
type AgendaRequest struct {
	Start  string
	End    string
	Span   string
	Kinds  string
	Habits bool
}

func newApplication(opts []Option) (*application, error) {
	app := &application{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger(w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openWorkspace builds the storage provider and the loaded document store.
func (a *application) openWorkspace(ctx context.Context, logger *slog.Logger, wsOpts ...workspace.Option) (*storage.FS, *workspace.Store, error) {
	cfg := a.config

	loc, err := cfg.Workspace.Location()
	if err != nil {
		return nil, nil, fmt.Errorf("workspace timezone: %w", err)
	}
	weekStart, err := cfg.Calendar.FirstWeekday()
	if err != nil {
		return nil, nil, fmt.Errorf("calendar week start: %w", err)
	}
	kinds, err := cfg.Calendar.Kinds()
	if err != nil {
		return nil, nil, fmt.Errorf("calendar kinds: %w", err)
	}

	store, err := storage.NewFS(cfg.Workspace.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	opts := append([]workspace.Option{
		workspace.WithLogger(logger),
		workspace.WithLocation(loc),
		workspace.WithWeekStart(weekStart),
		workspace.WithKinds(kinds),
	}, wsOpts...)
	ws := workspace.New(store, opts...)
	if err := ws.Load(ctx); err != nil {
		return nil, nil, fmt.Errorf("load workspace: %w", err)
	}

	if cfg.Calendar.ExternalCache != "" {
		snap, err := external.Load(cfg.Calendar.ExternalCache, loc)
		if err != nil {
			logger.Warn("external calendar cache unreadable", slog.String("error", err.Error()))
		} else {
			ws.SetExternal(snap.Events)
		}
	}
	return store, ws, nil
}

// Run starts the HTTP server, the workspace watcher and the habit reset loop.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger(os.Stdout)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	root, err := homedir.Expand(cfg.Workspace.Path)
	if err != nil {
		return fmt.Errorf("expand workspace path: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create workspace dir: %w", err)
	}

	broker := sse.NewBroker(cfg.Calendar.ScheduleThrottle, cfg.Calendar.NowTick)
	defer broker.Close()

	store, ws, err := app.openWorkspace(ctx, logger, workspace.WithListener(func(calendar.Schedule) {
		broker.ScheduleChanged()
	}))
	if err != nil {
		return err
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := index.Sync(db, store, ws.Location(), logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svc := docservice.NewService(store, db, ws, logger)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watcher keeps the index current; the store and SSE clients follow it.
	g.Go(func() error {
		watcher := index.NewWatcher(db, store, store.Root(), ws.Location(), logger)
		return watcher.Run(gCtx, func(kind, path string) {
			if err := ws.Refresh(gCtx, path, nil); err != nil {
				logger.Warn("workspace refresh failed", slog.String("path", path), slog.String("error", err.Error()))
			}
			broker.PublishDocumentEvent(kind, path)
		})
	})

	if cfg.Habits.ResetInterval > 0 {
		g.Go(func() error {
			resetLoop(gCtx, svc.Habits(), cfg.Habits.ResetInterval, logger)
			return nil
		})
	}

	if cfg.Calendar.ExternalCache != "" {
		g.Go(func() error {
			externalLoop(gCtx, ws, cfg.Calendar.ExternalCache, cfg.Calendar.NowTick, logger)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams never finish on their own.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func resetLoop(ctx context.Context, svc *habits.Service, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := svc.CheckAndReset(ctx, time.Now()); err != nil && ctx.Err() == nil {
			logger.Error("habit reset failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// externalLoop reloads the external calendar cache whenever its sync stamp
// moves.
func externalLoop(ctx context.Context, ws *workspace.Store, path string, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		snap, err := external.Load(path, ws.Location())
		if err != nil {
			logger.Warn("external calendar cache unreadable", slog.String("error", err.Error()))
			continue
		}
		if snap.LastUpdated.Equal(last) {
			continue
		}
		last = snap.LastUpdated
		ws.SetExternal(snap.Events)
		logger.Debug("external events reloaded", slog.Int("count", len(snap.Events)))
	}
}

// RunAgenda prints the schedule for the requested window, and optionally the
// habit list, to the configured output.
func RunAgenda(ctx context.Context, req AgendaRequest, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger(os.Stderr)

	_, ws, err := app.openWorkspace(ctx, logger)
	if err != nil {
		return err
	}

	win, ok, err := calendar.ParseWindow(req.Start, req.End, req.Span, ws.Location())
	if err != nil {
		return err
	}
	if !ok {
		win = ws.Window()
		if req.Span != "" {
			days, err := calendar.ParseSpan(req.Span)
			if err != nil {
				return err
			}
			win = calendar.DaysWindow(win.Start, days)
		}
	}
	kinds, err := calendar.ParseKinds(req.Kinds)
	if err != nil {
		return err
	}
	if req.Kinds == "" {
		kinds, _ = app.config.Calendar.Kinds()
	}

	p := agenda.NewPrinter(app.out)
	if err := p.Schedule(ws.ScheduleFor(win, kinds)); err != nil {
		return fmt.Errorf("print agenda: %w", err)
	}
	if !req.Habits {
		return nil
	}
	if _, err := fmt.Fprintln(app.out); err != nil {
		return err
	}
	return p.Habits(habits.NewService(nil, ws, ws, ws.Location(), logger).List())
}

// RunHabitReset runs one habit reset pass and reports the rewritten habits.
func RunHabitReset(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger(os.Stderr)

	store, ws, err := app.openWorkspace(ctx, logger)
	if err != nil {
		return err
	}
	db, err := index.Open(app.config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	svc := docservice.NewService(store, db, ws, logger)
	paths, err := svc.Habits().CheckAndReset(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("habit reset: %w", err)
	}
	return agenda.NewPrinter(app.out).Reset(paths)
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr because stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger(os.Stderr)

	store, ws, err := app.openWorkspace(ctx, logger)
	if err != nil {
		return err
	}
	db, err := index.Open(app.config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := index.Sync(db, store, ws.Location(), logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	srv := mcpserver.New(docservice.NewService(store, db, ws, logger), Version)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
