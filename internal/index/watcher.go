package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/gtdspace/internal/storage"
)

const settleDelay = 200 * time.Millisecond

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change with one of
// the Event kinds and the workspace-relative path.
type EventCallback func(kind string, path string)

// Watcher follows file changes under a workspace root and keeps the index
// current.
type Watcher struct {
	db     *DB
	store  storage.Provider
	root   string
	loc    *time.Location
	logger *slog.Logger
}

// NewWatcher creates a watcher for the workspace at root.
func NewWatcher(db *DB, store storage.Provider, root string, loc *time.Location, logger *slog.Logger) *Watcher {
	return &Watcher{db: db, store: store, root: root, loc: loc, logger: logger}
}

// Run processes file change events until ctx is cancelled, calling cb (if
// non-nil) after each index mutation. Directories created at runtime are
// added to the watch list; hidden directories and editor temp files are
// ignored. Rename events trigger a short reconciliation pass that removes
// entries whose files are gone.
func (wt *Watcher) Run(ctx context.Context, cb EventCallback) error {
	db, store, root, logger := wt.db, wt.store, wt.root, wt.logger

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(settleDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			wt.reconcile(cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories join the watch list.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					wt.indexDir(absPath, cb)
					continue
				}
			}

			if !isDocument(absPath) {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				if idxErr := indexFile(db, rel, data, time.Now(), wt.loc); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := EventUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = EventCreated
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				if cb != nil {
					cb(kind, rel)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteDocument(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				if cb != nil {
					cb(EventDeleted, rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// Rename reports the old path only; the new one arrives as
				// Create when it stays inside the workspace.
				if delErr := db.DeleteDocument(rel); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("path", rel))
					if cb != nil {
						cb(EventDeleted, rel)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index entries whose file is gone and indexes files that
// are missing or stale, using one batch lookup on each side.
func (wt *Watcher) reconcile(cb EventCallback) {
	db, store, logger := wt.db, wt.store, wt.logger
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	modTimes := make(map[string]time.Time, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
		modTimes[m.Path] = m.UpdatedAt
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := db.DeleteDocument(p); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("path", p))
				if cb != nil {
					cb(EventDeleted, p)
				}
			}
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		data, readErr := store.Read(p)
		if readErr != nil {
			continue
		}
		if idxErr := indexFile(db, p, data, modTimes[p], wt.loc); idxErr == nil {
			logger.Debug("reconcile: indexed", slog.String("path", p))
			if cb != nil {
				cb(EventCreated, p)
			}
		}
	}
}

// indexDir indexes the documents found in a newly created directory, such as
// a project folder created together with its README.
func (wt *Watcher) indexDir(dirPath string, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isDocument(path) {
			return nil
		}
		rel, relErr := filepath.Rel(wt.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		data, readErr := wt.store.Read(rel)
		if readErr != nil {
			return nil
		}
		if idxErr := indexFile(wt.db, rel, data, time.Now(), wt.loc); idxErr == nil {
			wt.logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			if cb != nil {
				cb(EventCreated, rel)
			}
		}
		return nil
	})
}

// isDocument reports whether p is a markdown file outside hidden
// directories and not an editor swap file.
func isDocument(p string) bool {
	base := filepath.Base(p)
	if !strings.HasSuffix(base, ".md") || strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(filepath.Dir(p)), "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return false
		}
	}
	return true
}

// addDirsRecursive adds root and its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
