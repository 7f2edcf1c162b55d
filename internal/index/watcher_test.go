package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/gtdspace/internal/storage"
)

// watcherTestEnv sets up a workspace dir, storage and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store, testDB(t)
}

func startWatcher(t *testing.T, db *DB, store storage.Provider, root string, cb EventCallback) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go NewWatcher(db, store, root, time.UTC, quietLogger()).Run(ctx, cb) //nolint:errcheck
	time.Sleep(100 * time.Millisecond)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	var mu sync.Mutex
	var events []string
	startWatcher(t, db, store, root, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	_ = os.WriteFile(filepath.Join(root, "inbox.md"), []byte("# Inbox"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("inbox.md")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:inbox.md" {
				return true
			}
		}
		return false
	}, "expected created:inbox.md callback")
}

func TestWatcher_NewProjectFolder(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	startWatcher(t, db, store, root, nil)

	dir := filepath.Join(root, "Projects", "Launch")
	_ = os.MkdirAll(dir, 0o755)
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Launch"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("Projects/Launch/README.md")
		return cs != ""
	}, "file in new project folder not indexed by watcher")
}

func TestWatcher_IgnoresHiddenAndTempFiles(t *testing.T) {
	if isDocument("/ws/.git/notes.md") || isDocument("/ws/Habits/.Stretch.md.swp") || isDocument("/ws/Habits/Stretch.md123") {
		t.Error("hidden or temp file treated as document")
	}
	if !isDocument("/ws/Habits/Stretch.md") {
		t.Error("habit document rejected")
	}
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(root, "del.md"), []byte("# Delete Me"), 0o644)
	if err := Sync(db, store, time.UTC, quietLogger()); err != nil {
		t.Fatal(err)
	}
	if cs, _ := db.GetChecksum("del.md"); cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	startWatcher(t, db, store, root, nil)
	_ = os.Remove(filepath.Join(root, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del.md")
		return cs == ""
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(root, "old.md"), []byte("# Rename"), 0o644)
	if err := Sync(db, store, time.UTC, quietLogger()); err != nil {
		t.Fatal(err)
	}

	startWatcher(t, db, store, root, nil)
	_ = os.Rename(filepath.Join(root, "old.md"), filepath.Join(root, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old.md")
		newCS, _ := db.GetChecksum("renamed.md")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
