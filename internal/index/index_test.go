package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/parser"
	"github.com/starford/gtdspace/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func doc(path, text string) models.Document {
	return parser.Decode([]byte(text), parser.WithPath(path), parser.WithLocation(time.UTC))
}

const shipIt = `# Ship it

## Status
[!singleselect:status:waiting]

## References
[!references:Cabinet/Checklist.md]

## Notes
See [[Launch plan|the plan]].
`

const marathon = `# Run a marathon

## Areas of Focus
[!areas-references:Areas of Focus/Health.md]

## Vision
[!vision-references:]

## Purpose & Principles
[!purpose-references:]
`

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM refs`).Scan(&count); err != nil {
		t.Fatalf("refs table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	d := doc("Projects/Launch/Ship it.md", shipIt)
	if err := db.UpsertDocument(d); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	cs, err := db.GetChecksum("Projects/Launch/Ship it.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != d.Checksum {
		t.Errorf("checksum = %q, want %q", cs, d.Checksum)
	}

	rows, err := db.ListDocuments(models.KindAction)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(rows) != 1 || rows[0].Title != "Ship it" || rows[0].Status != "waiting" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(doc("Projects/Launch/Ship it.md", shipIt))
	_ = db.UpsertDocument(doc("Goals/Run a marathon.md", marathon))
	_ = db.UpsertDocument(doc("Projects/Launch/README.md",
		"# Launch\n\n## Areas of Focus\n[!areas-references:Areas of Focus/Health.md]\n"))

	bl, err := db.Backlinks("Areas of Focus/Health.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 2 {
		t.Fatalf("expected 2 backlinks, got %+v", bl)
	}
	if bl[0].Source != "Goals/Run a marathon.md" || bl[0].Kind != string(models.HorizonAreas) {
		t.Errorf("first backlink = %+v", bl[0])
	}

	inline, _ := db.Backlinks("Launch plan")
	if len(inline) != 1 || inline[0].Kind != parser.LinkInline {
		t.Errorf("inline backlinks = %+v", inline)
	}
}

func TestBacklinks_ProjectFolder(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(doc("Areas of Focus/Work.md",
		"# Work\n\n## Projects\n[!projects-references:Projects/Launch]\n"))

	bl, err := db.Backlinks("Projects/Launch/README.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 1 || bl[0].Source != "Areas of Focus/Work.md" {
		t.Errorf("backlinks = %+v", bl)
	}
}

func TestDeleteDocument(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(doc("Goals/Run a marathon.md", marathon))

	if err := db.DeleteDocument("Goals/Run a marathon.md"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if cs, _ := db.GetChecksum("Goals/Run a marathon.md"); cs != "" {
		t.Errorf("deleted document still has checksum %q", cs)
	}
	if bl, _ := db.Backlinks("Areas of Focus/Health.md"); len(bl) != 0 {
		t.Errorf("expected 0 backlinks after delete, got %d", len(bl))
	}
}

func TestUpsertReplacesRefs(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(doc("Goals/Run a marathon.md", marathon))
	_ = db.UpsertDocument(doc("Goals/Run a marathon.md",
		"# Run a marathon\n\n## Areas of Focus\n[!areas-references:Areas of Focus/Fitness.md]\n"))

	if bl, _ := db.Backlinks("Areas of Focus/Health.md"); len(bl) != 0 {
		t.Error("old reference should be removed on upsert")
	}
	if bl, _ := db.Backlinks("Areas of Focus/Fitness.md"); len(bl) != 1 {
		t.Error("new reference should exist")
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(doc("Projects/Launch/Ship it.md", shipIt))
	_ = db.UpsertDocument(doc("Goals/Run a marathon.md", marathon))

	results, err := db.Search("marathon", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "Goals/Run a marathon.md" {
		t.Errorf("results = %+v", results)
	}
}

func TestSync(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	_ = store.Write("Projects/Launch/Ship it.md", []byte(shipIt))
	_ = store.Write("Goals/Run a marathon.md", []byte(marathon))
	_ = db.UpsertDocument(doc("Goals/Stale.md", "# Stale\n"))

	if err := Sync(db, store, time.UTC, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	sums, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 2 {
		t.Fatalf("checksums = %v", sums)
	}
	if _, ok := sums["Goals/Stale.md"]; ok {
		t.Error("stale entry not removed")
	}
	goals, _ := db.ListDocuments(models.KindGoal)
	if len(goals) != 1 || goals[0].Kind != models.KindGoal {
		t.Errorf("goals = %+v", goals)
	}
}
