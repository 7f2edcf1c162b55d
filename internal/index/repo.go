package index

import (
	"database/sql"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/parser"
)

// DocumentRow is a row of the documents table.
type DocumentRow struct {
	Path      string      `json:"path"`
	Kind      models.Kind `json:"kind"`
	Title     string      `json:"title"`
	Status    string      `json:"status,omitempty"`
	Checksum  string      `json:"checksum"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SearchResult is one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Backlink is a document that references a target.
type Backlink struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
}

// UpsertDocument inserts or replaces a document, its FTS entry and its
// outgoing references within one transaction.
func (db *DB) UpsertDocument(doc models.Document) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	updated := doc.ModTime
	if updated.IsZero() {
		updated = time.Now()
	}
	body := string(doc.Raw)

	_, err = tx.Exec(`
		INSERT INTO documents (path, kind, title, status, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			kind       = excluded.kind,
			title      = excluded.title,
			status     = excluded.status,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, doc.Path, string(doc.Kind), doc.Fields.Title, string(doc.Fields.Status), doc.Checksum, body, updated)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	if err := ftsUpsert(tx, doc.Path, doc.Fields.Title, body); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM refs WHERE source = ?`, doc.Path); err != nil {
		return fmt.Errorf("index: clear refs: %w", err)
	}
	if links := parser.Links(doc); len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO refs (source, target, kind) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range links {
			if _, err := stmt.Exec(doc.Path, l.Target, l.Kind); err != nil {
				return fmt.Errorf("index: insert ref: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document, its FTS entry and outgoing references.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM refs WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM documents WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or "" if it is
// not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ListDocuments returns indexed documents of kind, or all of them when kind
// is empty, ordered by path.
func (db *DB) ListDocuments(kind models.Kind) ([]DocumentRow, error) {
	rows, err := db.conn.Query(`
		SELECT path, kind, title, status, checksum, updated_at
		FROM documents
		WHERE ? = '' OR kind = ?
		ORDER BY path
	`, string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	out := []DocumentRow{}
	for rows.Next() {
		var r DocumentRow
		var k string
		if err := rows.Scan(&r.Path, &k, &r.Title, &r.Status, &r.Checksum, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Kind = models.Kind(k)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Backlinks returns the documents that reference target. A project README
// is also reached through references to its folder.
func (db *DB) Backlinks(target string) ([]Backlink, error) {
	alias := target
	if parser.IsIndexDocument(target) {
		alias = path.Dir(target)
	}
	rows, err := db.conn.Query(`
		SELECT DISTINCT source, kind FROM refs
		WHERE target = ? OR target = ?
		ORDER BY source, kind
	`, target, alias)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	out := []Backlink{}
	for rows.Next() {
		var b Backlink
		if err := rows.Scan(&b.Source, &b.Kind); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
