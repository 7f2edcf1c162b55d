package index

import "github.com/starford/gtdspace/internal/models"

// DocumentIndex defines the document indexing operations. Consumers depend
// on this interface rather than on *DB so they can be tested with fakes.
type DocumentIndex interface {
	UpsertDocument(doc models.Document) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	ListDocuments(kind models.Kind) ([]DocumentRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(target string) ([]Backlink, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ DocumentIndex = (*DB)(nil)
