// Package storage defines the workspace file-system abstraction. The
// document text is the only durable state; every other layer reads and
// writes through a Provider.
package storage

import "github.com/starford/gtdspace/internal/models"

// Provider is the interface for workspace file operations. All paths are
// relative to the workspace root and use forward slashes.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.DocumentMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
