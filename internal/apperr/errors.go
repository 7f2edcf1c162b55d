// Package apperr holds the sentinel errors shared across the workspace
// layers. Callers wrap them with fmt.Errorf("...: %w", ...) and match with
// errors.Is.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotRelocatable is returned for entries whose date is not owned by a
	// workspace document, such as external events and habit occurrences.
	ErrNotRelocatable = errors.New("entry cannot be moved")
	// ErrInvalidGesture rejects malformed move or resize requests.
	ErrInvalidGesture = errors.New("invalid gesture")
	// ErrPersistence marks a failed document write. The file is left as it was.
	ErrPersistence = errors.New("persistence failed")
)
