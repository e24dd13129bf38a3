package document

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound indicates the document file does not exist.
	ErrFileNotFound = errors.New("document file not found")

	// ErrFileUnreadable indicates the document file exists but could not be
	// read (permissions, I/O failure, path is a directory).
	ErrFileUnreadable = errors.New("document file unreadable")

	// ErrFileUnparsable indicates the file was read but its content is not
	// a valid document. Callers must surface this to the user and never
	// replace the file with an empty document.
	ErrFileUnparsable = errors.New("document file unparsable")

	// ErrInvalidBinary is returned by FromBinary when the payload is not a
	// well formed binary document.
	ErrInvalidBinary = errors.New("invalid document binary")

	// ErrUnsupportedVersion is returned when a payload was written by a
	// newer schema version than this build understands.
	ErrUnsupportedVersion = errors.New("unsupported document version")
)

// LoadError describes a failed LoadFrom. Kind is one of ErrFileNotFound,
// ErrFileUnreadable or ErrFileUnparsable.
type LoadError struct {
	Kind error
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *LoadError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
