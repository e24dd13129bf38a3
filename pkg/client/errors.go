package client

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittotasks/pkg/document"
)

// ErrorKind classifies sync failures so callers can show one message per
// kind.
type ErrorKind int

const (
	// Connection covers dialing, I/O, timeouts and cancellation.
	Connection ErrorKind = iota + 1

	// Parse means the downloaded database could not be decoded.
	Parse

	// InvalidPassword means the server rejected the password, or its reply
	// could not be authenticated with ours.
	InvalidPassword

	// InvalidResponse means the server answered with something that does
	// not fit the request.
	InvalidResponse

	// InvalidDatabaseBinary means the server rejected the uploaded bytes.
	InvalidDatabaseBinary

	// FileNotFound, FileUnreadable and FileUnparsable report problems
	// with the local document file.
	FileNotFound
	FileUnreadable
	FileUnparsable

	// FileUnwritable means a downloaded database could not be saved.
	FileUnwritable
)

func (k ErrorKind) String() string {
	switch k {
	case Connection:
		return "connection error"
	case Parse:
		return "parse error"
	case InvalidPassword:
		return "invalid password"
	case InvalidResponse:
		return "invalid response"
	case InvalidDatabaseBinary:
		return "invalid database binary"
	case FileNotFound:
		return "file not found"
	case FileUnreadable:
		return "file unreadable"
	case FileUnparsable:
		return "file unparsable"
	case FileUnwritable:
		return "file unwritable"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// SyncError is the single error type returned by sync operations.
type SyncError struct {
	Kind ErrorKind
	Err  error
}

func (e *SyncError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Is matches another SyncError of the same kind that carries no cause, so
// the exported sentinels work with errors.Is.
func (e *SyncError) Is(target error) bool {
	t, ok := target.(*SyncError)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrConnection            = &SyncError{Kind: Connection}
	ErrParse                 = &SyncError{Kind: Parse}
	ErrInvalidPassword       = &SyncError{Kind: InvalidPassword}
	ErrInvalidResponse       = &SyncError{Kind: InvalidResponse}
	ErrInvalidDatabaseBinary = &SyncError{Kind: InvalidDatabaseBinary}
	ErrFileNotFound          = &SyncError{Kind: FileNotFound}
	ErrFileUnreadable        = &SyncError{Kind: FileUnreadable}
	ErrFileUnparsable        = &SyncError{Kind: FileUnparsable}
	ErrFileUnwritable        = &SyncError{Kind: FileUnwritable}
)

func newError(kind ErrorKind, err error) *SyncError {
	return &SyncError{Kind: kind, Err: err}
}

// KindOf returns the kind of err, or 0 if it is not a SyncError.
func KindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// fromLoadError maps a local document load failure to a SyncError.
func fromLoadError(err error) *SyncError {
	switch {
	case errors.Is(err, document.ErrFileNotFound):
		return newError(FileNotFound, err)
	case errors.Is(err, document.ErrFileUnparsable):
		return newError(FileUnparsable, err)
	default:
		return newError(FileUnreadable, err)
	}
}
