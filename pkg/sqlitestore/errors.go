package sqlitestore

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrOpen is returned when the database cannot be opened or initialized
	ErrOpen = errors.New("sqlitestore: open failed")

	// ErrExecute is returned when a statement fails inside the engine
	ErrExecute = errors.New("sqlitestore: statement failed")

	// ErrDecode is returned when a stored payload cannot be decoded
	ErrDecode = errors.New("sqlitestore: decode failed")

	// ErrEncode is returned when the serializer rejects a value
	ErrEncode = errors.New("sqlitestore: encode failed")

	// ErrCleanup is returned when backing files cannot be removed
	ErrCleanup = errors.New("sqlitestore: cleanup failed")

	// ErrInvalidTableName is returned when the configured table name is not a plain identifier
	ErrInvalidTableName = errors.New("sqlitestore: invalid table name")

	// ErrInvalidOption is returned for out-of-range configuration values
	ErrInvalidOption = errors.New("sqlitestore: invalid option")

	// ErrInvalidID is returned for an empty session id
	ErrInvalidID = errors.New("sqlitestore: session id is required")

	// ErrClosed is returned when an operation runs after Close
	ErrClosed = errors.New("sqlitestore: store is closed")
)

// OpError describes a failed store operation. Kind is one of the category
// sentinels above and Err is the underlying cause.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the category and the cause to errors.Is / errors.As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func opError(op string, kind, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// IsRetryable reports whether err comes from transient lock contention in the
// engine (SQLITE_BUSY or SQLITE_LOCKED).
func IsRetryable(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return true
	}
	return false
}
