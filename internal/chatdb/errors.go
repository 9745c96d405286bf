package chatdb

import (
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrNotFound indicates the database file does not exist at the given path.
// Recoverable by polling until Messages.app creates it.
var ErrNotFound = errors.New("chatdb: database file not found")

// OpenError indicates the connection to the database could not be
// established even though the file exists.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("chatdb: open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// LockedError indicates transient lock contention with the host application.
// Callers may retry; see IsLocked.
type LockedError struct {
	Err error
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("chatdb: database locked: %v", e.Err)
}

func (e *LockedError) Unwrap() error { return e.Err }

// SchemaError indicates the database shape is not what this package expects:
// a missing table or a query returning an unexpected column count. This is a
// schema-drift signal; it usually means the host application's store format
// changed and the parser needs updating. Fatal for the affected query only.
type SchemaError struct {
	Details string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("chatdb: schema mismatch: %s", e.Details)
}

// QueryError is the catch-all for query execution failures that are neither
// lock contention nor schema drift.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("chatdb: query %q: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsLocked reports whether err represents transient lock contention.
// Uses errors.As to handle wrapped errors.
func IsLocked(err error) bool {
	var le *LockedError
	return errors.As(err, &le)
}

// IsSchemaMismatch reports whether err represents structural drift in the
// external store.
func IsSchemaMismatch(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// classifyQueryErr wraps a raw driver error into the package taxonomy.
// SQLITE_BUSY and SQLITE_LOCKED become LockedError so callers can retry;
// missing tables or columns become SchemaError; everything else becomes
// QueryError carrying the query text.
func classifyQueryErr(query string, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		if serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked {
			return &LockedError{Err: err}
		}
	}
	msg := err.Error()
	if strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column") {
		return &SchemaError{Details: msg}
	}
	return &QueryError{Query: query, Err: err}
}
