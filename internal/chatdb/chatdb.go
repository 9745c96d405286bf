package chatdb

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Message is the normalized projection of one chat.db row. Records are
// created fresh on every query and never mutated.
type Message struct {
	// RowID is the store's native row identifier, strictly increasing
	// within a single store lifetime. Used as the resume cursor.
	RowID int64

	// Text is the extracted message text. HasText is false for rows that
	// carried only non-text content (attachments, tapbacks).
	Text    string
	HasText bool

	// Time is the message timestamp, decoded from the store's Apple-epoch
	// integer regardless of which unit (seconds or nanoseconds) the row used.
	Time time.Time

	// FromMe is true if the message was authored locally.
	FromMe bool

	// Sender is the remote party's handle (phone number or account id).
	// Empty for some system rows and for outgoing messages.
	Sender string

	// ChatID identifies the owning conversation. HasChat is false for
	// orphan rows with no chat_message_join entry.
	ChatID  int64
	HasChat bool

	// GroupChat is true if either group signal fired for this row: the
	// per-message cached room name or the chat row's group identifier.
	GroupChat bool

	// Service is the delivery service for the row ("iMessage", "SMS").
	Service string
}

// dsnPath escapes the characters the driver treats as URI delimiters, so a
// file path containing ? or # is not truncated at the delimiter.
var dsnPath = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

// DB is a read-only handle on a chat.db file.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens the Messages database at path in strictly read-only mode.
// Returns ErrNotFound if the file does not exist and *OpenError if the
// connection cannot be established. Open never creates the file.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrNotFound
	}

	// mode=ro prevents sqlite from ever creating or writing; the host
	// application keeps exclusive ownership of writes.
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=1000", dsnPath.Replace(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &OpenError{Path: path, Err: err}
	}

	// A single connection: sqlite does not support concurrent statement
	// execution on one handle, and callers wanting parallelism open
	// independent DB instances instead.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &DB{db: db, path: path}, nil
}

// Path returns the file path this handle was opened on.
func (d *DB) Path() string {
	return d.path
}

// Close closes the underlying connection. Safe to call on a nil-db handle.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}
