package chatdb

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

// fixture is a writable chat.db stand-in for tests. The package under test
// only ever opens read-only, so tests use a second, writable connection to
// populate rows the way Messages.app would.
type fixture struct {
	t    *testing.T
	db   *sql.DB
	path string
}

const fixtureSchema = `
CREATE TABLE message (
	ROWID INTEGER PRIMARY KEY,
	guid TEXT,
	text TEXT,
	attributedBody BLOB,
	date INTEGER NOT NULL DEFAULT 0,
	is_from_me INTEGER NOT NULL DEFAULT 0,
	handle_id INTEGER NOT NULL DEFAULT 0,
	cache_roomnames TEXT,
	service TEXT
);
CREATE TABLE handle (
	ROWID INTEGER PRIMARY KEY,
	id TEXT
);
CREATE TABLE chat (
	ROWID INTEGER PRIMARY KEY,
	guid TEXT,
	group_id TEXT
);
CREATE TABLE chat_message_join (
	chat_id INTEGER,
	message_id INTEGER
);
CREATE TABLE chat_handle_join (
	chat_id INTEGER,
	handle_id INTEGER
);
`

func newFixture(t *testing.T) *fixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(fixtureSchema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}
	return &fixture{t: t, db: db, path: path}
}

// open returns a read-only DB on the fixture, closed on test cleanup.
func (f *fixture) open() *DB {
	f.t.Helper()
	d, err := Open(f.path)
	if err != nil {
		f.t.Fatalf("Open() failed: %v", err)
	}
	f.t.Cleanup(func() { d.Close() })
	return d
}

func (f *fixture) addHandle(rowID int64, handle string) {
	f.t.Helper()
	if _, err := f.db.Exec(`INSERT INTO handle (ROWID, id) VALUES (?, ?)`, rowID, handle); err != nil {
		f.t.Fatalf("insert handle: %v", err)
	}
}

func (f *fixture) addChat(rowID int64, groupID string) {
	f.t.Helper()
	if _, err := f.db.Exec(`INSERT INTO chat (ROWID, guid, group_id) VALUES (?, ?, ?)`,
		rowID, "chat-guid", groupID); err != nil {
		f.t.Fatalf("insert chat: %v", err)
	}
}

func (f *fixture) linkChat(chatID, messageID int64) {
	f.t.Helper()
	if _, err := f.db.Exec(`INSERT INTO chat_message_join (chat_id, message_id) VALUES (?, ?)`,
		chatID, messageID); err != nil {
		f.t.Fatalf("link chat: %v", err)
	}
}

// row describes one message insert. Zero values mean: no text, no
// attributedBody, incoming, no handle, no room name, iMessage service.
type row struct {
	id       int64
	text     string
	body     []byte
	when     time.Time
	fromMe   bool
	handleID int64
	roomName string
}

func (f *fixture) addMessage(r row) {
	f.t.Helper()

	when := r.when
	if when.IsZero() {
		when = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	}

	var text any
	if r.text != "" {
		text = r.text
	}
	var room any
	if r.roomName != "" {
		room = r.roomName
	}

	_, err := f.db.Exec(`
		INSERT INTO message (ROWID, guid, text, attributedBody, date, is_from_me, handle_id, cache_roomnames, service)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.id, "guid", text, r.body, encodeAppleTime(when), r.fromMe, r.handleID, room, "iMessage")
	if err != nil {
		f.t.Fatalf("insert message: %v", err)
	}
}
