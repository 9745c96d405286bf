package chatdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// messageColumns is the projection every message query selects. Both group
// signals ride along so each record resolves its GroupChat flag without a
// second round trip.
const messageColumns = `
	m.ROWID, m.text, m.attributedBody, m.date, m.is_from_me,
	h.id, cmj.chat_id, m.cache_roomnames, c.group_id, m.service`

// messageColumnCount guards against schema drift: a different count means
// the host application changed the store format.
const messageColumnCount = 10

const messageJoins = `
	FROM message m
	LEFT JOIN handle h ON h.ROWID = m.handle_id
	LEFT JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
	LEFT JOIN chat c ON c.ROWID = cmj.chat_id`

// Since returns all messages with row id greater than rowID, ascending by
// row id. This is the watcher's incremental fetch: rows can appear between
// any two calls, so the caller owns cursor advancement.
func (d *DB) Since(ctx context.Context, rowID int64) ([]Message, error) {
	query := `SELECT` + messageColumns + messageJoins + `
		WHERE m.ROWID > ?
		ORDER BY m.ROWID ASC`

	rows, err := d.db.QueryContext(ctx, query, rowID)
	if err != nil {
		return nil, classifyQueryErr("since", err)
	}
	defer rows.Close()

	return collectMessages("since", rows)
}

// MostRecent returns up to limit messages, ascending by time. If since is
// non-nil, messages at or before that instant are excluded. The time filter
// is applied on decoded timestamps so rows written under either date
// encoding compare correctly.
func (d *DB) MostRecent(ctx context.Context, limit int, since *time.Time) ([]Message, error) {
	query := `SELECT` + messageColumns + messageJoins + `
		ORDER BY m.date DESC
		LIMIT ?`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, classifyQueryErr("most recent", err)
	}
	defer rows.Close()

	msgs, err := collectMessages("most recent", rows)
	if err != nil {
		return nil, err
	}

	reverse(msgs)
	if since == nil {
		return msgs, nil
	}
	filtered := msgs[:0]
	for _, m := range msgs {
		if m.Time.After(*since) {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// ForHandle returns up to limit messages exchanged with the given remote
// handle, ascending by time.
func (d *DB) ForHandle(ctx context.Context, handle string, limit int) ([]Message, error) {
	query := `SELECT` + messageColumns + messageJoins + `
		WHERE h.id = ?
		ORDER BY m.date DESC
		LIMIT ?`

	rows, err := d.db.QueryContext(ctx, query, handle, limit)
	if err != nil {
		return nil, classifyQueryErr("for handle", err)
	}
	defer rows.Close()

	msgs, err := collectMessages("for handle", rows)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

// MaxID returns the highest message row id in the store, or 0 for an empty
// store. The watcher uses this to initialize the cursor on first run.
func (d *DB) MaxID(ctx context.Context) (int64, error) {
	var id int64
	err := d.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(ROWID), 0) FROM message`).Scan(&id)
	if err != nil {
		return 0, classifyQueryErr("max id", err)
	}
	return id, nil
}

// IsGroupChat reports whether the chat is a group conversation. A chat is a
// group if either signal fires: the chat row's explicit group identifier, or
// a cached room name on any of its messages. The group identifier is more
// reliable on newer schemas but can be absent on rows that belong to a
// group, so both are checked.
func (d *DB) IsGroupChat(ctx context.Context, chatID int64) (bool, error) {
	var groupID sql.NullString
	err := d.db.QueryRowContext(ctx,
		`SELECT group_id FROM chat WHERE ROWID = ?`, chatID,
	).Scan(&groupID)
	if err != nil && err != sql.ErrNoRows {
		return false, classifyQueryErr("chat group id", err)
	}
	if groupID.Valid && groupID.String != "" {
		return true, nil
	}

	var n int
	err = d.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM message m
		JOIN chat_message_join j ON j.message_id = m.ROWID
		WHERE j.chat_id = ? AND COALESCE(m.cache_roomnames, '') <> ''
		LIMIT 1`, chatID,
	).Scan(&n)
	if err != nil {
		return false, classifyQueryErr("chat room names", err)
	}
	return n > 0, nil
}

// collectMessages scans the full result set, verifying the column count
// before the first scan.
func collectMessages(query string, rows *sql.Rows) ([]Message, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, classifyQueryErr(query, err)
	}
	if len(cols) != messageColumnCount {
		return nil, &SchemaError{
			Details: fmt.Sprintf("%s returned %d columns, expected %d", query, len(cols), messageColumnCount),
		}
	}

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, classifyQueryErr(query, err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryErr(query, err)
	}
	return msgs, nil
}

// scanMessage converts one row into a Message, resolving text across both
// encodings and timestamps across both units. Per-field extraction failures
// degrade to absent values: a message without recoverable text is still a
// valid message.
func scanMessage(rows *sql.Rows) (Message, error) {
	var (
		rowID    int64
		plain    sql.NullString
		body     []byte
		rawDate  int64
		fromMe   bool
		sender   sql.NullString
		chatID   sql.NullInt64
		roomName sql.NullString
		groupID  sql.NullString
		service  sql.NullString
	)

	if err := rows.Scan(
		&rowID, &plain, &body, &rawDate, &fromMe,
		&sender, &chatID, &roomName, &groupID, &service,
	); err != nil {
		return Message{}, err
	}

	m := Message{
		RowID:   rowID,
		Time:    decodeAppleTime(rawDate),
		FromMe:  fromMe,
		Sender:  sender.String,
		Service: service.String,
	}
	m.Text, m.HasText = extractText(plain.String, body)
	if chatID.Valid {
		m.ChatID = chatID.Int64
		m.HasChat = true
	}
	m.GroupChat = (roomName.Valid && roomName.String != "") ||
		(groupID.Valid && groupID.String != "")

	return m, nil
}

func reverse(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
