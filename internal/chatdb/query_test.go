package chatdb

import (
	"context"
	"testing"
	"time"
)

func TestMaxID_EmptyStore(t *testing.T) {
	f := newFixture(t)
	d := f.open()

	id, err := d.MaxID(context.Background())
	if err != nil {
		t.Fatalf("MaxID() failed: %v", err)
	}
	if id != 0 {
		t.Errorf("MaxID() = %d on empty store, want 0", id)
	}
}

func TestMaxID_ReturnsHighestRowID(t *testing.T) {
	f := newFixture(t)
	f.addMessage(row{id: 3, text: "a"})
	f.addMessage(row{id: 7, text: "b"})
	d := f.open()

	id, err := d.MaxID(context.Background())
	if err != nil {
		t.Fatalf("MaxID() failed: %v", err)
	}
	if id != 7 {
		t.Errorf("MaxID() = %d, want 7", id)
	}
}

func TestSince_SingleInboundRow(t *testing.T) {
	f := newFixture(t)
	f.addHandle(1, "+15551234567")
	f.addMessage(row{id: 1, text: "Hello", handleID: 1})
	d := f.open()

	msgs, err := d.Since(context.Background(), 0)
	if err != nil {
		t.Fatalf("Since(0) failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("Since(0) returned %d messages, want 1", len(msgs))
	}

	m := msgs[0]
	if m.RowID != 1 {
		t.Errorf("RowID = %d, want 1", m.RowID)
	}
	if !m.HasText || m.Text != "Hello" {
		t.Errorf("Text = (%q, %v), want (\"Hello\", true)", m.Text, m.HasText)
	}
	if m.FromMe {
		t.Error("FromMe = true, want inbound")
	}
	if m.Sender != "+15551234567" {
		t.Errorf("Sender = %q, want +15551234567", m.Sender)
	}
	if m.GroupChat {
		t.Error("GroupChat = true with no group data")
	}
}

func TestSince_ExcludesCursorAndOrders(t *testing.T) {
	f := newFixture(t)
	for id := int64(1); id <= 5; id++ {
		f.addMessage(row{id: id, text: "msg"})
	}
	d := f.open()

	msgs, err := d.Since(context.Background(), 2)
	if err != nil {
		t.Fatalf("Since(2) failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("Since(2) returned %d messages, want 3", len(msgs))
	}
	for i, m := range msgs {
		if want := int64(3 + i); m.RowID != want {
			t.Errorf("msgs[%d].RowID = %d, want %d (ascending by id)", i, m.RowID, want)
		}
	}
}

func TestSince_AttributedBodyOnly(t *testing.T) {
	f := newFixture(t)
	f.addMessage(row{id: 1, body: makeArchive("archived text")})
	f.addMessage(row{id: 2}) // attachment-only: no text anywhere
	d := f.open()

	msgs, err := d.Since(context.Background(), 0)
	if err != nil {
		t.Fatalf("Since(0) failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Since(0) returned %d messages, want 2", len(msgs))
	}
	if !msgs[0].HasText || msgs[0].Text != "archived text" {
		t.Errorf("archived row text = (%q, %v)", msgs[0].Text, msgs[0].HasText)
	}
	if msgs[1].HasText {
		t.Errorf("attachment-only row has text %q, want absent", msgs[1].Text)
	}
}

func TestSince_LegacyAndModernDates(t *testing.T) {
	f := newFixture(t)
	legacy := time.Date(2015, time.May, 1, 9, 0, 0, 0, time.UTC)
	modern := time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)

	// Insert the legacy row with a seconds-encoded date directly.
	f.addMessage(row{id: 2, text: "modern", when: modern})
	if _, err := f.db.Exec(
		`INSERT INTO message (ROWID, text, date) VALUES (1, 'legacy', ?)`,
		encodeAppleTimeLegacy(legacy)); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	d := f.open()

	msgs, err := d.Since(context.Background(), 0)
	if err != nil {
		t.Fatalf("Since(0) failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if diff := msgs[0].Time.Sub(legacy); diff < -time.Second || diff > time.Second {
		t.Errorf("legacy row decoded to %v, want %v within 1s", msgs[0].Time, legacy)
	}
	if !msgs[1].Time.Equal(modern) {
		t.Errorf("modern row decoded to %v, want %v", msgs[1].Time, modern)
	}
}

func TestSince_GroupSignals(t *testing.T) {
	f := newFixture(t)
	f.addChat(1, "group-abc")
	f.addMessage(row{id: 1, text: "via group_id"})
	f.linkChat(1, 1)
	f.addMessage(row{id: 2, text: "via room name", roomName: "chat12345"})
	f.addMessage(row{id: 3, text: "direct"})
	d := f.open()

	msgs, err := d.Since(context.Background(), 0)
	if err != nil {
		t.Fatalf("Since(0) failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if !msgs[0].GroupChat {
		t.Error("group_id signal alone should mark the row as group")
	}
	if !msgs[1].GroupChat {
		t.Error("cache_roomnames signal alone should mark the row as group")
	}
	if msgs[2].GroupChat {
		t.Error("row with neither signal marked as group")
	}
}

func TestMostRecent_AscendingAndBounded(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	for id := int64(1); id <= 4; id++ {
		f.addMessage(row{id: id, text: "m", when: base.Add(time.Duration(id) * time.Minute)})
	}
	d := f.open()

	msgs, err := d.MostRecent(context.Background(), 2, nil)
	if err != nil {
		t.Fatalf("MostRecent() failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	// The two newest, oldest first.
	if msgs[0].RowID != 3 || msgs[1].RowID != 4 {
		t.Errorf("got rows %d,%d, want 3,4 ascending by time", msgs[0].RowID, msgs[1].RowID)
	}
}

func TestMostRecent_SinceFilter(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	for id := int64(1); id <= 4; id++ {
		f.addMessage(row{id: id, text: "m", when: base.Add(time.Duration(id) * time.Minute)})
	}
	d := f.open()

	cutoff := base.Add(2 * time.Minute)
	msgs, err := d.MostRecent(context.Background(), 10, &cutoff)
	if err != nil {
		t.Fatalf("MostRecent() failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages after cutoff, want 2", len(msgs))
	}
	if msgs[0].RowID != 3 || msgs[1].RowID != 4 {
		t.Errorf("got rows %d,%d, want 3,4", msgs[0].RowID, msgs[1].RowID)
	}
}

func TestForHandle(t *testing.T) {
	f := newFixture(t)
	f.addHandle(1, "+15551234567")
	f.addHandle(2, "+447700900123")
	base := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	f.addMessage(row{id: 1, text: "hi", handleID: 1, when: base})
	f.addMessage(row{id: 2, text: "other", handleID: 2, when: base.Add(time.Minute)})
	f.addMessage(row{id: 3, text: "again", handleID: 1, when: base.Add(2 * time.Minute)})
	d := f.open()

	msgs, err := d.ForHandle(context.Background(), "+15551234567", 10)
	if err != nil {
		t.Fatalf("ForHandle() failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].RowID != 1 || msgs[1].RowID != 3 {
		t.Errorf("got rows %d,%d, want 1,3 ascending by time", msgs[0].RowID, msgs[1].RowID)
	}
}

func TestIsGroupChat(t *testing.T) {
	f := newFixture(t)
	f.addChat(1, "group-abc")
	f.addChat(2, "")
	f.addChat(3, "")
	f.addMessage(row{id: 1, text: "m", roomName: "chat99"})
	f.linkChat(2, 1)
	d := f.open()

	cases := []struct {
		name   string
		chatID int64
		want   bool
	}{
		{"group id set", 1, true},
		{"room name on member message", 2, true},
		{"neither signal", 3, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.IsGroupChat(context.Background(), tc.chatID)
			if err != nil {
				t.Fatalf("IsGroupChat(%d) failed: %v", tc.chatID, err)
			}
			if got != tc.want {
				t.Errorf("IsGroupChat(%d) = %v, want %v", tc.chatID, got, tc.want)
			}
		})
	}
}

func TestSince_SchemaMismatch(t *testing.T) {
	f := newFixture(t)
	if _, err := f.db.Exec(`DROP TABLE chat_message_join`); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	d := f.open()

	_, err := d.Since(context.Background(), 0)
	if !IsSchemaMismatch(err) {
		t.Errorf("Since() on drifted schema = %v, want SchemaError", err)
	}
}
