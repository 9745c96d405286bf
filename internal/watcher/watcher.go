// Package watcher turns file-change notifications on the message store into
// batches of new inbound messages.
//
// A single goroutine owns the debounce timer, the store queries, and the
// cursor; no two checks ever run concurrently against the same Watcher, so
// there are no races on cursor state. OS notifications are bursty (one
// logical insert can produce several raw events), so each event cancels and
// reschedules a settle timer and the store is only queried once the burst
// settles.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/aemery/chatwatch/internal/chatdb"
	"github.com/aemery/chatwatch/internal/cursor"
)

// State is the watcher lifecycle state.
type State int

const (
	// StateIdle is the initial state, before Start or after a failed Start.
	StateIdle State = iota
	// StateWatching means the file watch is active and no check is pending.
	StateWatching
	// StateDebouncing means a file change was seen and the settle timer is
	// running.
	StateDebouncing
	// StateChecking means a store query is in flight.
	StateChecking
	// StateStopped is terminal; a stopped watcher is not restartable.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateDebouncing:
		return "debouncing"
	case StateChecking:
		return "checking"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SubscriptionID identifies one subscriber for Unsubscribe.
type SubscriptionID string

// Handler receives each non-empty batch of new inbound messages, in row-id
// order. Handlers run on the watcher goroutine: a slow handler delays the
// next check, never overlaps it. A handler must not call Stop, since Stop
// waits for the very goroutine the handler runs on; Unsubscribe is safe
// from inside a handler.
type Handler func([]chatdb.Message)

// Store is the read surface the watcher needs from the message database:
// incremental reads past the cursor, the current maximum row id, and the
// backing file path. *chatdb.DB satisfies it.
type Store interface {
	Since(ctx context.Context, rowID int64) ([]chatdb.Message, error)
	MaxID(ctx context.Context) (int64, error)
	Path() string
}

// Options tune the watcher. Zero values take the defaults.
type Options struct {
	// Settle is the debounce interval after the last file-change event
	// before the store is queried. Default 500ms.
	Settle time.Duration

	// LockRetries is how many times a Locked query is retried before the
	// failure is logged and dropped. Default 3.
	LockRetries int

	// LockRetryBase is the first retry delay; it doubles per attempt.
	// Default 250ms.
	LockRetryBase time.Duration

	// Logger receives watch-loop conditions. Default slog.Default().
	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.Settle <= 0 {
		o.Settle = 500 * time.Millisecond
	}
	if o.LockRetries <= 0 {
		o.LockRetries = 3
	}
	if o.LockRetryBase <= 0 {
		o.LockRetryBase = 250 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher monitors the message store's backing file and delivers new inbound
// messages to subscribers.
type Watcher struct {
	db      Store
	cursors *cursor.Store
	opts    Options

	mu     sync.Mutex
	state  State
	fsw    *fsnotify.Watcher
	subs   map[SubscriptionID]Handler
	done   chan struct{}
	exited chan struct{}

	// replaced is signaled when the backing file is renamed or removed
	// under the watch. Buffered so the loop never blocks on it.
	replaced chan struct{}

	// cur is the last-processed row id. Owned by the run goroutine after
	// Start; Start itself initializes it before the goroutine exists.
	cur int64
}

// New creates a watcher over an open store handle. The handle must remain
// open for the watcher's lifetime and must not be used concurrently by other
// callers (open an independent chatdb.DB for that).
func New(db Store, cursors *cursor.Store, opts Options) *Watcher {
	opts.applyDefaults()
	return &Watcher{
		db:       db,
		cursors:  cursors,
		opts:     opts,
		subs:     make(map[SubscriptionID]Handler),
		replaced: make(chan struct{}, 1),
	}
}

// Subscribe registers a handler for inbound message batches. May be called
// before or after Start.
func (w *Watcher) Subscribe(fn Handler) SubscriptionID {
	id := SubscriptionID(uuid.NewString())
	w.mu.Lock()
	w.subs[id] = fn
	w.mu.Unlock()
	return id
}

// Unsubscribe removes a handler. Unknown ids are ignored.
func (w *Watcher) Unsubscribe(id SubscriptionID) {
	w.mu.Lock()
	delete(w.subs, id)
	w.mu.Unlock()
}

// Replaced is signaled when the backing file was renamed or removed under
// the active watch. The watch handle is stale at that point: the caller
// should Stop this watcher and start a fresh one on the new file rather
// than silently monitoring a dead inode.
func (w *Watcher) Replaced() <-chan struct{} {
	return w.replaced
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Cursor returns the last-processed row id as of the most recent completed
// check.
func (w *Watcher) Cursor() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur
}

// Start opens the file watch and begins monitoring. Starting an
// already-watching watcher is a no-op. If the backing file does not exist,
// Start fails with chatdb.ErrNotFound and the watcher stays idle.
//
// On the very first start (no cursor ever persisted) the cursor is
// initialized to the store's current maximum row id, so history is never
// replayed.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateWatching, StateDebouncing, StateChecking:
		return nil
	case StateStopped:
		return fmt.Errorf("watcher: already stopped")
	}

	path := w.db.Path()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return chatdb.ErrNotFound
	}

	cur, ok, err := w.cursors.Get()
	if err != nil {
		return fmt.Errorf("watcher: load cursor: %w", err)
	}
	if !ok {
		cur, err = w.db.MaxID(context.Background())
		if err != nil {
			return fmt.Errorf("watcher: initialize cursor: %w", err)
		}
		if err := w.cursors.Set(cur); err != nil {
			return fmt.Errorf("watcher: persist initial cursor: %w", err)
		}
	} else {
		maxID, err := w.db.MaxID(context.Background())
		if err != nil {
			return fmt.Errorf("watcher: read max row id: %w", err)
		}
		// Row ids are only monotonic within one store lifetime. A persisted
		// cursor past the store's max means the file was replaced with an
		// older copy; flag it rather than trust it, and leave the reset to
		// the operator.
		if cur > maxID {
			w.opts.Logger.Warn("cursor beyond store max row id",
				"cursor", cur, "max_row_id", maxID)
		}
	}
	w.cur = cur

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: create file watch: %w", err)
	}
	// Watch the containing directory: events for the database file, its WAL
	// sidecars, and any rename/replace of the file all arrive there.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watcher: watch %s: %w", filepath.Dir(path), err)
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.exited = make(chan struct{})
	w.state = StateWatching
	w.opts.Logger.Info("watch started", "path", path, "cursor", cur)

	go w.run(path)
	return nil
}

// Stop tears down the watch and cancels any pending debounce. Idempotent.
// An in-flight store query is allowed to finish; Stop returns after the
// watch goroutine has exited. Calling Stop from inside a Handler deadlocks
// for the same reason.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.state == StateIdle || w.state == StateStopped {
		w.state = StateStopped
		w.mu.Unlock()
		return
	}
	done := w.done
	exited := w.exited
	w.state = StateStopped
	w.mu.Unlock()

	close(done)
	<-exited
}

// run is the single execution context for debounce, queries, and cursor
// updates. It exits only when Stop closes done; store errors never kill it,
// since it runs unattended.
func (w *Watcher) run(path string) {
	defer close(w.exited)
	defer w.fsw.Close()

	// The settle timer starts disarmed; each relevant file event re-arms it.
	settle := time.NewTimer(w.opts.Settle)
	if !settle.Stop() {
		<-settle.C
	}
	defer settle.Stop()

	base := filepath.Base(path)

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base && filepath.Base(ev.Name) != base+"-wal" {
				continue
			}
			if filepath.Base(ev.Name) == base && ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				w.opts.Logger.Warn("store file replaced under watch", "event", ev.Op.String())
				select {
				case w.replaced <- struct{}{}:
				default:
				}
				continue
			}
			// Cancel-and-reschedule: only a quiet settle interval triggers
			// a check, bounding query frequency under write bursts.
			if !settle.Stop() {
				select {
				case <-settle.C:
				default:
				}
			}
			settle.Reset(w.opts.Settle)
			w.setState(StateDebouncing)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Error("file watch error", "error", err)

		case <-settle.C:
			w.setState(StateChecking)
			w.check()
			w.setState(StateWatching)
		}
	}
}

// check fetches everything past the cursor and fans inbound messages out.
//
// Ordering is load-bearing: the cursor advances on any non-empty batch,
// before inbound filtering. Advancing only when an inbound message exists
// would refetch outgoing-only batches forever.
func (w *Watcher) check() {
	msgs, err := w.sinceWithRetry()
	if err != nil {
		w.opts.Logger.Error("store check failed", "error", err, "cursor", w.Cursor())
		return
	}
	if len(msgs) == 0 {
		return
	}

	last := msgs[len(msgs)-1].RowID
	w.mu.Lock()
	w.cur = last
	w.mu.Unlock()
	if err := w.cursors.Set(last); err != nil {
		w.opts.Logger.Error("cursor persist failed", "error", err, "cursor", last)
	}

	inbound := msgs[:0]
	for _, m := range msgs {
		if !m.FromMe {
			inbound = append(inbound, m)
		}
	}
	if len(inbound) == 0 {
		w.opts.Logger.Debug("outgoing-only batch", "count", len(msgs), "cursor", last)
		return
	}

	w.opts.Logger.Info("new inbound messages", "count", len(inbound), "cursor", last)
	for _, fn := range w.handlers() {
		fn(inbound)
	}
}

// sinceWithRetry retries Locked failures with doubling backoff. Contention
// with the host application's own writes is routine and short-lived; any
// other failure is returned as-is.
func (w *Watcher) sinceWithRetry() ([]chatdb.Message, error) {
	cur := w.Cursor()
	delay := w.opts.LockRetryBase

	msgs, err := w.db.Since(context.Background(), cur)
	for attempt := 0; attempt < w.opts.LockRetries && chatdb.IsLocked(err); attempt++ {
		w.opts.Logger.Debug("store locked, retrying", "attempt", attempt+1, "delay", delay)
		select {
		case <-w.done:
			return nil, err
		case <-time.After(delay):
		}
		delay *= 2
		msgs, err = w.db.Since(context.Background(), cur)
	}
	return msgs, err
}

func (w *Watcher) handlers() []Handler {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Handler, 0, len(w.subs))
	for _, fn := range w.subs {
		out = append(out, fn)
	}
	return out
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	// Stop wins any race with the run loop.
	if w.state != StateStopped {
		w.state = s
	}
	w.mu.Unlock()
}
