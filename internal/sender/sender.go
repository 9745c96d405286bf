// Package sender delivers outbound text through the host messaging client's
// automation surface. Every send is validated, sanitized against command
// injection, chunked to a bounded length, and paced by a global rate limit.
package sender

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Options tune a Sender. Zero values take the defaults.
type Options struct {
	// ChunkLimit is the maximum characters per automation call. Default 2000.
	ChunkLimit int

	// MaxLength is the absolute cap on a message, measured after trimming.
	// Default 10000.
	MaxLength int

	// MinInterval is the minimum spacing between automation calls, global
	// to the sender instance (not per recipient). Default 1s.
	MinInterval time.Duration

	// Logger receives per-chunk delivery logs. Default slog.Default().
	Logger *slog.Logger

	// now and sleep are overridable for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

func (o *Options) applyDefaults() {
	if o.ChunkLimit <= 0 {
		o.ChunkLimit = 2000
	}
	if o.MaxLength <= 0 {
		o.MaxLength = 10000
	}
	if o.MinInterval <= 0 {
		o.MinInterval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.sleep == nil {
		o.sleep = time.Sleep
	}
}

// Sender validates, sanitizes, chunks, and delivers outbound messages.
//
// All sends are serialized on one mutex: concurrent callers are queued, not
// merely delayed, so the rate-limit state has a single writer and chunks of
// different messages never interleave.
type Sender struct {
	runner Runner
	opts   Options

	mu       sync.Mutex
	lastSend time.Time
}

// New creates a Sender that delivers through runner.
func New(runner Runner, opts Options) *Sender {
	opts.applyDefaults()
	return &Sender{runner: runner, opts: opts}
}

// Send delivers text to recipient, chunk by chunk, in order. It fails before
// any automation call if the recipient or text is invalid. Delivery failures
// propagate to the caller unwrapped; retry policy belongs to the caller.
func (s *Sender) Send(ctx context.Context, text, recipient string) error {
	if !IsValidRecipient(recipient) {
		return &InvalidRecipientError{Handle: recipient}
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(trimmed); n > s.opts.MaxLength {
		return &TooLongError{Length: n, Max: s.opts.MaxLength}
	}

	// NFC-normalize before chunking so combining sequences never straddle
	// a chunk boundary.
	chunks := splitChunks(norm.NFC.String(trimmed), s.opts.ChunkLimit)

	s.mu.Lock()
	defer s.mu.Unlock()

	escapedRecipient := escape(recipient)
	for i, chunk := range chunks {
		s.waitTurn()
		script := renderScript(escapedRecipient, escape(chunk))
		if err := s.runner.Run(ctx, script); err != nil {
			return err
		}
		s.lastSend = s.opts.now()
		s.opts.Logger.Debug("chunk delivered",
			"recipient", recipient, "chunk", i+1, "of", len(chunks))
	}
	return nil
}

// waitTurn blocks until MinInterval has elapsed since the last successful
// send. Flooding the automation surface has been observed to cause silent
// drops, so pacing is unconditional.
func (s *Sender) waitTurn() {
	if s.lastSend.IsZero() {
		return
	}
	elapsed := s.opts.now().Sub(s.lastSend)
	if wait := s.opts.MinInterval - elapsed; wait > 0 {
		s.opts.sleep(wait)
	}
}
