package editor

import (
	"time"

	"github.com/okian/scoutnotes/internal/domain/dedupe"
	"github.com/okian/scoutnotes/pkg/logger"
)

const (
	defaultLocalDelay    = 300 * time.Millisecond
	defaultRemoteDelay   = 2 * time.Second
	defaultQueueCapacity = 64
)

// Option configures an Editor.
type Option func(*Editor)

// WithClock replaces time.Now as the source of payload timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Editor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocalDelay sets the quiescence window of the local cache writer.
func WithLocalDelay(d time.Duration) Option {
	return func(e *Editor) {
		if d > 0 {
			e.localDelay = d
		}
	}
}

// WithRemoteDelay sets the quiescence window of the remote writer.
func WithRemoteDelay(d time.Duration) Option {
	return func(e *Editor) {
		if d > 0 {
			e.remoteDelay = d
		}
	}
}

// WithQueueCapacity bounds the number of pending remote jobs.
func WithQueueCapacity(n int) Option {
	return func(e *Editor) {
		if n > 0 {
			e.queueCapacity = n
		}
	}
}

// WithDeduper replaces the default push revision deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(e *Editor) {
		if d != nil {
			e.dedupe = d
		}
	}
}

// WithLogger sets the editor logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.log = l
		}
	}
}
