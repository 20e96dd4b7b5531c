// Package localcache is the device-side draft cache. Every operation is
// synchronous and never fails: a broken medium behaves like an empty cache.
package localcache

import (
	"context"
	"errors"

	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/pkg/logger"
	"github.com/okian/scoutnotes/pkg/metrics"
)

// Cache stores one payload per draft key.
type Cache interface {
	// Get returns the payload stored under key. Malformed entries are
	// removed and reported as absent.
	Get(key string) (draft.Payload, bool)
	Set(key string, p draft.Payload)
	Remove(key string)
	Close() error
}

// decodeEntry parses a stored entry, logging and counting malformed ones.
func decodeEntry(log logger.Logger, key string, raw []byte) (draft.Payload, bool) {
	p, err := draft.Decode(raw)
	if err != nil {
		if errors.Is(err, draft.ErrMalformed) {
			metrics.RecordLocalCacheError("malformed")
		}
		log.Warn(context.Background(), "discarding unreadable local draft",
			logger.String("key", key), logger.Error(err))
		return draft.Payload{}, false
	}
	return p, true
}

// Noop is a cache that stores nothing.
type Noop struct{}

// Get implements Cache.
func (Noop) Get(string) (draft.Payload, bool) { return draft.Payload{}, false }

// Set implements Cache.
func (Noop) Set(string, draft.Payload) {}

// Remove implements Cache.
func (Noop) Remove(string) {}

// Close implements Cache.
func (Noop) Close() error { return nil }
