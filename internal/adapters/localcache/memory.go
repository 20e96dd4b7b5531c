package localcache

import (
	"sync"

	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/pkg/logger"
)

// Memory keeps encoded payloads in a map. It is used by tests and when no
// cache path is configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]byte
	log     logger.Logger
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string][]byte),
		log:     logger.Get().Named("localcache"),
	}
}

// Get implements Cache.
func (m *Memory) Get(key string) (draft.Payload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.entries[key]
	if !ok {
		return draft.Payload{}, false
	}
	p, ok := decodeEntry(m.log, key, raw)
	if !ok {
		delete(m.entries, key)
	}
	return p, ok
}

// Set implements Cache.
func (m *Memory) Set(key string, p draft.Payload) {
	raw, err := p.Encode()
	if err != nil {
		return
	}
	m.mu.Lock()
	m.entries[key] = raw
	m.mu.Unlock()
}

// Remove implements Cache.
func (m *Memory) Remove(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close implements Cache.
func (m *Memory) Close() error { return nil }
