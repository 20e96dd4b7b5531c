package repository

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/draftkey"
	"github.com/okian/scoutnotes/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Each owner has its own treap. Ordering: UpdatedAt DESC, then key ASC
// (deterministic). "less" means lists earlier, so in-order traversal yields
// the newest draft first.

// treap node
type node struct {
	key   string
	at    int64 // UpdatedAt in unix nanoseconds
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aAt, aKey) should appear before (bAt, bKey).
func less(aAt int64, aKey string, bAt int64, bKey string) bool {
	if aAt != bAt {
		return aAt > bAt // newer first
	}
	return aKey < bKey
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, key string, at int64) *node {
	if n == nil {
		return &node{key: key, at: at, prio: rand.Uint64(), size: 1}
	}
	if less(at, key, n.at, n.key) {
		n.left = insert(n.left, key, at)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, key, at)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, key string, at int64) *node {
	if n == nil {
		return nil
	}
	if at == n.at && key == n.key {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, key, at)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, key, at)
		}
	} else if less(at, key, n.at, n.key) {
		n.left = deleteNode(n.left, key, at)
	} else {
		n.right = deleteNode(n.right, key, at)
	}
	fix(n)
	return n
}

// collect appends summaries in list order, applying the filter.
func collect(n *node, records map[string]draft.Record, f draft.ListFilter, out *[]draft.Summary) {
	if n == nil {
		return
	}
	collect(n.left, records, f, out)
	if rec, ok := records[n.key]; ok {
		if s := rec.Summary(); f.Matches(s) {
			*out = append(*out, s)
		}
	}
	collect(n.right, records, f, out)
}

// ownerDrafts is the per-owner index.
type ownerDrafts struct {
	root  *node
	byKey map[string]draft.Record
	named int
}

// MemoryStore keeps drafts in process memory. It is the default store and
// the one used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byOwner map[string]*ownerDrafts
	total   int

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemoryStore constructs a treap store with configuration options.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byOwner:               make(map[string]*ownerDrafts),
		metricsUpdateInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)
	return s
}

// startMetricsUpdater publishes the record count at the configured interval.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				n, _ := s.Count(ctx)
				metrics.UpdateDraftsStored(n)
			}
		}
	}()
}

// Close stops the background goroutine.
func (s *MemoryStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

func ownerKey(ownerID string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		metrics.RecordErrorByComponent("repository", "invalid_owner")
		return "", ErrInvalidOwner
	}
	return ownerID, nil
}

// List implements Store.List in O(n) for the owner's drafts.
func (s *MemoryStore) List(ctx context.Context, ownerID string, f draft.ListFilter) ([]draft.Summary, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	owner, err := ownerKey(ownerID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []draft.Summary{}
	od, ok := s.byOwner[owner]
	if !ok {
		return out, nil
	}
	collect(od.root, od.byKey, f, &out)
	return out, nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, ownerID, key string) (draft.Record, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	owner, err := ownerKey(ownerID)
	if err != nil {
		return draft.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	od, ok := s.byOwner[owner]
	if !ok {
		return draft.Record{}, ErrNotFound
	}
	rec, ok := od.byKey[key]
	if !ok {
		return draft.Record{}, ErrNotFound
	}
	rec.Payload = rec.Payload.Clone()
	return rec, nil
}

// Upsert implements Store.Upsert with O(log n) expected time.
func (s *MemoryStore) Upsert(ctx context.Context, ownerID string, in draft.UpsertInput, at time.Time) (UpsertResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	owner, err := ownerKey(ownerID)
	if err != nil {
		return UpsertResult{}, err
	}
	if err := in.Validate(); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_record")
		return UpsertResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	od, ok := s.byOwner[owner]
	if !ok {
		od = &ownerDrafts{byKey: make(map[string]draft.Record)}
		s.byOwner[owner] = od
	}

	old, exists := od.byKey[in.Key]
	if exists {
		if sameRecord(old, in) {
			return UpsertResult{UpdatedAt: old.UpdatedAt, Unchanged: true}, nil
		}
		od.root = deleteNode(od.root, old.Key, old.UpdatedAt.UnixNano())
	}

	rec := in.Record(owner, at)
	od.byKey[in.Key] = rec
	od.root = insert(od.root, rec.Key, rec.UpdatedAt.UnixNano())
	if !exists {
		s.total++
		if draftkey.IsNamed(in.Key) {
			od.named++
		}
	}
	return UpsertResult{UpdatedAt: rec.UpdatedAt, Created: !exists}, nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(ctx context.Context, ownerID, key string) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	owner, err := ownerKey(ownerID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	od, ok := s.byOwner[owner]
	if !ok {
		return nil
	}
	old, ok := od.byKey[key]
	if !ok {
		return nil
	}
	od.root = deleteNode(od.root, old.Key, old.UpdatedAt.UnixNano())
	delete(od.byKey, key)
	s.total--
	if draftkey.IsNamed(key) {
		od.named--
	}
	if len(od.byKey) == 0 {
		delete(s.byOwner, owner)
	}
	return nil
}

// CountNamed implements Store.CountNamed in O(1).
func (s *MemoryStore) CountNamed(ctx context.Context, ownerID string) (int, error) {
	owner, err := ownerKey(ownerID)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if od, ok := s.byOwner[owner]; ok {
		return od.named, nil
	}
	return 0, nil
}

// Count implements Store.Count in O(1).
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total, nil
}
