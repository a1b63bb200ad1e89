// Package diagnostics keeps a small in-memory record of recent dispatch-core
// failures for operators, without adding persistence to the core itself.
package diagnostics

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
)

// Failure records one RetryingRequest's terminal (non-success) outcome.
type Failure struct {
	ID         string
	DocumentID string
	Method     string
	URL        string
	RetryCount int
	Err        string
	At         time.Time
}

// RecentFailures is a bounded ring of the most recent terminal failures,
// backed by an LRU cache keyed by a synthetic ID so that Record never has to
// block on eviction bookkeeping under its own lock.
type RecentFailures struct {
	mu    sync.Mutex
	cache *lru.Cache[string, Failure]
}

// NewRecentFailures creates a ring holding up to size entries. Evicts the
// least-recently-recorded failure once full.
func NewRecentFailures(size int) *RecentFailures {
	if size <= 0 {
		size = 100
	}
	cache, _ := lru.New[string, Failure](size)
	return &RecentFailures{cache: cache}
}

// Record adds a failure to the ring.
func (r *RecentFailures) Record(f Failure) {
	if f.At.IsZero() {
		f.At = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Add(uuid.NewString(), f)
}

// Recent returns the currently retained failures in least-to-most-recently
// added order. The slice is a snapshot; it does not alias cache internals.
func (r *RecentFailures) Recent() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := r.cache.Keys()
	out := make([]Failure, 0, len(keys))
	for _, k := range keys {
		if f, ok := r.cache.Peek(k); ok {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of retained failures.
func (r *RecentFailures) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}
