package tracing

import (
	"sync"

	"github.com/sarchlab/cachesim/mem/cache"
)

// CountTracer counts the accesses, misses and evictions of each cache it
// traces.
type CountTracer struct {
	lock   sync.Mutex
	counts map[string]Counts
}

// Counts is what a CountTracer knows about one cache.
type Counts struct {
	Accesses  uint64
	Misses    uint64
	Evictions uint64
}

// NewCountTracer creates a new CountTracer
func NewCountTracer() *CountTracer {
	return &CountTracer{
		counts: make(map[string]Counts),
	}
}

// TraceAccess counts an access.
func (t *CountTracer) TraceAccess(domain string, rec cache.AccessRecord) {
	t.lock.Lock()
	defer t.lock.Unlock()

	c := t.counts[domain]
	c.Accesses++

	if !rec.Hit {
		c.Misses++
	}

	if rec.Evicted {
		c.Evictions++
	}

	t.counts[domain] = c
}

// TraceReset forgets the counts of a cache.
func (t *CountTracer) TraceReset(domain string) {
	t.lock.Lock()
	defer t.lock.Unlock()

	delete(t.counts, domain)
}

// Counts returns the counts of a cache.
func (t *CountTracer) Counts(domain string) Counts {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.counts[domain]
}
