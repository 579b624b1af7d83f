package parser

import "sync"

// maxInternedTags bounds the tag pool of one decoder.
const maxInternedTags = 4096

// tagIntern shares one string per unregistered event tag, so long journals
// full of the same unknown tags hold a single copy of each.
type tagIntern struct {
	mu    sync.RWMutex
	pool  map[string]string
	limit int
}

func newTagIntern(limit int) *tagIntern {
	return &tagIntern{pool: make(map[string]string), limit: limit}
}

// Intern returns the pooled copy of s. Once the pool is full, new tags are
// returned as given.
func (ti *tagIntern) Intern(s string) string {
	ti.mu.RLock()
	pooled, ok := ti.pool[s]
	full := len(ti.pool) >= ti.limit
	ti.mu.RUnlock()
	if ok {
		return pooled
	}
	if full {
		return s
	}

	ti.mu.Lock()
	defer ti.mu.Unlock()
	if pooled, ok := ti.pool[s]; ok {
		return pooled
	}
	if len(ti.pool) >= ti.limit {
		return s
	}
	// Clone so the pool does not pin the line the tag was sliced from.
	s = string([]byte(s))
	ti.pool[s] = s
	return s
}

// Len returns the number of pooled tags.
func (ti *tagIntern) Len() int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return len(ti.pool)
}
