// Package regexcache memoizes compiled regular expressions for the query
// evaluator.
//
// A Cache is bounded: before every match it evicts uniformly random entries
// until it is back under capacity. There is no recency tracking, so eviction
// stays O(1). Patterns that fail to compile are remembered as misses and are
// never retried while they stay cached.
package regexcache

import (
	"math/rand/v2"
	"regexp"
	"sync"
)

// DefaultCapacity is the number of patterns kept when New is given a
// non-positive capacity.
const DefaultCapacity = 100

type entry struct {
	re   *regexp.Regexp // nil when the pattern failed to compile
	slot int            // position in Cache.keys
}

// Cache is safe for concurrent use. A single mutex guards lookup, insert and
// eviction.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*entry
	keys     []string
	rnd      *rand.Rand
}

// New returns an empty cache holding at most capacity patterns.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*entry, capacity),
		rnd:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Capacity reports the configured bound.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Len reports how many patterns are cached, including failed ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

// Get returns the compiled pattern. The boolean is false when the pattern is
// not a valid regular expression.
func (c *Cache) Get(pattern string) (*regexp.Regexp, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	re := c.lookup(pattern)
	return re, re != nil
}

// Matches reports whether text contains a match of pattern. Invalid patterns
// never match.
func (c *Cache) Matches(pattern, text string) bool {
	c.mu.Lock()
	c.gc()
	re := c.lookup(pattern)
	c.mu.Unlock()
	if re == nil {
		return false
	}
	return re.MatchString(text)
}

// lookup compiles on miss. Callers hold c.mu.
func (c *Cache) lookup(pattern string) *regexp.Regexp {
	if e, ok := c.entries[pattern]; ok {
		return e.re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	c.entries[pattern] = &entry{re: re, slot: len(c.keys)}
	c.keys = append(c.keys, pattern)
	return re
}

// gc drops random entries until the cache is under capacity. Callers hold c.mu.
func (c *Cache) gc() {
	for len(c.keys) > c.capacity {
		c.evict(c.rnd.IntN(len(c.keys)))
	}
}

func (c *Cache) evict(slot int) {
	victim := c.keys[slot]
	last := len(c.keys) - 1
	if slot != last {
		moved := c.keys[last]
		c.keys[slot] = moved
		c.entries[moved].slot = slot
	}
	c.keys = c.keys[:last]
	delete(c.entries, victim)
}
