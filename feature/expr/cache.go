package expr

import "sync"

// Cache holds compiled programs keyed by (category, key, field). Failed
// compilations are cached too, so a broken formula is parsed once.
type Cache struct {
	entries sync.Map
}

type cacheEntry struct {
	source string
	prog   *Program
	err    error
}

// NewCache creates an empty program cache.
func NewCache() *Cache {
	return &Cache{}
}

// Compile returns the cached program for the key, parsing src on first use or
// when the stored source text changed.
func (c *Cache) Compile(category, key, field, src string) (*Program, error) {
	k := category + "\x00" + key + "\x00" + field
	if v, ok := c.entries.Load(k); ok {
		e := v.(*cacheEntry)
		if e.source == src {
			return e.prog, e.err
		}
	}
	prog, err := Parse(src)
	c.entries.Store(k, &cacheEntry{source: src, prog: prog, err: err})
	return prog, err
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
