package catalog

import (
	"sync"
	"time"

	"github.com/couchcryptid/snowpit-etl-service/internal/domain"
)

// parseCache is a thread-safe LRU cache of parsed documents keyed by
// path. An entry remembers the file's modification time; a lookup with a
// newer time drops the entry, so edited files get re-parsed.
type parseCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	head       *cacheEntry // most recently used
	tail       *cacheEntry // least recently used
}

type cacheEntry struct {
	path    string
	pit     *domain.SnowPit
	modTime time.Time
	prev    *cacheEntry
	next    *cacheEntry
}

func newParseCache(maxEntries int) *parseCache {
	return &parseCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*cacheEntry),
	}
}

// get returns the cached pit for path if the entry is at least as new as
// modTime. A stale entry is removed and reported as a miss.
func (c *parseCache) get(path string, modTime time.Time) (*domain.SnowPit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	if modTime.After(e.modTime) {
		delete(c.entries, path)
		c.remove(e)
		return nil, false
	}
	c.moveToFront(e)
	return e.pit, true
}

func (c *parseCache) put(path string, modTime time.Time, pit *domain.SnowPit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[path]; ok {
		e.pit = pit
		e.modTime = modTime
		c.moveToFront(e)
		return
	}

	e := &cacheEntry{path: path, pit: pit, modTime: modTime}
	c.entries[path] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *parseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *parseCache) moveToFront(e *cacheEntry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *parseCache) addToFront(e *cacheEntry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *parseCache) remove(e *cacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *parseCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.path)
	c.remove(c.tail)
}
