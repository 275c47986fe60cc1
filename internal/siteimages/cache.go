package siteimages

import (
	"sync"
	"time"
)

// DefaultTTL is how long a fetched image is trusted without asking the API again.
const DefaultTTL = 30 * time.Second

// Entry is a cached image and the time it was fetched.
type Entry struct {
	Image     Image
	FetchedAt time.Time
}

// Change describes a cache write. Image is nil for deletions.
type Change struct {
	Key   string
	Image *Image
}

// Cache maps section keys to the last fetched image. One Cache is shared by every
// resolver and collection in a process; it never evicts by size.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time

	subMu  sync.Mutex
	subs   map[int]func(Change)
	nextID int
}

// CacheOption customises a Cache.
type CacheOption func(*Cache)

// WithTTL overrides the staleness window. Non-positive values keep the default.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock replaces time.Now, primarily for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache constructs an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries: map[string]Entry{},
		ttl:     DefaultTTL,
		now:     time.Now,
		subs:    map[int]func(Change){},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured staleness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Now returns the cache clock's current time.
func (c *Cache) Now() time.Time { return c.now() }

// Get returns the raw entry for key, valid or not.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	entry.Image = cloneImage(entry.Image)
	return entry, true
}

// Set stores image under key, overwriting any previous entry.
func (c *Cache) Set(key string, image Image, at time.Time) {
	c.mu.Lock()
	c.entries[key] = Entry{Image: cloneImage(image), FetchedAt: at}
	c.mu.Unlock()
	img := cloneImage(image)
	c.notify(Change{Key: key, Image: &img})
}

// Delete removes the entry for key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	_, existed := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()
	if existed {
		c.notify(Change{Key: key})
	}
}

// Valid reports whether entry is younger than the TTL. The zero Entry is never valid.
func (c *Cache) Valid(entry Entry) bool {
	if entry.FetchedAt.IsZero() {
		return false
	}
	return c.now().Sub(entry.FetchedAt) < c.ttl
}

// Fresh returns the cached image for key when a valid entry exists.
func (c *Cache) Fresh(key string) (Image, bool) {
	entry, ok := c.Get(key)
	if !ok || !c.Valid(entry) {
		return Image{}, false
	}
	return entry.Image, true
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Subscribe registers fn to be called after every Set or Delete. The returned
// func removes the subscription.
func (c *Cache) Subscribe(fn func(Change)) func() {
	if fn == nil {
		return func() {}
	}
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Cache) notify(change Change) {
	c.subMu.Lock()
	fns := make([]func(Change), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(change)
	}
}
