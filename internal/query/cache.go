package query

import (
	"context"
	"sync"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/observability"
)

// ObjectStore reads raw storage objects.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// CachedStore decodes objects and keeps the most recently used ones.
// Published objects are immutable, so entries never go stale within a
// store version.
type CachedStore struct {
	inner   ObjectStore
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedStore creates a cache decorator around a store.
func NewCachedStore(inner ObjectStore, maxEntries int, metrics *observability.Metrics) *CachedStore {
	return &CachedStore{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Object returns the decoded object at key.
func (c *CachedStore) Object(ctx context.Context, key string) (domain.Object, error) {
	if obj, ok := c.cache.get(key); ok {
		c.metrics.QueryCache.WithLabelValues("hit").Inc()
		return obj, nil
	}
	c.metrics.QueryCache.WithLabelValues("miss").Inc()
	data, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	obj, err := domain.DecodeObject(data)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, obj)
	return obj, nil
}

// CheckReadiness delegates to the wrapped store when it can report readiness.
func (c *CachedStore) CheckReadiness(ctx context.Context) error {
	if rc, ok := c.inner.(interface{ CheckReadiness(context.Context) error }); ok {
		return rc.CheckReadiness(ctx)
	}
	return nil
}

// lruCache is a simple thread-safe LRU cache of decoded objects.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.Object
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
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

func (c *lruCache) remove(e *entry) {
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

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
