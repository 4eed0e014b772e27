package cache

import (
	"container/list"
	"sync"

	"github.com/c360/stanagfeed/errors"
)

type entry[V any] struct {
	key   string
	value V
}

// memoryCache backs both policies. A zero capacity never evicts; otherwise the
// least recently used entry goes once the capacity is exceeded. Recency is kept
// in both cases so Keys is ordered most recent first.
type memoryCache[V any] struct {
	mu       sync.Mutex
	capacity int
	index    map[string]*list.Element
	recency  *list.List
	obs      observer
	onEvict  EvictCallback[V]
	closed   sync.Once
}

func newMemoryCache[V any](capacity int, opts *cacheOptions[V]) (*memoryCache[V], error) {
	obs, err := newObserver(opts)
	if err != nil {
		return nil, errors.WrapTransient(err, "cache", "New", "metrics registration")
	}
	return &memoryCache[V]{
		capacity: capacity,
		index:    map[string]*list.Element{},
		recency:  list.New(),
		obs:      obs,
		onEvict:  opts.onEvict,
	}, nil
}

func (c *memoryCache[V]) notify(gone []*entry[V]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range gone {
		c.onEvict(e.key, e.value)
	}
}

func (c *memoryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	elem, ok := c.index[key]
	if ok {
		c.recency.MoveToFront(elem)
	}
	c.mu.Unlock()

	if !ok {
		c.obs.miss()
		var zero V
		return zero, false
	}
	c.obs.hit()
	return elem.Value.(*entry[V]).value, true
}

func (c *memoryCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	elem, existed := c.index[key]
	if existed {
		elem.Value.(*entry[V]).value = value
		c.recency.MoveToFront(elem)
	} else {
		c.index[key] = c.recency.PushFront(&entry[V]{key: key, value: value})
	}
	var evicted []*entry[V]
	for c.capacity > 0 && c.recency.Len() > c.capacity {
		e := c.recency.Remove(c.recency.Back()).(*entry[V])
		delete(c.index, e.key)
		evicted = append(evicted, e)
	}
	size := c.recency.Len()
	c.mu.Unlock()

	c.obs.stats.Set()
	c.obs.resized(size)
	for range evicted {
		c.obs.evicted()
	}
	c.notify(evicted)
	return !existed, nil
}

func (c *memoryCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	elem, ok := c.index[key]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}
	e := c.recency.Remove(elem).(*entry[V])
	delete(c.index, key)
	size := c.recency.Len()
	c.mu.Unlock()

	c.obs.stats.Delete()
	c.obs.resized(size)
	c.notify([]*entry[V]{e})
	return true, nil
}

func (c *memoryCache[V]) Clear() error {
	c.mu.Lock()
	gone := make([]*entry[V], 0, c.recency.Len())
	for elem := c.recency.Front(); elem != nil; elem = elem.Next() {
		gone = append(gone, elem.Value.(*entry[V]))
	}
	c.index = map[string]*list.Element{}
	c.recency.Init()
	c.mu.Unlock()

	c.obs.resized(0)
	c.notify(gone)
	return nil
}

func (c *memoryCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

func (c *memoryCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.recency.Len())
	for elem := c.recency.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry[V]).key)
	}
	return keys
}

func (c *memoryCache[V]) Stats() *Statistics { return c.obs.stats }

// Close unregisters the cache metrics. Entries stay readable.
func (c *memoryCache[V]) Close() error {
	c.closed.Do(c.obs.close)
	return nil
}
