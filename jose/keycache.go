package jose

import (
	"sync/atomic"

	"github.com/c360/stanagfeed/pkg/cache"
)

// KeyCache holds key records by key id. Entries are never evicted while the cache is
// referenced. A cache may be shared by several decryptors through Retain; the key
// material is wiped when the last reference is released.
type KeyCache struct {
	entries cache.Cache[KeyRecord]
	refs    atomic.Int32
}

// NewKeyCache creates a cache holding one reference.
func NewKeyCache(options ...cache.Option[KeyRecord]) (*KeyCache, error) {
	options = append(options, cache.WithEvictionCallback(func(_ string, rec KeyRecord) {
		wipe(rec.MACKey)
		wipe(rec.EncKey)
	}))
	entries, err := cache.NewSimple[KeyRecord](options...)
	if err != nil {
		return nil, err
	}
	kc := &KeyCache{entries: entries}
	kc.refs.Store(1)
	return kc, nil
}

// Retain adds a reference and returns the cache.
func (k *KeyCache) Retain() *KeyCache {
	k.refs.Add(1)
	return k
}

// Release drops a reference. The last release clears the cache.
func (k *KeyCache) Release() {
	if k.refs.Add(-1) == 0 {
		_ = k.entries.Clear()
		_ = k.entries.Close()
	}
}

// Get returns the record for keyID.
func (k *KeyCache) Get(keyID string) (KeyRecord, bool) {
	return k.entries.Get(keyID)
}

// Contains reports whether keyID is cached.
func (k *KeyCache) Contains(keyID string) bool {
	_, ok := k.entries.Get(keyID)
	return ok
}

// Put stores a record under its key id.
func (k *KeyCache) Put(rec KeyRecord) error {
	_, err := k.entries.Set(rec.KeyID, rec)
	return err
}

// Len returns the number of cached keys.
func (k *KeyCache) Len() int {
	return k.entries.Size()
}

// Stats exposes the underlying cache statistics.
func (k *KeyCache) Stats() *cache.Statistics {
	return k.entries.Stats()
}
