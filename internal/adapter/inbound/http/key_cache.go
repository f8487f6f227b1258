package http

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// keyEntry is a doubly-linked list node for the LRU cache.
type keyEntry struct {
	key       uint64
	keyHash   string
	identity  tenant.GatewayIdentity
	expiresAt time.Time
	prev      *keyEntry
	next      *keyEntry
}

// KeyCache is a bounded LRU of resolved gateway API keys. Entries are
// indexed by the xxhash digest of the key and hold its sha256 hash; a hit
// requires the hash to match, so a digest collision is a miss. Raw
// credentials never sit in memory. Entries expire after ttl, which bounds
// how long a revoked key keeps working.
// Thread-safe with Mutex (both Get and Put mutate LRU order).
type KeyCache struct {
	mu      sync.Mutex
	entries map[uint64]*keyEntry
	head    *keyEntry // most recently used
	tail    *keyEntry // least recently used
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	digest  func(string) uint64
}

// NewKeyCache creates a cache holding at most maxSize keys for ttl each.
func NewKeyCache(maxSize int, ttl time.Duration) *KeyCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &KeyCache{
		entries: make(map[uint64]*keyEntry, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		digest:  keyDigest,
	}
}

func keyDigest(apiKey string) uint64 {
	return xxhash.Sum64String(apiKey)
}

// Get returns the cached identity for apiKey.
func (c *KeyCache) Get(apiKey string) (tenant.GatewayIdentity, bool) {
	k, hash := c.digest(apiKey), tenant.HashKey(apiKey)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok || subtle.ConstantTimeCompare([]byte(e.keyHash), []byte(hash)) != 1 {
		return tenant.GatewayIdentity{}, false
	}
	if !c.now().Before(e.expiresAt) {
		c.unlinkLocked(e)
		delete(c.entries, k)
		return tenant.GatewayIdentity{}, false
	}
	c.moveToHeadLocked(e)
	return e.identity, true
}

// Put caches identity for apiKey, evicting the least recently used entry at capacity.
func (c *KeyCache) Put(apiKey string, identity tenant.GatewayIdentity) {
	k, hash := c.digest(apiKey), tenant.HashKey(apiKey)
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if e, ok := c.entries[k]; ok {
		e.keyHash = hash
		e.identity = identity
		e.expiresAt = expiresAt
		c.moveToHeadLocked(e)
		return
	}
	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}
	e := &keyEntry{key: k, keyHash: hash, identity: identity, expiresAt: expiresAt}
	c.entries[k] = e
	c.pushHeadLocked(e)
}

// Size returns current cache size.
func (c *KeyCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *KeyCache) moveToHeadLocked(e *keyEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

func (c *KeyCache) pushHeadLocked(e *keyEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *KeyCache) unlinkLocked(e *keyEntry) {
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
	e.prev = nil
	e.next = nil
}

func (c *KeyCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlinkLocked(c.tail)
}
