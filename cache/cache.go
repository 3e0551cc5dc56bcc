// Package cache implements the content-addressed, TTL'd key-value store
// used for idempotent reads. Of the I/O-bound collaborators only
// ExplorerReader takes a Cache; ChainReader, ABICodec, ProxyResolver,
// ConstructorDecoder and DexQuoter do not read or write through it.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

type entry struct {
	value     interface{}
	createdAt time.Time
	ttl       time.Duration
}

// DefaultTTL is used by collaborators that don't pass an explicit ttl to Set.
const DefaultTTL = 10 * time.Minute

func New() *Cache {
	return &Cache{entries: make(map[string]entry), now: time.Now}
}

// MakeKey derives a stable cache key from an ordered list of positional
// values and an optional map of keyword values, canonicalized by sorting
// keys and JSON-encoding before hashing, so argument order in kwargs never
// changes the key.
func MakeKey(values ...interface{}) string {
	return MakeKeyWith(values, nil)
}

// MakeKeyWith derives a key from positional args plus keyword args.
func MakeKeyWith(args []interface{}, kwargs map[string]interface{}) string {
	canon := struct {
		Args   []interface{}          `json:"args"`
		Kwargs map[string]interface{} `json:"kwargs"`
	}{Args: args, Kwargs: sortedMap(kwargs)}
	b, _ := json.Marshal(canon)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// sortedMap re-encodes m with keys in sorted order via an ordered slice,
// since encoding/json already sorts map keys on marshal; kept for clarity
// and so callers passing nil don't produce a "null" kwargs section.
func sortedMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]interface{}, len(m))
	for _, k := range keys {
		out[k] = m[k]
	}
	return out
}

// Get returns the cached value for key, or (nil, false) on miss or expiry.
// An expired entry is deleted on this read (I7).
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.ttl > 0 && c.now().After(e.createdAt.Add(e.ttl)) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given ttl. A zero ttl means
// DefaultTTL.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, createdAt: c.now(), ttl: ttl}
}

// Delete removes key unconditionally.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// CleanupExpired removes every entry whose ttl has passed and returns the
// count removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if e.ttl > 0 && now.After(e.createdAt.Add(e.ttl)) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len reports the number of entries currently stored, including any not
// yet lazily expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
