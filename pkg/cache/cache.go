package cache

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/cuemby/edgeplane/pkg/log"
)

var (
	// ErrDuplicateKey is returned by Put when the key still holds a valid entry
	ErrDuplicateKey = errors.New("cache key already present")

	// ErrUnknownOwner is returned by Link when the parent has no entry
	ErrUnknownOwner = errors.New("cache owner not present")
)

// IsCoherencyError reports whether err is a cache invariant violation.
// Such errors are fatal to the build that produced them.
func IsCoherencyError(err error) bool {
	return errors.Is(err, ErrDuplicateKey) || errors.Is(err, ErrUnknownOwner)
}

// Entry is a read-only view of one cached artifact
type Entry struct {
	Key   Key
	Value any
	Owned []Key
}

type entry struct {
	value any
	owned sets.Set[Key]
}

// Stats counts store mutations over the lifetime of the store
type Stats struct {
	Puts          int64 `json:"puts"`
	Links         int64 `json:"links"`
	Invalidations int64 `json:"invalidations"`
	Resets        int64 `json:"resets"`
}

// Cache holds compiled artifacts plus the owner -> owned link graph.
//
// Values are shared with every build that reuses them and must never be
// mutated after Put. Only one build may mutate the cache at a time; the
// mutex exists so diagnostics can read while a build runs.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	owners  map[Key]sets.Set[Key] // reverse index: owned -> owners
	stats   Stats
	logger  zerolog.Logger
}

// New creates an empty cache
func New() *Cache {
	return &Cache{
		entries: make(map[Key]*entry),
		owners:  make(map[Key]sets.Set[Key]),
		logger:  log.WithComponent("cache"),
	}
}

// Get returns the entry for key. It never mutates the cache.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return Entry{Key: key, Value: e.value, Owned: sets.List(e.owned)}, true
}

// Fetch returns the value cached under key when it holds a T
func Fetch[T any](c *Cache, key Key) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	e, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := e.Value.(T)
	return v, ok
}

// Put inserts a new entry owning the given keys. Inserting over a key
// that still has a valid entry is a coherency violation.
func (c *Cache) Put(key Key, value any, owned ...Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}

	e := &entry{value: value, owned: sets.New[Key]()}
	c.entries[key] = e
	for _, child := range owned {
		c.link(key, e, child)
	}
	c.stats.Puts++
	return nil
}

// Link records that parent additionally owns child
func (c *Cache) Link(parent, child Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[parent]
	if !ok {
		return fmt.Errorf("%w: %s (linking %s)", ErrUnknownOwner, parent, child)
	}
	c.link(parent, e, child)
	c.stats.Links++
	return nil
}

func (c *Cache) link(parent Key, e *entry, child Key) {
	e.owned.Insert(child)
	owners, ok := c.owners[child]
	if !ok {
		owners = sets.New[Key]()
		c.owners[child] = owners
	}
	owners.Insert(parent)
}

// Invalidate removes key and, transitively, everything it owns. A
// cascaded key that is still owned by another present entry is kept; it
// is reconsidered if that owner is removed later in the same pass. Each
// key is removed at most once, so cycles terminate. It returns the
// removed keys in sorted order.
func (c *Cache) Invalidate(key Key) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := sets.New[Key]()
	work := []Key{key}

	for len(work) > 0 {
		k := work[0]
		work = work[1:]

		if removed.Has(k) {
			continue
		}
		e, ok := c.entries[k]
		if !ok {
			continue
		}
		if k != key && c.owners[k].Len() > 0 {
			// Shared artifact with a surviving owner.
			continue
		}

		delete(c.entries, k)
		removed.Insert(k)

		for _, child := range sets.List(e.owned) {
			if owners, ok := c.owners[child]; ok {
				owners.Delete(k)
				if owners.Len() == 0 {
					delete(c.owners, child)
				}
			}
			work = append(work, child)
		}
	}

	c.stats.Invalidations += int64(removed.Len())
	out := sets.List(removed)
	if len(out) > 0 {
		c.logger.Debug().
			Str("key", string(key)).
			Int("removed", len(out)).
			Msg("invalidated cache entries")
	}
	return out
}

// Reset discards every entry and link
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]*entry)
	c.owners = make(map[Key]sets.Set[Key])
	c.stats.Resets++
}

// Len returns the number of valid entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns every valid key in sorted order
func (c *Cache) Keys() []Key {
	return c.KeysWithPrefix("")
}

// KeysWithPrefix returns the valid keys in one namespace, sorted
func (c *Cache) KeysWithPrefix(prefix string) []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		if k.HasPrefix(prefix) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Owners returns the keys recorded as owning key, sorted
func (c *Cache) Owners(key Key) []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sets.List(c.owners[key])
}

// Stats returns the mutation counters
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// DumpEntry describes one entry for diagnostics
type DumpEntry struct {
	Key   Key   `json:"key"`
	Owns  []Key `json:"owns,omitempty"`
	Owner []Key `json:"owners,omitempty"`
}

// Dump returns the link graph of every valid entry, sorted by key
func (c *Cache) Dump() []DumpEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]DumpEntry, 0, len(c.entries))
	for k, e := range c.entries {
		out = append(out, DumpEntry{
			Key:   k,
			Owns:  sets.List(e.owned),
			Owner: sets.List(c.owners[k]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
