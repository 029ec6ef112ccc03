/*
Package cache stores compiled artifacts and the ownership links between
them, so that a build recompiles only what a change touches.

The cache is the single source of incremental behaviour in edgeplane.
Every artifact the compiler or renderer produces is stored under a Key,
and every artifact records which other artifacts it owns. Invalidating a
key removes the artifact and, transitively, everything that depends on it
and nothing else.

# Architecture

	┌────────────────────────── CACHE ───────────────────────────┐
	│                                                              │
	│   entries: Key ──▶ {value, owned set}                        │
	│   owners:  Key ──▶ set of keys that own it (reverse index)   │
	│                                                              │
	│   resource:Mapping/default/quote@...                         │
	│        │ owns                                                │
	│        ├──────────────▶ cluster:quote|default|               │
	│        │                     │ owns                          │
	│        │                     └──▶ render:cluster:cluster:..  │
	│        │                                                     │
	│   group:7c1f...   (members: the mapping keys)                │
	│        │ owns                                                │
	│        └──────────────▶ render:routes:group:7c1f...          │
	│                                                              │
	│   resource:TCPMapping/data/db@...                            │
	│        ├──────────────▶ cluster:postgres|data|               │
	│        └──────────────▶ render:listener:resource:TCP...      │
	└──────────────────────────────────────────────────────────────┘

# Keys

Keys are strings with a namespace prefix, so artifacts of different
kinds can never collide:

	resource:<kind>/<namespace>/<name>@<apiVersion>   compiled resource
	cluster:<service>|<namespace>|<tls>               derived upstream cluster
	group:<group id>                                  mapping group
	render:<fragment>:<owner key>                     rendered fragment

ResourceKey, ClusterKey, GroupKey and FragmentKey build them. A fragment
key embeds its owner key, which makes the dump served by the diagnostics
API self-describing.

# Operations

Get:
  - Reads an entry without mutating the cache
  - Fetch[T] is the typed form used by the compiler and renderer

Put:
  - Inserts a new entry together with the keys it owns
  - Putting over a key that still holds a valid entry returns an error
    wrapping ErrDuplicateKey

Link:
  - Records that an existing parent additionally owns a child
  - Linking from a parent that has no entry returns an error wrapping
    ErrUnknownOwner

Invalidate:
  - Removes the key and walks its owned keys with an explicit worklist
  - A cascaded key that still has another present owner is kept
  - Each key is removed at most once, so ownership cycles terminate
  - Returns the removed keys, sorted

Reset:
  - Discards every entry and link

# Shared Artifacts

Several mappings routing to the same service share one cluster. The
cluster is linked from every owner, and the owners index records each of
them. Invalidating one mapping removes the mapping but leaves the cluster
in place as long as another mapping still owns it. When the last owner is
removed later in the same pass, the cluster is reached again through that
owner and removed then.

An explicitly invalidated key is always removed, whatever owns it. The
pipeline uses that for direct invalidation of a single cluster: the
cluster and its rendered fragment go, the mappings stay, and the next
compile rebuilds the cluster and relinks it to each surviving owner.

# Coherency

Put and Link failures are not resource errors. They mean the cache no
longer matches what the compiler believes it holds, for example a stale
entry that should have been invalidated. IsCoherencyError identifies
them; the pipeline responds by resetting the cache and retrying the build
as a complete one.

	if err := store.Put(key, value); err != nil {
		if cache.IsCoherencyError(err) {
			// reset and rebuild from scratch
		}
		return err
	}

# Concurrency

Only one build mutates the cache at a time; the pipeline serializes
builds. The cache still guards itself with a RWMutex so diagnostics
(Dump, Len, Keys) can read while a build runs.

Values are shared with every build that reuses them. A value must never
be modified after Put; derive a new value and Put it under a fresh entry
after invalidating the old one.

# Usage

	store := cache.New()

	owner := cache.ResourceKey(mapping.Identity())
	cluster := cache.ClusterKey("quote|default|")

	if err := store.Put(cluster, compiledCluster); err != nil {
		return err
	}
	if err := store.Put(owner, compiledMapping, cluster); err != nil {
		return err
	}

	removed := store.Invalidate(owner)
	// removed: [resource:...quote...] plus the cluster when no other
	// mapping owns it

# Performance Characteristics

  - Get, Put and Link are O(1) map operations plus the owned set size
  - Invalidate is O(removed + links walked)
  - Dump and Keys sort, O(n log n), and are meant for diagnostics only

# See Also

  - pkg/ir for the compiler that fills the cache
  - pkg/render for the fragments owned by compiled artifacts
  - pkg/reconciler for reset and retry policy
*/
package cache
