package cache

import (
	"strings"

	"github.com/cuemby/edgeplane/pkg/types"
)

// Key identifies one compiled artifact. Artifact kinds live in distinct
// prefixes so unrelated artifacts never collide.
type Key string

const (
	ResourcePrefix = "resource:"
	ClusterPrefix  = "cluster:"
	GroupPrefix    = "group:"
	FragmentPrefix = "render:"
)

// ResourceKey is the key of a compiled resource
func ResourceKey(id types.ResourceIdentity) Key {
	return Key(ResourcePrefix + id.String())
}

// ClusterKey is the key of a derived upstream cluster
func ClusterKey(logicalName string) Key {
	return Key(ClusterPrefix + logicalName)
}

// GroupKey is the key of a mapping group
func GroupKey(groupID string) Key {
	return Key(GroupPrefix + groupID)
}

// FragmentKey is the key of a rendered fragment produced from owner
func FragmentKey(fragment string, owner Key) Key {
	return Key(FragmentPrefix + fragment + ":" + string(owner))
}

// HasPrefix reports whether the key belongs to the given namespace prefix
func (k Key) HasPrefix(prefix string) bool {
	return strings.HasPrefix(string(k), prefix)
}

// IsGroup reports whether k is a group key
func (k Key) IsGroup() bool { return k.HasPrefix(GroupPrefix) }

// IsFragment reports whether k is a rendered fragment key
func (k Key) IsFragment() bool { return k.HasPrefix(FragmentPrefix) }

func (k Key) String() string { return string(k) }
