package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/edgeplane/pkg/cache"
)

const artifactGroup = "group"

// compileGroups buckets mappings by match and resolves each group as a
// unit. A cached group is reused only when none of its members was
// compiled in this pass and its member list is unchanged; otherwise the
// entry is invalidated, with everything rendered from it, and rebuilt.
// Mappings of a group that cannot be built are dropped with it.
func (c *compiler) compileGroups(mappings []resolved[*Mapping]) ([]*Group, []resolved[*Mapping], error) {
	buckets := make(map[string][]resolved[*Mapping])
	for _, m := range mappings {
		buckets[m.value.GroupID] = append(buckets[m.value.GroupID], m)
	}

	ids := make([]string, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	groups := make([]*Group, 0, len(ids))
	kept := make([]resolved[*Mapping], 0, len(mappings))

	for _, id := range ids {
		members := buckets[id]
		sortMembers(members)

		key := cache.GroupKey(id)
		memberKeys := make([]cache.Key, len(members))
		fresh := false
		for i, m := range members {
			memberKeys[i] = m.value.Key
			fresh = fresh || m.fresh
		}

		if g, ok := cache.Fetch[*Group](c.store, key); ok && !fresh && equalKeys(g.MemberKeys(), memberKeys) {
			c.lookup(artifactGroup, true)
			c.stats.GroupsReused++
			groups = append(groups, g)
			kept = append(kept, members...)
			continue
		}
		c.lookup(artifactGroup, false)

		if c.store != nil {
			if _, present := c.store.Get(key); present {
				c.store.Invalidate(key)
			}
		}

		g, err := c.buildGroup(key, id, members)
		if err != nil {
			c.failKey(string(key), "%v", err)
			continue
		}
		if err := c.put(key, g); err != nil {
			return nil, nil, err
		}
		c.stats.GroupsCompiled++
		groups = append(groups, g)
		kept = append(kept, members...)
	}
	return groups, kept, nil
}

// sortMembers orders members by service, then name, then namespace
func sortMembers(members []resolved[*Mapping]) {
	sort.Slice(members, func(i, j int) bool {
		a, b := members[i].value, members[j].value
		if a.Service != b.Service {
			return a.Service < b.Service
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Namespace < b.Namespace
	})
}

// buildGroup assigns cumulative weight thresholds. Explicit weights are
// taken as is, unweighted members split what is left evenly and the last
// member always closes at 100.
func (c *compiler) buildGroup(key cache.Key, id string, members []resolved[*Mapping]) (*Group, error) {
	explicit, unweighted := 0, 0
	for _, m := range members {
		if m.value.Weight != nil {
			explicit += *m.value.Weight
		} else {
			unweighted++
		}
	}
	if explicit > 100 {
		names := make([]string, len(members))
		for i, m := range members {
			names[i] = m.value.Namespace + "/" + m.value.Name
		}
		return nil, fmt.Errorf("weights of %s sum to %d, more than 100", strings.Join(names, ", "), explicit)
	}

	share := 0
	if unweighted > 0 {
		share = (100 - explicit) / unweighted
	}

	first := members[0].value
	g := &Group{
		Key:        key,
		ID:         id,
		Host:       first.Host,
		Method:     first.Method,
		Prefix:     first.Prefix,
		Headers:    first.Headers,
		Precedence: first.Precedence,
		Members:    make([]Member, len(members)),
	}

	cumulative := 0
	for i, r := range members {
		m := r.value
		w := share
		if m.Weight != nil {
			w = *m.Weight
		}
		cumulative += w
		threshold := cumulative
		if i == len(members)-1 {
			threshold = 100
		}

		g.Members[i] = Member{
			Mapping:       m.Key,
			Name:          m.Name,
			Namespace:     m.Namespace,
			Service:       m.Service,
			Cluster:       m.Cluster,
			ClusterName:   c.clusters[m.Cluster].Name,
			Threshold:     threshold,
			PrefixRewrite: m.PrefixRewrite,
			TimeoutMS:     m.TimeoutMS,
		}
	}
	return g, nil
}

func equalKeys(a, b []cache.Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SortGroups orders groups the way routes are matched: higher precedence
// first, then longer prefixes, host specific before host-less groups, then
// more header matches and method matches. Ties fall back to the group id.
func SortGroups(groups []*Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Precedence != b.Precedence {
			return a.Precedence > b.Precedence
		}
		if len(a.Prefix) != len(b.Prefix) {
			return len(a.Prefix) > len(b.Prefix)
		}
		if a.Prefix != b.Prefix {
			return a.Prefix < b.Prefix
		}
		if (a.Host == "") != (b.Host == "") {
			return a.Host != ""
		}
		if len(a.Headers) != len(b.Headers) {
			return len(a.Headers) > len(b.Headers)
		}
		if (a.Method == "") != (b.Method == "") {
			return a.Method != ""
		}
		if a.Host != b.Host {
			return a.Host < b.Host
		}
		return a.ID < b.ID
	})
}
