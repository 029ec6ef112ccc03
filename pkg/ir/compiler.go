package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cuemby/edgeplane/pkg/cache"
	"github.com/cuemby/edgeplane/pkg/log"
	"github.com/cuemby/edgeplane/pkg/metrics"
	"github.com/cuemby/edgeplane/pkg/types"
)

const artifactCluster = "cluster"

// Stats reports how much of one compile pass came from the cache
type Stats struct {
	Invalidated         int `json:"invalidated"`
	Swept               int `json:"swept"`
	MappingsReused      int `json:"mappings_reused"`
	MappingsCompiled    int `json:"mappings_compiled"`
	TCPMappingsReused   int `json:"tcp_mappings_reused"`
	TCPMappingsCompiled int `json:"tcp_mappings_compiled"`
	ClustersReused      int `json:"clusters_reused"`
	ClustersCompiled    int `json:"clusters_compiled"`
	GroupsReused        int `json:"groups_reused"`
	GroupsCompiled      int `json:"groups_compiled"`
	Errors              int `json:"errors"`
}

// compiler is the state of one compile pass. It is created per call and
// never shared between builds.
type compiler struct {
	store    *cache.Cache
	settings Settings
	tls      map[string]*TLSContext

	// clusters resolved during this pass, and the subset put by it
	clusters      map[cache.Key]*Cluster
	freshClusters map[cache.Key]bool

	errors []Error
	stats  Stats
	logger zerolog.Logger
}

func newCompiler(store *cache.Cache) *compiler {
	return &compiler{
		store:         store,
		settings:      DefaultSettings(),
		tls:           make(map[string]*TLSContext),
		clusters:      make(map[cache.Key]*Cluster),
		freshClusters: make(map[cache.Key]bool),
		logger:        log.WithComponent("compiler"),
	}
}

// Compile turns a snapshot into a Graph. With a store, artifacts whose
// keys survive invalidation are reused and everything else is compiled
// and cached. A nil store compiles everything from scratch; both paths
// yield identical graphs.
//
// Malformed resources are reported in Graph.Errors and left out. The
// returned error is reserved for cache coherency violations, after which
// the store must be reset.
func Compile(snap *types.Snapshot, store *cache.Cache, invalidate []types.ResourceIdentity) (*Graph, Stats, error) {
	c := newCompiler(store)

	if store != nil {
		for _, id := range invalidate {
			c.stats.Invalidated += len(store.Invalidate(cache.ResourceKey(id)))
		}
	}

	c.compileSettings(snap.ByKind(types.KindModule))
	c.compileTLSContexts(snap.ByKind(types.KindTLSContext))

	mappings, err := c.compileMappings(snap.ByKind(types.KindMapping))
	if err != nil {
		return nil, c.stats, fmt.Errorf("failed to compile mappings: %w", err)
	}

	tcps, err := c.compileTCPMappings(snap.ByKind(types.KindTCPMapping))
	if err != nil {
		return nil, c.stats, fmt.Errorf("failed to compile tcp mappings: %w", err)
	}
	tcps = c.checkPorts(tcps)

	mappings, tcps = c.checkClusterNames(mappings, tcps)

	groups, mappings, err := c.compileGroups(mappings)
	if err != nil {
		return nil, c.stats, fmt.Errorf("failed to compile groups: %w", err)
	}

	c.sweep(snap, groups)

	graph := c.graph(mappings, tcps, groups)
	c.stats.Errors = len(graph.Errors)

	c.logger.Debug().
		Int("mappings", len(graph.Mappings)).
		Int("clusters", len(graph.Clusters)).
		Int("groups", len(graph.Groups)).
		Int("errors", len(graph.Errors)).
		Int("reused", c.stats.MappingsReused+c.stats.TCPMappingsReused).
		Msg("compiled graph")

	return graph, c.stats, nil
}

// fail records a malformed-resource error
func (c *compiler) fail(id types.ResourceIdentity, format string, args ...any) {
	c.failKey(id.String(), format, args...)
}

// failArtifact records an error against a compiled artifact
func (c *compiler) failArtifact(key cache.Key, format string, args ...any) {
	c.failKey(strings.TrimPrefix(string(key), cache.ResourcePrefix), format, args...)
}

func (c *compiler) failKey(resource, format string, args ...any) {
	e := Error{Scope: GlobalScope, Resource: resource, Message: fmt.Sprintf(format, args...)}
	c.errors = append(c.errors, e)
	logger := log.WithResource(c.logger, resource)
	logger.Warn().Msg(e.Message)
}

func (c *compiler) lookup(artifact string, hit bool) {
	if c.store == nil {
		return
	}
	result := metrics.ResultMiss
	if hit {
		result = metrics.ResultHit
	}
	metrics.CacheLookups.WithLabelValues(artifact, result).Inc()
}

// put commits a freshly compiled artifact. Without a store it is a no-op.
func (c *compiler) put(key cache.Key, value any, owned ...cache.Key) error {
	if c.store == nil {
		return nil
	}
	return c.store.Put(key, value, owned...)
}

// cluster resolves a derived cluster from this pass, the cache, or by
// building it from the parsed endpoint
func (c *compiler) cluster(id ClusterID, ep Endpoint) (*Cluster, error) {
	key := id.Key()
	if cl, ok := c.clusters[key]; ok {
		return cl, nil
	}

	if cl, ok := cache.Fetch[*Cluster](c.store, key); ok {
		c.lookup(artifactCluster, true)
		c.stats.ClustersReused++
		c.clusters[key] = cl
		return cl, nil
	}
	c.lookup(artifactCluster, false)

	cl := c.buildCluster(id, ep)
	if err := c.put(key, cl); err != nil {
		return nil, err
	}
	c.stats.ClustersCompiled++
	c.clusters[key] = cl
	c.freshClusters[key] = true
	return cl, nil
}

// ensureCluster resolves the cluster of a reused owner. A cluster that
// was invalidated on its own is rebuilt and relinked to the owner.
func (c *compiler) ensureCluster(owner cache.Key, service string, id ClusterID) error {
	key := id.Key()
	if _, ok := c.clusters[key]; !ok {
		var ep Endpoint
		if _, cached := c.store.Get(key); !cached {
			parsed, err := ParseService(service)
			if err != nil {
				return fmt.Errorf("cached %s references unparseable service: %w", owner, err)
			}
			ep = parsed
		}
		if _, err := c.cluster(id, ep); err != nil {
			return err
		}
	}
	if c.freshClusters[key] {
		return c.store.Link(owner, key)
	}
	return nil
}

func (c *compiler) buildCluster(id ClusterID, ep Endpoint) *Cluster {
	return &Cluster{
		Key:              id.Key(),
		ID:               id,
		Name:             ClusterName(id),
		Host:             ep.Host,
		Port:             ep.Port,
		Originate:        ep.TLS || id.TLS != "",
		ConnectTimeoutMS: c.settings.ConnectTimeoutMS,
		LoadBalancer:     c.settings.LoadBalancer,
	}
}

// checkClusterNames excludes owners whose cluster's rendered name is
// already taken by a different identity. The smaller cluster key wins.
// Only clusters of the owners passed in compete; a cluster whose owners
// were all excluded earlier is never rendered.
func (c *compiler) checkClusterNames(mappings []resolved[*Mapping], tcps []resolved[*TCPMapping]) ([]resolved[*Mapping], []resolved[*TCPMapping]) {
	winner := make(map[string]cache.Key)
	claim := func(key cache.Key) {
		cl := c.clusters[key]
		if w, ok := winner[cl.Name]; !ok || key < w {
			winner[cl.Name] = key
		}
	}
	for _, m := range mappings {
		claim(m.value.Cluster)
	}
	for _, t := range tcps {
		claim(t.value.Cluster)
	}
	collides := func(key cache.Key) (cache.Key, bool) {
		cl := c.clusters[key]
		w := winner[cl.Name]
		return w, w != key
	}

	keptMappings := mappings[:0:0]
	for _, m := range mappings {
		if w, bad := collides(m.value.Cluster); bad {
			c.failArtifact(m.value.Key, "cluster name %s already used by %s", c.clusters[w].Name, c.clusters[w].ID)
			continue
		}
		keptMappings = append(keptMappings, m)
	}

	keptTCPs := tcps[:0:0]
	for _, t := range tcps {
		if w, bad := collides(t.value.Cluster); bad {
			c.failArtifact(t.value.Key, "cluster name %s already used by %s", c.clusters[w].Name, c.clusters[w].ID)
			continue
		}
		keptTCPs = append(keptTCPs, t)
	}
	return keptMappings, keptTCPs
}

// sweep drops cache entries for resources and groups that no longer exist
func (c *compiler) sweep(snap *types.Snapshot, groups []*Group) {
	if c.store == nil {
		return
	}

	live := make(map[cache.Key]bool, snap.Len()+len(groups))
	for _, id := range snap.Identities() {
		live[cache.ResourceKey(id)] = true
	}
	for _, g := range groups {
		live[g.Key] = true
	}

	for _, prefix := range []string{cache.ResourcePrefix, cache.GroupPrefix} {
		for _, key := range c.store.KeysWithPrefix(prefix) {
			if !live[key] {
				c.stats.Swept += len(c.store.Invalidate(key))
			}
		}
	}
}

func (c *compiler) graph(mappings []resolved[*Mapping], tcps []resolved[*TCPMapping], groups []*Group) *Graph {
	g := &Graph{
		Settings:    c.settings,
		TLSContexts: c.sortedTLSContexts(),
		Mappings:    make([]*Mapping, 0, len(mappings)),
		TCPMappings: make([]*TCPMapping, 0, len(tcps)),
		Clusters:    make([]*Cluster, 0),
		Groups:      groups,
		Errors:      append(make([]Error, 0, len(c.errors)), c.errors...),
	}

	used := make(map[cache.Key]bool)
	for _, m := range mappings {
		g.Mappings = append(g.Mappings, m.value)
		used[m.value.Cluster] = true
	}
	for _, t := range tcps {
		g.TCPMappings = append(g.TCPMappings, t.value)
		used[t.value.Cluster] = true
	}
	for key := range used {
		g.Clusters = append(g.Clusters, c.clusters[key])
	}

	sort.Slice(g.Mappings, func(i, j int) bool { return g.Mappings[i].Key < g.Mappings[j].Key })
	sort.Slice(g.TCPMappings, func(i, j int) bool {
		if g.TCPMappings[i].Port != g.TCPMappings[j].Port {
			return g.TCPMappings[i].Port < g.TCPMappings[j].Port
		}
		return g.TCPMappings[i].Key < g.TCPMappings[j].Key
	})
	sort.Slice(g.Clusters, func(i, j int) bool { return g.Clusters[i].Name < g.Clusters[j].Name })
	SortGroups(g.Groups)
	return g
}
