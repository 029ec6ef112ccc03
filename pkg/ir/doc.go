/*
Package ir compiles a resource snapshot into the intermediate graph the
renderer turns into proxy configuration.

The compiler is the first of the two cached phases of a build. It reads a
types.Snapshot, validates every resource, derives upstream clusters and
route groups from the mappings, and returns a Graph plus Stats describing
how much of the previous build it could reuse.

# Compile Phases

	┌──────────────────────── COMPILE ────────────────────────┐
	│                                                           │
	│  invalidate  Invalidate(resource key) for each updated   │
	│              or deleted identity                          │
	│       │                                                   │
	│  settings    first Module over DefaultSettings            │
	│       │                                                   │
	│  tls         TLSContexts by name                          │
	│       │                                                   │
	│  mappings    reuse resource:<id> or compile and Put,      │
	│       │      resolving the cluster each one routes to     │
	│  tcp         same, per TCPMapping                         │
	│       │                                                   │
	│  checks      port conflicts, cluster name collisions      │
	│       │                                                   │
	│  groups      reuse group:<id> or recompute thresholds     │
	│       │                                                   │
	│  sweep       invalidate entries of removed resources      │
	│       ▼                                                   │
	│  Graph{Settings, TLSContexts, Mappings, TCPMappings,      │
	│        Clusters, Groups, Errors}                          │
	└───────────────────────────────────────────────────────────┘

# Graph

A Graph holds the compiled settings, TLS contexts, mappings, TCP
mappings, derived clusters and mapping groups of one snapshot, plus the
ordered list of resource errors. Every artifact carries the cache key it
is stored under, so a graph dump can be cross referenced with the cache
dump served by the diagnostics API.

	┌─────────────┐     ┌──────────────┐     ┌──────────────┐
	│  Mapping    │────▶│   Cluster    │◀────│  TCPMapping  │
	│ resource:.. │owns │ cluster:..   │owns │ resource:..  │
	└──────┬──────┘     └──────────────┘     └──────────────┘
	       │ member
	┌──────▼──────┐
	│   Group     │
	│ group:<id>  │
	└─────────────┘

# Caching

Compile takes an optional cache.Cache and the identities to invalidate.
Mappings and TCP mappings are cached per resource and own the cluster
they route to, so a cluster shared by several mappings survives until its
last owner is invalidated. Modules and TLS contexts are compiled on every
pass; a change to either forces a complete build upstream, which keeps the
settings baked into cached clusters current.

Groups are resolved as a unit. A cached group is reused only when none of
its members was compiled during the pass and the member list is
unchanged. Otherwise the group entry is invalidated, which also drops the
route fragments rendered from it, and the thresholds are recomputed over
the current members.

Each artifact is validated into a candidate first and only then committed
with Put, so a malformed resource never leaves a partial entry behind.
Put and Link errors mean the cache is incoherent; Compile returns them and
the caller must reset the cache.

# Weights

Members are ordered by service, then name, then namespace. Explicit
weights are added up, unweighted members share the remainder through
integer division, and the last member's threshold is forced to 100:

	weights   30, -, -
	thresholds 30, 65, 100

# Cluster Names

Rendered cluster names are cluster_<service>[_<tls>]_<namespace> with
every character outside [A-Za-z0-9_] replaced by an underscore. Names
over MaxClusterNameLength are cut and suffixed with a dash and the hex
xxhash of the full name. When two identities still end up with the same
name, the smaller cluster key keeps it and the other cluster's mappings
are reported as errors.

# Errors

Malformed resources are recorded under GlobalScope and excluded from the
graph. The phases run in a fixed order (module, TLS contexts, mappings,
TCP mappings, port and name checks, groups) over identity sorted input,
so the error list is the same for a given snapshot whether or not the
cache was used.

# Services

A Mapping or TCPMapping names its upstream as [scheme://]host[:port]:

	quote                 host quote, port 80
	quote:8080            host quote, port 8080
	https://quote         host quote, port 443, originate TLS
	[2001:db8::1]:9000    IPv6 literal

Anything else (an unknown scheme, a path, a port outside 1..65535, an
empty host) makes the resource malformed. The logical cluster identity is
service, namespace and TLS context name; two mappings with the same
identity share one cluster.

# Settings

Without a Module the defaults apply:

	listen_port         8080
	tls_port            8443
	admin_port          8001
	connect_timeout_ms  3000
	route_timeout_ms    15000
	load_balancer       round_robin

A Module with an unknown load balancer, a port out of range, clashing
ports or a negative timeout is rejected as a whole and the defaults stay
in effect. Once a Module has been applied, any further Module is an
error. TCPMappings may not bind any of the three ports.

# Route Matching

Graph.Match answers which group a request would reach, using the same
rules the rendered configuration gives the proxy: the virtual host is the
exact host pattern, then the longest "*." suffix pattern, then the catch
all; inside it the first group in route order whose prefix, method and
headers match wins. It backs /debug/route and the explain command.

	group, ok := graph.Match(ir.Request{Host: "api.example.com", Path: "/v1/users"})

# Usage

	store := cache.New()

	graph, stats, err := ir.Compile(snap, store, nil)
	if err != nil {
		// coherency failure; reset the store
	}
	for _, e := range graph.Errors {
		fmt.Println(e.Error())
	}

	// after an edit to one Mapping
	graph, stats, err = ir.Compile(next, store, []types.ResourceIdentity{id})
	fmt.Println(stats.MappingsReused, stats.MappingsCompiled)

Passing a nil store compiles without caching. The graph is the same
either way.

# Troubleshooting

## A mapping is missing from the graph

Look for its resource key in Graph.Errors (/debug/errors). Common
messages are an unparseable service, a reference to an unknown TLS
context, a weight outside 0..100, explicit weights in one group adding up
past 100, and a cluster name already used by another service.

## Nothing is reused after an edit

A TLSContext or Module change forces a complete build upstream, so the
store arrives empty. For Mapping edits, Stats.Invalidated shows how many
entries the edit removed; a group is recomputed whenever any member was.

# See Also

  - pkg/cache for the store and its invalidation rules
  - pkg/render for how the graph becomes Envoy configuration
*/
package ir
