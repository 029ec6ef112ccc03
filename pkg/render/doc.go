/*
Package render turns a compiled graph into Envoy v3 configuration.

Render produces a Config holding the bootstrap document and the clusters,
listeners and route configuration served over ADS. It is the second cached
phase of a build: the expensive per-artifact protos are stored as
fragments and reused while the graph artifact they came from is valid.

# Architecture

	┌───────────────────────── RENDER ─────────────────────────┐
	│                                                            │
	│  ir.Graph                                                  │
	│     │                                                      │
	│     ├─ Clusters ──────▶ render:cluster:<cluster key>       │
	│     │                    clusterv3.Cluster          cached │
	│     │                                                      │
	│     ├─ Groups ────────▶ render:routes:<group key>          │
	│     │                    []*routev3.Route           cached │
	│     │        │                                             │
	│     │        └──▶ VirtualHosts ─▶ RouteConfiguration fresh │
	│     │                                                      │
	│     ├─ TCPMappings ───▶ render:listener:<tcp key>          │
	│     │                    listenerv3.Listener        cached │
	│     │                                                      │
	│     ├─ Settings, TLS ─▶ edge_http, edge_https        fresh │
	│     │                                                      │
	│     └─ Options ───────▶ Bootstrap                    fresh │
	│                                                            │
	│  Config{Bootstrap, Clusters, Listeners, Routes,            │
	│         ClusterMap}                                        │
	└────────────────────────────────────────────────────────────┘

# Fragments

Three kinds of output are cached, each owned by the graph artifact it was
rendered from:

	render:cluster:<cluster key>     one Cluster
	render:routes:<group key>        the routes of one group
	render:listener:<tcp key>        one TCP listener

A fragment is Put and then linked from its owner, so invalidating the
cluster, group or TCPMapping drops the fragment with it. A fragment read
from the cache is therefore always current. Virtual hosts, the HTTP(S)
listeners and the bootstrap depend on many artifacts at once and are
cheap, so they are assembled on every render.

Fragment protos are shared between builds and never modified after they
are stored.

# Clusters

  - STRICT_DNS for host names, STATIC for IP literals
  - lb_policy from the Module load_balancer
  - connect_timeout from the Module connect_timeout_ms
  - an upstream TLS transport socket when the service uses https or a
    TLSContext; SNI is the service host unless it is an IP, and a
    context sni overrides it

# Routes

Every group is one or more routes inside the virtual host for its host
pattern. Groups without a host are appended to every virtual host, and a
"*" virtual host (edge_any) is added to serve them for any other host.

Weighted groups render one route per member. Each route but the last
carries a runtime fraction equal to the member's cumulative threshold, so
Envoy's single per-request random draw selects exactly one member:

	member   weight   threshold   runtime_fraction
	v1         30        30        30/100
	v2          -        65        65/100
	v3          -       100        (none)

Routes also carry the prefix rewrite and the route timeout of the member.

# Listeners

  - edge_http on listen_port with an HTTP connection manager using RDS
  - edge_https on tls_port when a TLSContext terminates TLS, one filter
    chain per context matched by server name through the TLS inspector
  - tcp_<port> per TCPMapping with a tcp_proxy filter

# Bootstrap

The bootstrap names the node (Options.NodeID and NodeCluster), opens the
admin listener on 127.0.0.1:admin_port, and defines a static xds_cluster
pointing at Options.XDSHost:XDSPort over HTTP/2. Clusters and listeners
come from ADS. Rendering fails without a node id.

# Output

	data, err := cfg.BootstrapJSON()   // protojson, proto field names
	data, err = cfg.DynamicJSON()      // {clusters, listeners, routes, cluster_map}
	same := a.Equal(b)                 // proto.Equal over every resource
	fp, err := cfg.Fingerprint()       // xxhash of the deterministic encoding

The output of Render is identical whether or not a cache is used; Equal
compares two configs semantically and backs the --verify-cache check of
the compile command.

# Usage

	cfg, stats, err := render.Render(graph, store, render.DefaultOptions())
	if err != nil {
		return err
	}
	fmt.Println(stats.FragmentsReused, stats.FragmentsRendered)

# See Also

  - pkg/ir for the graph
  - pkg/xds for serving Config over ADS
*/
package render
