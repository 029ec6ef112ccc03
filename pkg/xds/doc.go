/*
Package xds serves rendered configuration to Envoy over ADS.

# Architecture

	┌─────────────────────────── XDS ───────────────────────────┐
	│                                                             │
	│  reconciler ──Publish(gen, cfg)──▶ Publisher                │
	│                                      │                      │
	│                     resources by type URL                   │
	│                     (clusters, listeners, routes)           │
	│                                      │                      │
	│                     cachev3.NewSnapshot(version, ...)       │
	│                     snapshot.Consistent()                   │
	│                                      │                      │
	│                     SnapshotCache.SetSnapshot(node id)      │
	│                                      │                      │
	│  Envoy ◀──gRPC ADS stream── Server (serverv3 + callbacks)   │
	└─────────────────────────────────────────────────────────────┘

A Publisher converts a render.Config into a go-control-plane snapshot for
one node id, checks that every route configuration referenced by a
listener is present and sets it on an ADS snapshot cache. An inconsistent
snapshot is rejected and the previous one stays in place.

# Versions

The snapshot version is the build generation followed by a content
fingerprint:

	12-9f3c2a61d04b7e85

Generations restart at 1 with the process. The fingerprint keeps a
restarted control plane from offering a proxy that stayed connected the
same version for different content, which the proxy would ignore.

# Server

Server registers the aggregated discovery service on a gRPC server backed
by the publisher's cache. Its callbacks log stream opens and closes at
debug level and proxy NACKs at warn, with the rejected type and version
and the proxy's error message. A stream interceptor tracks
edgeplane_xds_streams_active. The xds health component is healthy while
the server is serving.

# Usage

	pub := xds.NewPublisher("edge-proxy")
	srv := xds.NewServer(ctx, ":18000", pub)
	go srv.Run(ctx)

	if err := pub.Publish(ctx, b.Generation, b.Config); err != nil {
		// snapshot rejected, previous one still served
	}

The node id must match the id in the bootstrap the proxy starts with;
both come from xds.node_id in the configuration.
*/
package xds
