/*
Package types defines the declarative resources edgeplane compiles.

# Resource Kinds

	Mapping      HTTP route from a request match to an upstream service
	TCPMapping   raw TCP proxy from a listener port to an upstream service
	TLSContext   TLS material for termination and origination
	Module       proxy-wide settings

Resource is a sealed interface: only the four kinds above implement it,
so a type switch over a Resource is exhaustive.

## Mapping

	prefix          request path prefix, required
	host            exact Host, or "*.example.com"; empty matches any
	method          HTTP method; empty matches any
	headers         exact header values, all required
	service         [scheme://]host[:port], required
	weight          share of the group's traffic, 0 to 100
	prefix_rewrite  replaces the matched prefix
	timeout_ms      route timeout, Module route_timeout_ms if unset
	precedence      higher is matched first, before prefix length
	tls             TLSContext used to originate TLS upstream

Mappings with the same host, method, headers, prefix and precedence
form one group and share its traffic by weight.

## TCPMapping

	port             listener port, required and unique
	service          upstream service, required
	tls              TLSContext used to originate TLS upstream
	idle_timeout_ms  tcp_proxy idle timeout

## TLSContext

A TLSContext with hosts terminates TLS for those server names on the TLS
port. One referenced by name from a Mapping or TCPMapping originates TLS
to the upstream, with sni overriding the service host.

## Module

Proxy-wide settings: listen_port, tls_port, admin_port,
connect_timeout_ms, route_timeout_ms, server_name and load_balancer
(round_robin, least_request, random). Zero values keep the defaults.

# Identity

A ResourceIdentity is the kind, apiVersion, name and namespace. Two
resources are the same resource iff all four match, so the same name
under two apiVersions is two resources. The canonical string form is

	Mapping/default/quote@getambassador.io/v3alpha1

and identities sort by kind, namespace, name, then apiVersion.

# Snapshots and Deltas

A Snapshot is the deduplicated set of resources at one point in time,
keyed by identity. A Delta reports one add, update or delete between two
snapshots in the record layout

	{"kind": "Mapping", "apiVersion": "...",
	 "metadata": {"name": "quote", "namespace": "default"},
	 "deltaType": "update"}

Values in this package are shared between builds. A resource placed in a
Snapshot must not be modified; derive the next snapshot with Clone and
replace resources with Upsert.
*/
package types
