/*
Package classifier decides how a build applies a list of deltas.

A build is either complete, which discards the whole compilation cache,
or incremental, which keeps the cache and invalidates only the resources
the deltas updated or deleted. Added resources need no invalidation since
they have no cache entry yet.

Only Mapping and TCPMapping are incremental. TLSContext and Module
resources can change any derived artifact (every cluster that
originates TLS, every listener port) and therefore always force a
complete build, as does any kind the classifier does not recognize.

The classifier fails closed. An unrecognized delta type, a delta without
a name, or a cache that is not enabled all produce a complete plan with a
human readable Reason:

	caching disabled
	delta 3: unrecognized delta type "patch"
	delta 0: Mapping without a name
	delta 1: Module has global effect

An incremental plan lists each updated or deleted identity once, sorted.
*/
package classifier
