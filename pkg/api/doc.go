/*
Package api serves the read-only HTTP diagnostics endpoints.

# Endpoints

	/health /ready /live   component health (pkg/metrics)
	/metrics               Prometheus metrics
	/debug/build           summary of the last build
	/debug/ir              compiled graph as JSON
	/debug/config          resources served over ADS
	/debug/bootstrap       proxy bootstrap document
	/debug/clustermap      logical cluster identity -> rendered name
	/debug/errors          resource errors of the last build
	/debug/cache           cache entries with their owner links
	/debug/route           which group serves ?host=&path=&method=
	/debug/status          reconciler request counters
	/debug/history         recent build records, ?limit=

Every endpoint answers GET only; other methods get 405.

Everything under /debug is read from the last published build, so the
endpoints may be queried while the next build runs. Build endpoints answer
503 until the first build completes. /debug/status and /debug/history
answer 404 when the server was built without a reconciler or a store, as
the compile command does.

# Route Explanation

/debug/route runs the same matcher the compiled graph is tested with.
path defaults to "/" and method to GET:

	curl 'localhost:9090/debug/route?host=api.example.com&path=/quote/1'

The response is the matching group with its members and weights, or 404
when no group matches.

# History

/debug/history returns up to limit records, 20 by default, newest first.
The rendered bootstrap and dynamic configuration are stripped; use
/debug/bootstrap and /debug/config for the live ones.

# Usage

	srv := api.NewServer(pipeline, rec, store)
	go srv.Run(ctx, ":9090")

Run shuts the server down gracefully when ctx is done.
*/
package api
