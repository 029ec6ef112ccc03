/*
Package ingest turns manifest files into snapshots and snapshots into
deltas.

It is the boundary between files on disk and the typed world the compiler
works in. Nothing past ingest ever sees YAML, an unknown kind or an
invalid name.

# Architecture

	┌──────────────────────── INGEST ────────────────────────┐
	│                                                          │
	│  manifests/*.yaml, *.yml                                 │
	│        │ fsnotify (create, write, remove, rename)        │
	│        ▼                                                 │
	│   Debouncer ── quiet for the window ──▶ reload signal    │
	│        │                                                 │
	│        ▼  (on the Watcher.Run goroutine)                 │
	│   LoadDir ─▶ Decode each file ─▶ Snapshot                │
	│        │                                                 │
	│        ▼                                                 │
	│   Handler(snapshot, err)                                 │
	│                                                          │
	│   Diff(previous, next) ─▶ deletes, updates, adds         │
	└──────────────────────────────────────────────────────────┘

# Manifests

Manifests are multi-document YAML in the familiar apiVersion, kind,
metadata and spec layout:

	apiVersion: getambassador.io/v3alpha1
	kind: Mapping
	metadata:
	  name: quote
	  namespace: default
	spec:
	  prefix: /quote/
	  service: quote:8080
	  weight: 20

An empty apiVersion defaults to getambassador.io/v3alpha1 and an empty
namespace to default. The name must be a DNS-1123 subdomain and the
namespace a DNS-1123 label. Empty documents are skipped.

Decode rejects unknown kinds, missing or invalid names and specs that do
not decode into the kind's spec type. The first problem fails the stream.

# Loading a Directory

LoadDir reads every *.yaml and *.yml file directly inside the directory,
in file name order, into one deduplicated Snapshot. A resource declared
twice keeps its later declaration and a warning is logged.

A file that cannot be read and a document that cannot be decoded are
logged and skipped, so one typo never blocks every other change. A YAML
syntax error ends its file, since the decoder cannot find the next
document after it; documents before it still load. The number skipped by
the last load is exported as edgeplane_manifest_errors. Only a directory
that cannot be listed is an error.

Skipping a broken document has a visible effect: the resource it used to
declare disappears from the snapshot, and the next build removes its
routes. The log line names the file and document.

# Diffing

Diff compares two snapshots and reports:

  - deletes: identities only in the previous snapshot
  - updates: identities in both whose content fingerprint differs
  - adds: identities only in the next snapshot

each ordered by identity, in that order. The fingerprint is the xxhash of
the JSON encoding, which sorts maps, so header order never counts as a
change. The same pointer in both snapshots is never re-encoded. A
resource that cannot be encoded always counts as changed.

# Watching

	w := ingest.NewWatcher(dir, ingest.DefaultDebounce, func(snap *types.Snapshot, err error) {
		if err != nil {
			return // keep serving the previous configuration
		}
		rec.Request(snap)
	})
	go w.Run(ctx)

Run loads the directory once before watching. Chmod events and files that
are not manifests are ignored. A burst of events is coalesced by the
Debouncer into one reload once no event arrived for the window.

Reloads run on the Run goroutine, one at a time, and a reload signalled
while another is in progress is queued rather than started beside it. The
handler therefore receives snapshots strictly in load order, and the
last snapshot it sees reflects the directory after the last event.

# Troubleshooting

## A change is not picked up

Editors that write through a temporary file and rename it produce a
create event for the final name, which is watched. Files in
subdirectories are not read. Check the ingest logs at debug level for
"manifests changed" and "loaded manifests".

## A resource vanished

Look for "skipping invalid manifest" in the log and for a non-zero
edgeplane_manifest_errors.

# See Also

  - pkg/types for the resource kinds
  - pkg/classifier for how deltas choose the build kind
*/
package ingest
