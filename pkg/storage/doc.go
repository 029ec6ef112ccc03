/*
Package storage persists build history in BoltDB.

Every successful build is saved as a BuildRecord in <dataDir>/edgeplane.db,
so the last known good configuration and the recent build history survive
a restart.

# Architecture

	┌──────────────────── BOLTDB STORAGE ────────────────────┐
	│                                                          │
	│  BoltStore                                               │
	│    file: <dataDir>/edgeplane.db (0600)                   │
	│    one process at a time (bbolt file lock)               │
	│                                                          │
	│  ┌──────────────────────────────────────────────┐       │
	│  │ builds                                        │       │
	│  │   00 00 00 00 00 00 00 01  ─▶ JSON record     │       │
	│  │   00 00 00 00 00 00 00 02  ─▶ JSON record     │       │
	│  │   ...                     (oldest trimmed)    │       │
	│  ├──────────────────────────────────────────────┤       │
	│  │ meta                                          │       │
	│  │   last_good ─▶ generation key                 │       │
	│  └──────────────────────────────────────────────┘       │
	└──────────────────────────────────────────────────────────┘

Keys are big-endian generations, so a cursor walks records in generation
order and the last key is the newest. On each save the oldest records beyond the
configured history are deleted in the same transaction.

# Records

A BuildRecord holds the summary of one build:

  - Generation, Kind, Reason, Retried: what was built and why
  - Version: the xDS snapshot version served for it
  - Resources, CacheLen, Errors: snapshot size, cache size, resource errors
  - DurationMS, CompletedAt: timing
  - Bootstrap, Dynamic: the rendered configuration as JSON

The diagnostics history endpoint and the history command list records
without rendering their configuration.

# Transactions

  - SaveBuild: one db.Update writing the record, moving last_good and
    trimming history, committed atomically
  - LastBuild, ListBuilds: db.View, concurrent with each other and with
    a save

Generations restart at 1 with the process, so a save after a restart
overwrites the record of the same generation from the previous run. The
last_good pointer always names the newest save.

# Usage

	store, err := storage.NewBoltStore(dataDir, storage.DefaultHistory)
	if err != nil {
		return err
	}
	defer store.Close()

	last, err := store.LastBuild()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// first start
	case err != nil:
		return err
	default:
		fmt.Println(last.Generation, last.Version)
	}

	recent, err := store.ListBuilds(10) // newest first

# Troubleshooting

## Startup hangs opening the database

Another edgeplane process holds the file lock. Only one control plane may
use a data directory; serve and history wait until the lock is released.

## "failed to open database"

The data directory must exist and be writable. It is not created.

# See Also

  - pkg/reconciler for when records are saved
  - pkg/api for /debug/history
*/
package storage
