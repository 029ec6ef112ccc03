package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/cuemby/edgeplane/pkg/types"
)

// encode produces the canonical form hashed by Fingerprint
var encode = json.Marshal

// Fingerprint hashes the canonical JSON encoding of a resource. Map
// keys are sorted by encoding/json, so equal content hashes equally.
func Fingerprint(r types.Resource) (uint64, error) {
	data, err := encode(r)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s: %w", r.Identity(), err)
	}
	return xxhash.Sum64(data), nil
}

// sameContent reports whether two declarations of a resource are equal.
// A resource that cannot be encoded always counts as changed.
func sameContent(a, b types.Resource) bool {
	if a == b {
		return true
	}
	fa, errA := Fingerprint(a)
	fb, errB := Fingerprint(b)
	return errA == nil && errB == nil && fa == fb
}

// Diff returns the deltas that turn prev into next: deletes first, then
// updates, then adds, each ordered by identity. A nil prev is empty.
func Diff(prev, next *types.Snapshot) []types.Delta {
	var deletes, updates, adds []types.Delta

	for _, id := range prev.Identities() {
		old, _ := prev.Get(id)
		cur, ok := next.Get(id)
		switch {
		case !ok:
			deletes = append(deletes, types.NewDelta(old, types.DeltaDelete))
		case !sameContent(old, cur):
			updates = append(updates, types.NewDelta(cur, types.DeltaUpdate))
		}
	}
	for _, id := range next.Identities() {
		if _, ok := prev.Get(id); !ok {
			cur, _ := next.Get(id)
			adds = append(adds, types.NewDelta(cur, types.DeltaAdd))
		}
	}

	out := make([]types.Delta, 0, len(deletes)+len(updates)+len(adds))
	out = append(out, deletes...)
	out = append(out, updates...)
	return append(out, adds...)
}
