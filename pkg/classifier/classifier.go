package classifier

import (
	"fmt"

	"github.com/cuemby/edgeplane/pkg/types"
)

// Kind is the reconfiguration strategy chosen for one build
type Kind string

const (
	// Complete discards the cache and recompiles everything
	Complete Kind = "complete"
	// Incremental keeps the cache and recompiles only what the deltas touch
	Incremental Kind = "incremental"
)

// Plan is the classifier's decision for one delta list
type Plan struct {
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason,omitempty"`
	// Invalidate holds the updated or deleted identities, sorted and
	// deduplicated. Always empty for a complete plan.
	Invalidate []types.ResourceIdentity `json:"invalidate,omitempty"`
}

// IsComplete reports whether the plan requires a cache reset
func (p Plan) IsComplete() bool { return p.Kind == Complete }

// incrementalKinds are the resource kinds whose effect is confined to the
// artifacts derived from them. Any other kind may influence arbitrary
// derived artifacts and forces a complete build.
var incrementalKinds = map[types.Kind]bool{
	types.KindMapping:    true,
	types.KindTCPMapping: true,
}

// IsIncrementalKind reports whether deltas of a kind can be applied incrementally
func IsIncrementalKind(kind types.Kind) bool {
	return incrementalKinds[kind]
}

// Classify decides whether the deltas can be applied to the existing cache.
// It fails closed: anything it does not understand yields a complete plan.
func Classify(deltas []types.Delta, cacheEnabled bool) Plan {
	if !cacheEnabled {
		return complete("caching disabled")
	}

	seen := make(map[types.ResourceIdentity]bool)
	var invalidate []types.ResourceIdentity

	for i, d := range deltas {
		if !d.DeltaType.Valid() {
			return complete(fmt.Sprintf("delta %d: unrecognized delta type %q", i, d.DeltaType))
		}
		if d.Metadata.Name == "" {
			return complete(fmt.Sprintf("delta %d: %s without a name", i, d.Kind))
		}
		if !IsIncrementalKind(types.Kind(d.Kind)) {
			return complete(fmt.Sprintf("delta %d: %s has global effect", i, d.Kind))
		}
		if d.DeltaType == types.DeltaAdd {
			continue
		}

		id := d.Identity()
		if !seen[id] {
			seen[id] = true
			invalidate = append(invalidate, id)
		}
	}

	types.SortIdentities(invalidate)
	return Plan{Kind: Incremental, Invalidate: invalidate}
}

func complete(reason string) Plan {
	return Plan{Kind: Complete, Reason: reason}
}
