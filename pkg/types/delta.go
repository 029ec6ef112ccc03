package types

// DeltaType is the kind of change reported for one resource
type DeltaType string

const (
	DeltaAdd    DeltaType = "add"
	DeltaUpdate DeltaType = "update"
	DeltaDelete DeltaType = "delete"
)

// Valid reports whether the delta type is one of add, update or delete
func (t DeltaType) Valid() bool {
	switch t {
	case DeltaAdd, DeltaUpdate, DeltaDelete:
		return true
	default:
		return false
	}
}

// DeltaMetadata mirrors the metadata block of a delta record
type DeltaMetadata struct {
	Name              string `json:"name"`
	Namespace         string `json:"namespace"`
	CreationTimestamp string `json:"creationTimestamp"`
}

// Delta reports an add, update or delete of one resource between two snapshots
type Delta struct {
	Kind       string        `json:"kind"`
	APIVersion string        `json:"apiVersion"`
	Metadata   DeltaMetadata `json:"metadata"`
	DeltaType  DeltaType     `json:"deltaType"`
}

// NewDelta builds a delta record for a resource
func NewDelta(r Resource, deltaType DeltaType) Delta {
	id := r.Identity()
	return Delta{
		Kind:       string(id.Kind),
		APIVersion: id.APIVersion,
		Metadata: DeltaMetadata{
			Name:              id.Name,
			Namespace:         id.Namespace,
			CreationTimestamp: r.Metadata().CreationTimestamp,
		},
		DeltaType: deltaType,
	}
}

// Identity returns the identity of the resource the delta refers to
func (d Delta) Identity() ResourceIdentity {
	return ResourceIdentity{
		Kind:       Kind(d.Kind),
		APIVersion: d.APIVersion,
		Name:       d.Metadata.Name,
		Namespace:  d.Metadata.Namespace,
	}
}
