package types

// Snapshot is the deduplicated set of resources at one point in time.
// A Snapshot handed to the compiler must not be mutated afterwards;
// use Clone to derive the next one.
type Snapshot struct {
	resources map[ResourceIdentity]Resource
}

// NewSnapshot creates a snapshot from the given resources. A resource
// with the same identity as an earlier one replaces it.
func NewSnapshot(resources ...Resource) *Snapshot {
	s := &Snapshot{resources: make(map[ResourceIdentity]Resource, len(resources))}
	for _, r := range resources {
		s.Upsert(r)
	}
	return s
}

// Upsert adds or replaces a resource
func (s *Snapshot) Upsert(r Resource) {
	s.resources[r.Identity()] = r
}

// Delete removes the resource with the given identity, if present
func (s *Snapshot) Delete(id ResourceIdentity) {
	delete(s.resources, id)
}

// Get returns the resource with the given identity
func (s *Snapshot) Get(id ResourceIdentity) (Resource, bool) {
	if s == nil {
		return nil, false
	}
	r, ok := s.resources[id]
	return r, ok
}

// Len returns the number of resources
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.resources)
}

// Identities returns all identities in sorted order
func (s *Snapshot) Identities() []ResourceIdentity {
	if s == nil {
		return nil
	}
	ids := make([]ResourceIdentity, 0, len(s.resources))
	for id := range s.resources {
		ids = append(ids, id)
	}
	SortIdentities(ids)
	return ids
}

// Resources returns all resources ordered by identity
func (s *Snapshot) Resources() []Resource {
	ids := s.Identities()
	out := make([]Resource, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.resources[id])
	}
	return out
}

// ByKind returns the resources of one kind ordered by identity
func (s *Snapshot) ByKind(kind Kind) []Resource {
	var out []Resource
	for _, r := range s.Resources() {
		if r.Identity().Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns a shallow copy that can be mutated independently.
// Resource values are shared and must be treated as immutable.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{resources: make(map[ResourceIdentity]Resource, s.Len())}
	if s != nil {
		for id, r := range s.resources {
			c.resources[id] = r
		}
	}
	return c
}
