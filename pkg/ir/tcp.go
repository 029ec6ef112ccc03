package ir

import (
	"strings"

	"github.com/cuemby/edgeplane/pkg/cache"
	"github.com/cuemby/edgeplane/pkg/types"
)

const artifactTCPMapping = "tcpmapping"

func (c *compiler) compileTCPMappings(resources []types.Resource) ([]resolved[*TCPMapping], error) {
	out := make([]resolved[*TCPMapping], 0, len(resources))

	for _, r := range resources {
		src := r.(*types.TCPMapping)
		id := src.Identity()
		key := cache.ResourceKey(id)

		if t, ok := cache.Fetch[*TCPMapping](c.store, key); ok {
			c.lookup(artifactTCPMapping, true)
			cid := c.clusterID(t.Service, t.Namespace, t.TLS)
			if err := c.ensureCluster(key, t.Service, cid); err != nil {
				return nil, err
			}
			c.stats.TCPMappingsReused++
			out = append(out, resolved[*TCPMapping]{value: t})
			continue
		}
		c.lookup(artifactTCPMapping, false)

		spec := src.Spec
		if spec.Port < 1 || spec.Port > 65535 {
			c.fail(id, "port %d out of range", spec.Port)
			continue
		}
		if spec.IdleTimeoutMS < 0 {
			c.fail(id, "idle_timeout_ms must not be negative")
			continue
		}
		if err := c.checkTLSReference(tlsName(spec.TLS)); err != nil {
			c.fail(id, "%v", err)
			continue
		}
		ep, err := ParseService(spec.Service)
		if err != nil {
			c.fail(id, "%v", err)
			continue
		}

		cid := c.clusterID(spec.Service, src.Meta.Namespace, tlsName(spec.TLS))
		cl, err := c.cluster(cid, ep)
		if err != nil {
			return nil, err
		}

		t := &TCPMapping{
			Key:           key,
			Name:          src.Meta.Name,
			Namespace:     src.Meta.Namespace,
			Port:          spec.Port,
			Service:       spec.Service,
			TLS:           tlsName(spec.TLS),
			IdleTimeoutMS: spec.IdleTimeoutMS,
			Cluster:       cl.Key,
			ClusterName:   cl.Name,
		}
		if err := c.put(key, t, cl.Key); err != nil {
			return nil, err
		}
		c.stats.TCPMappingsCompiled++
		out = append(out, resolved[*TCPMapping]{value: t, fresh: true})
	}
	return out, nil
}

// checkPorts drops TCPMappings whose port is reserved by the settings or
// already claimed by an earlier TCPMapping
func (c *compiler) checkPorts(tcps []resolved[*TCPMapping]) []resolved[*TCPMapping] {
	reserved := c.settings.reservedPorts()
	claimed := make(map[int]cache.Key)

	kept := tcps[:0:0]
	for _, t := range tcps {
		port := t.value.Port
		if name, ok := reserved[port]; ok {
			c.failArtifact(t.value.Key, "port %d conflicts with %s", port, name)
			continue
		}
		if owner, ok := claimed[port]; ok {
			c.failArtifact(t.value.Key, "port %d already used by %s", port, strings.TrimPrefix(string(owner), cache.ResourcePrefix))
			continue
		}
		claimed[port] = t.value.Key
		kept = append(kept, t)
	}
	return kept
}
