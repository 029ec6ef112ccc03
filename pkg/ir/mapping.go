package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/edgeplane/pkg/cache"
	"github.com/cuemby/edgeplane/pkg/types"
)

const artifactMapping = "mapping"

// resolved is a compiled artifact plus whether this pass produced it
type resolved[T any] struct {
	value T
	fresh bool
}

// compileMappings resolves every Mapping from the cache or compiles it.
// The returned error is always a cache coherency violation.
func (c *compiler) compileMappings(resources []types.Resource) ([]resolved[*Mapping], error) {
	out := make([]resolved[*Mapping], 0, len(resources))

	for _, r := range resources {
		src := r.(*types.Mapping)
		id := src.Identity()
		key := cache.ResourceKey(id)

		if m, ok := cache.Fetch[*Mapping](c.store, key); ok {
			c.lookup(artifactMapping, true)
			if err := c.ensureCluster(key, m.Service, c.clusterID(m.Service, m.Namespace, m.TLS)); err != nil {
				return nil, err
			}
			c.stats.MappingsReused++
			out = append(out, resolved[*Mapping]{value: m})
			continue
		}
		c.lookup(artifactMapping, false)

		m, ep, err := c.compileMapping(src)
		if err != nil {
			c.fail(id, "%v", err)
			continue
		}

		cid := c.clusterID(m.Service, m.Namespace, m.TLS)
		if _, err := c.cluster(cid, ep); err != nil {
			return nil, err
		}
		if err := c.put(key, m, cid.Key()); err != nil {
			return nil, err
		}
		c.stats.MappingsCompiled++
		out = append(out, resolved[*Mapping]{value: m, fresh: true})
	}
	return out, nil
}

// compileMapping validates one Mapping and produces its compiled form.
// It does not touch the cache.
func (c *compiler) compileMapping(src *types.Mapping) (*Mapping, Endpoint, error) {
	spec := src.Spec

	if spec.Prefix == "" {
		return nil, Endpoint{}, fmt.Errorf("prefix is required")
	}
	if !strings.HasPrefix(spec.Prefix, "/") {
		return nil, Endpoint{}, fmt.Errorf("prefix %q must start with /", spec.Prefix)
	}

	ep, err := ParseService(spec.Service)
	if err != nil {
		return nil, Endpoint{}, err
	}

	if spec.Weight != nil && (*spec.Weight < 0 || *spec.Weight > 100) {
		return nil, Endpoint{}, fmt.Errorf("weight %d out of range 0..100", *spec.Weight)
	}
	if spec.TimeoutMS < 0 {
		return nil, Endpoint{}, fmt.Errorf("timeout_ms must not be negative")
	}
	if err := c.checkTLSReference(tlsName(spec.TLS)); err != nil {
		return nil, Endpoint{}, err
	}

	method := strings.ToUpper(strings.TrimSpace(spec.Method))
	if method != "" && strings.IndexFunc(method, func(r rune) bool { return r < 'A' || r > 'Z' }) >= 0 {
		return nil, Endpoint{}, fmt.Errorf("invalid method %q", spec.Method)
	}

	headers, err := sortedHeaders(spec.Headers)
	if err != nil {
		return nil, Endpoint{}, err
	}

	timeout := spec.TimeoutMS
	if timeout == 0 {
		timeout = c.settings.RouteTimeoutMS
	}

	host := strings.ToLower(strings.TrimSpace(spec.Host))
	if host == "*" {
		host = ""
	}

	cid := c.clusterID(spec.Service, src.Meta.Namespace, tlsName(spec.TLS))
	m := &Mapping{
		Key:           cache.ResourceKey(src.Identity()),
		Name:          src.Meta.Name,
		Namespace:     src.Meta.Namespace,
		Prefix:        spec.Prefix,
		Host:          host,
		Method:        method,
		Headers:       headers,
		Service:       spec.Service,
		TLS:           tlsName(spec.TLS),
		Weight:        copyInt(spec.Weight),
		PrefixRewrite: copyString(spec.PrefixRewrite),
		TimeoutMS:     timeout,
		Precedence:    spec.Precedence,
		Cluster:       cid.Key(),
		GroupID:       groupID(host, method, spec.Prefix, headerStrings(headers), spec.Precedence),
	}
	return m, ep, nil
}

func (c *compiler) checkTLSReference(name string) error {
	if name == "" {
		return nil
	}
	if _, ok := c.tls[name]; !ok {
		return fmt.Errorf("unknown TLSContext %q", name)
	}
	return nil
}

func (c *compiler) clusterID(service, namespace, tls string) ClusterID {
	return ClusterID{Service: service, Namespace: namespace, TLS: tls}
}

func tlsName(name string) string {
	return strings.TrimSpace(name)
}

func sortedHeaders(headers map[string]string) ([]types.HeaderMatch, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	out := make([]types.HeaderMatch, 0, len(headers))
	for name, value := range headers {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return nil, fmt.Errorf("header name must not be empty")
		}
		out = append(out, types.HeaderMatch{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

func headerStrings(headers []types.HeaderMatch) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = h.Name + "=" + h.Value
	}
	return out
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
