package ir

import (
	"sort"
	"strings"

	"github.com/cuemby/edgeplane/pkg/cache"
	"github.com/cuemby/edgeplane/pkg/types"
)

// TLSVersions lists the accepted min_tls_version values
var TLSVersions = []string{"v1.0", "v1.1", "v1.2", "v1.3"}

func validTLSVersion(v string) bool {
	for _, known := range TLSVersions {
		if v == known {
			return true
		}
	}
	return false
}

// compileTLSContexts compiles every TLSContext. Contexts have global
// effect so they are rebuilt each pass.
func (c *compiler) compileTLSContexts(resources []types.Resource) {
	c.tls = make(map[string]*TLSContext)
	hostOwner := make(map[string]string)

	for _, r := range resources {
		t := r.(*types.TLSContext)
		id := t.Identity()
		spec := t.Spec

		if prev, ok := c.tls[t.Meta.Name]; ok {
			c.fail(id, "duplicate TLSContext name %q, already defined in %s", t.Meta.Name, prev.Namespace)
			continue
		}
		if (spec.CertChainFile == "") != (spec.PrivateKeyFile == "") {
			c.fail(id, "cert_chain_file and private_key_file must be set together")
			continue
		}
		if len(spec.Hosts) > 0 && spec.CertChainFile == "" {
			c.fail(id, "hosts require a certificate to terminate TLS")
			continue
		}
		if spec.MinTLSVersion != "" && !validTLSVersion(spec.MinTLSVersion) {
			c.fail(id, "unknown min_tls_version %q", spec.MinTLSVersion)
			continue
		}

		hosts := normalizeHosts(spec.Hosts)
		conflict := ""
		for _, h := range hosts {
			if owner, ok := hostOwner[h]; ok {
				conflict = "host " + h + " already terminated by TLSContext " + owner
				break
			}
		}
		if conflict != "" {
			c.fail(id, "%s", conflict)
			continue
		}
		for _, h := range hosts {
			hostOwner[h] = t.Meta.Name
		}

		c.tls[t.Meta.Name] = &TLSContext{
			Key:            cache.ResourceKey(id),
			Name:           t.Meta.Name,
			Namespace:      t.Meta.Namespace,
			Hosts:          hosts,
			CertChainFile:  spec.CertChainFile,
			PrivateKeyFile: spec.PrivateKeyFile,
			CACertFile:     spec.CACertFile,
			ALPNProtocols:  append([]string(nil), spec.ALPNProtocols...),
			MinTLSVersion:  spec.MinTLSVersion,
			SNI:            spec.SNI,
		}
	}
}

func normalizeHosts(hosts []string) []string {
	if len(hosts) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(hosts))
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func (c *compiler) sortedTLSContexts() []*TLSContext {
	out := make([]*TLSContext, 0, len(c.tls))
	for _, t := range c.tls {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
