package ir

import (
	"sort"
	"strings"
)

// Request is the part of an HTTP request that route matching looks at
type Request struct {
	Host    string
	Path    string
	Method  string
	Headers map[string]string
}

// Match returns the group a request would be routed to, following the
// proxy's rules: pick the most specific virtual host for the request host,
// then the first group in route order whose match succeeds.
func (g *Graph) Match(req Request) (*Group, bool) {
	vhost := selectHost(g.Hosts(), req.Host)
	if len(req.Headers) > 0 {
		headers := make(map[string]string, len(req.Headers))
		for k, v := range req.Headers {
			headers[strings.ToLower(k)] = v
		}
		req.Headers = headers
	}

	for _, group := range g.Groups {
		if group.Host != "" && group.Host != vhost {
			continue
		}
		if matchGroup(group, req) {
			return group, true
		}
	}
	return nil, false
}

// Hosts returns the distinct host patterns that have their own virtual
// host, sorted. Groups without a host are served by every virtual host.
func (g *Graph) Hosts() []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range g.Groups {
		if group.Host != "" && !seen[group.Host] {
			seen[group.Host] = true
			out = append(out, group.Host)
		}
	}
	sort.Strings(out)
	return out
}

// selectHost picks the virtual host pattern serving host: an exact match
// wins, then the longest "*." suffix pattern. An empty result means the
// catch-all virtual host.
func selectHost(patterns []string, host string) string {
	if idx := strings.LastIndexByte(host, ':'); idx != -1 && !strings.HasSuffix(host, "]") {
		host = host[:idx]
	}
	host = strings.ToLower(host)

	best := ""
	for _, pattern := range patterns {
		if pattern == host {
			return pattern
		}
		if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(host, pattern[1:]) && len(pattern) > len(best) {
			best = pattern
		}
	}
	return best
}

func matchGroup(group *Group, req Request) bool {
	if !strings.HasPrefix(req.Path, group.Prefix) {
		return false
	}
	if group.Method != "" && !strings.EqualFold(group.Method, req.Method) {
		return false
	}
	for _, h := range group.Headers {
		if req.Headers[h.Name] != h.Value {
			return false
		}
	}
	return true
}
