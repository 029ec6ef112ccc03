package ir

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/edgeplane/pkg/cache"
	"github.com/cuemby/edgeplane/pkg/types"
)

// GlobalScope is the error scope every resource error is reported under
const GlobalScope = "-global-"

// Error is a malformed-resource error. The resource is excluded from the
// graph and the rest of the snapshot compiles normally.
type Error struct {
	Scope    string `json:"scope"`
	Resource string `json:"resource"`
	Message  string `json:"message"`
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Resource, e.Message)
}

// Settings are the proxy-wide values derived from the Module resource
type Settings struct {
	Source           string `json:"source,omitempty"`
	ListenPort       int    `json:"listen_port"`
	TLSPort          int    `json:"tls_port"`
	AdminPort        int    `json:"admin_port"`
	ConnectTimeoutMS int    `json:"connect_timeout_ms"`
	RouteTimeoutMS   int    `json:"route_timeout_ms"`
	ServerName       string `json:"server_name,omitempty"`
	LoadBalancer     string `json:"load_balancer"`
}

// TLSContext is compiled TLS material
type TLSContext struct {
	Key            cache.Key `json:"key"`
	Name           string    `json:"name"`
	Namespace      string    `json:"namespace"`
	Hosts          []string  `json:"hosts,omitempty"`
	CertChainFile  string    `json:"cert_chain_file,omitempty"`
	PrivateKeyFile string    `json:"private_key_file,omitempty"`
	CACertFile     string    `json:"ca_cert_file,omitempty"`
	ALPNProtocols  []string  `json:"alpn_protocols,omitempty"`
	MinTLSVersion  string    `json:"min_tls_version,omitempty"`
	SNI            string    `json:"sni,omitempty"`
}

// Terminates reports whether the context terminates TLS for some hosts
func (t *TLSContext) Terminates() bool {
	return len(t.Hosts) > 0 && t.CertChainFile != ""
}

// ClusterID is the logical identity of an upstream cluster
type ClusterID struct {
	Service   string `json:"service"`
	Namespace string `json:"namespace"`
	TLS       string `json:"tls,omitempty"`
}

func (id ClusterID) String() string {
	return id.Service + "|" + id.Namespace + "|" + id.TLS
}

// Key is the cache key of the cluster
func (id ClusterID) Key() cache.Key {
	return cache.ClusterKey(id.String())
}

// Cluster is an upstream target derived from one or more mappings
type Cluster struct {
	Key       cache.Key `json:"key"`
	ID        ClusterID `json:"id"`
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Originate bool      `json:"originate_tls,omitempty"`

	ConnectTimeoutMS int    `json:"connect_timeout_ms"`
	LoadBalancer     string `json:"load_balancer"`
}

// Mapping is a compiled HTTP route
type Mapping struct {
	Key           cache.Key           `json:"key"`
	Name          string              `json:"name"`
	Namespace     string              `json:"namespace"`
	Prefix        string              `json:"prefix"`
	Host          string              `json:"host,omitempty"`
	Method        string              `json:"method,omitempty"`
	Headers       []types.HeaderMatch `json:"headers,omitempty"`
	Service       string              `json:"service"`
	TLS           string              `json:"tls,omitempty"`
	Weight        *int                `json:"weight,omitempty"`
	PrefixRewrite *string             `json:"prefix_rewrite,omitempty"`
	TimeoutMS     int                 `json:"timeout_ms"`
	Precedence    int                 `json:"precedence,omitempty"`
	Cluster       cache.Key           `json:"cluster"`
	GroupID       string              `json:"group"`
}

// TCPMapping is a compiled TCP proxy
type TCPMapping struct {
	Key           cache.Key `json:"key"`
	Name          string    `json:"name"`
	Namespace     string    `json:"namespace"`
	Port          int       `json:"port"`
	Service       string    `json:"service"`
	TLS           string    `json:"tls,omitempty"`
	IdleTimeoutMS int       `json:"idle_timeout_ms,omitempty"`
	Cluster       cache.Key `json:"cluster"`
	ClusterName   string    `json:"cluster_name"`
}

// Member is one mapping inside a group. Threshold is the cumulative
// weight at which this member stops matching; the last member is 100.
type Member struct {
	Mapping       cache.Key `json:"mapping"`
	Name          string    `json:"name"`
	Namespace     string    `json:"namespace"`
	Service       string    `json:"service"`
	Cluster       cache.Key `json:"cluster"`
	ClusterName   string    `json:"cluster_name"`
	Threshold     int       `json:"threshold"`
	PrefixRewrite *string   `json:"prefix_rewrite,omitempty"`
	TimeoutMS     int       `json:"timeout_ms"`
}

// Group is the set of mappings that share one match and split its traffic
type Group struct {
	Key        cache.Key           `json:"key"`
	ID         string              `json:"id"`
	Host       string              `json:"host,omitempty"`
	Method     string              `json:"method,omitempty"`
	Prefix     string              `json:"prefix"`
	Headers    []types.HeaderMatch `json:"headers,omitempty"`
	Precedence int                 `json:"precedence,omitempty"`
	Members    []Member            `json:"members"`
}

// MemberKeys returns the mapping keys of the members in order
func (g *Group) MemberKeys() []cache.Key {
	keys := make([]cache.Key, len(g.Members))
	for i, m := range g.Members {
		keys[i] = m.Mapping
	}
	return keys
}

// Weighted reports whether traffic is split between several members
func (g *Group) Weighted() bool { return len(g.Members) > 1 }

// Graph is the compiled form of one snapshot. Every slice is sorted so
// the graph is identical no matter which artifacts came from the cache.
type Graph struct {
	Settings    Settings      `json:"settings"`
	TLSContexts []*TLSContext `json:"tls_contexts"`
	Mappings    []*Mapping    `json:"mappings"`
	TCPMappings []*TCPMapping `json:"tcp_mappings"`
	Clusters    []*Cluster    `json:"clusters"`
	Groups      []*Group      `json:"groups"`
	Errors      []Error       `json:"errors"`
}

// Cluster returns the cluster with the given key
func (g *Graph) Cluster(key cache.Key) (*Cluster, bool) {
	for _, c := range g.Clusters {
		if c.Key == key {
			return c, true
		}
	}
	return nil, false
}

// TLSContext returns the context with the given name
func (g *Graph) TLSContext(name string) (*TLSContext, bool) {
	for _, t := range g.TLSContexts {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// ClusterMap maps each logical cluster identity to its rendered name
func (g *Graph) ClusterMap() map[string]string {
	m := make(map[string]string, len(g.Clusters))
	for _, c := range g.Clusters {
		m[c.ID.String()] = c.Name
	}
	return m
}

// JSON returns the indented JSON encoding of the graph
func (g *Graph) JSON() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}
