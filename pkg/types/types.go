package types

import (
	"fmt"
	"sort"
)

// Kind discriminates the resource variants understood by the compiler
type Kind string

const (
	KindMapping    Kind = "Mapping"
	KindTCPMapping Kind = "TCPMapping"
	KindTLSContext Kind = "TLSContext"
	KindModule     Kind = "Module"
)

// DefaultAPIVersion is the apiVersion assumed when a manifest omits it
const DefaultAPIVersion = "getambassador.io/v3alpha1"

// DefaultNamespace is used for resources that do not declare a namespace
const DefaultNamespace = "default"

// KnownKinds lists every kind accepted at ingestion, in a stable order
var KnownKinds = []Kind{KindMapping, KindTCPMapping, KindTLSContext, KindModule}

// Known reports whether the kind is one of the supported resource variants
func (k Kind) Known() bool {
	for _, known := range KnownKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ResourceIdentity names one declarative object. Two resources are the
// same resource iff all four fields match.
type ResourceIdentity struct {
	Kind       Kind   `json:"kind"`
	APIVersion string `json:"apiVersion"`
	Name       string `json:"name"`
	Namespace  string `json:"namespace"`
}

// String returns the canonical form kind/namespace/name@apiVersion
func (id ResourceIdentity) String() string {
	return fmt.Sprintf("%s/%s/%s@%s", id.Kind, id.Namespace, id.Name, id.APIVersion)
}

// Less orders identities by kind, namespace, name and apiVersion
func (id ResourceIdentity) Less(other ResourceIdentity) bool {
	if id.Kind != other.Kind {
		return id.Kind < other.Kind
	}
	if id.Namespace != other.Namespace {
		return id.Namespace < other.Namespace
	}
	if id.Name != other.Name {
		return id.Name < other.Name
	}
	return id.APIVersion < other.APIVersion
}

// SortIdentities sorts identities in place using Less
func SortIdentities(ids []ResourceIdentity) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// ObjectMeta is the metadata block shared by all resources
type ObjectMeta struct {
	APIVersion        string            `json:"apiVersion"`
	Name              string            `json:"name"`
	Namespace         string            `json:"namespace"`
	CreationTimestamp string            `json:"creationTimestamp,omitempty"`
	Labels            map[string]string `json:"labels,omitempty"`
}

func (m ObjectMeta) identity(kind Kind) ResourceIdentity {
	return ResourceIdentity{
		Kind:       kind,
		APIVersion: m.APIVersion,
		Name:       m.Name,
		Namespace:  m.Namespace,
	}
}

// Resource is the sealed sum type over all resource kinds
type Resource interface {
	Identity() ResourceIdentity
	Metadata() ObjectMeta
	isResource()
}

// HeaderMatch requires an exact request header value
type HeaderMatch struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// MappingSpec defines one HTTP route from a request match to a service
type MappingSpec struct {
	Prefix        string            `json:"prefix" yaml:"prefix"`
	Host          string            `json:"host,omitempty" yaml:"host"`
	Method        string            `json:"method,omitempty" yaml:"method"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers"`
	Service       string            `json:"service" yaml:"service"`
	Weight        *int              `json:"weight,omitempty" yaml:"weight"`
	PrefixRewrite *string           `json:"prefix_rewrite,omitempty" yaml:"prefix_rewrite"`
	TimeoutMS     int               `json:"timeout_ms,omitempty" yaml:"timeout_ms"`
	Precedence    int               `json:"precedence,omitempty" yaml:"precedence"`
	TLS           string            `json:"tls,omitempty" yaml:"tls"` // Upstream TLSContext name
}

// Mapping routes HTTP traffic matching a prefix to an upstream service
type Mapping struct {
	Meta ObjectMeta  `json:"metadata"`
	Spec MappingSpec `json:"spec"`
}

func (m *Mapping) Identity() ResourceIdentity { return m.Meta.identity(KindMapping) }
func (m *Mapping) Metadata() ObjectMeta       { return m.Meta }
func (*Mapping) isResource()                  {}

// TCPMappingSpec defines a raw TCP proxy from a listener port to a service
type TCPMappingSpec struct {
	Port          int    `json:"port" yaml:"port"`
	Service       string `json:"service" yaml:"service"`
	TLS           string `json:"tls,omitempty" yaml:"tls"`
	IdleTimeoutMS int    `json:"idle_timeout_ms,omitempty" yaml:"idle_timeout_ms"`
}

// TCPMapping exposes an upstream service on a dedicated TCP port
type TCPMapping struct {
	Meta ObjectMeta     `json:"metadata"`
	Spec TCPMappingSpec `json:"spec"`
}

func (m *TCPMapping) Identity() ResourceIdentity { return m.Meta.identity(KindTCPMapping) }
func (m *TCPMapping) Metadata() ObjectMeta       { return m.Meta }
func (*TCPMapping) isResource()                  {}

// TLSContextSpec holds TLS material, both for termination (Hosts) and
// for origination (referenced by name from mappings)
type TLSContextSpec struct {
	Hosts          []string `json:"hosts,omitempty" yaml:"hosts"`
	CertChainFile  string   `json:"cert_chain_file,omitempty" yaml:"cert_chain_file"`
	PrivateKeyFile string   `json:"private_key_file,omitempty" yaml:"private_key_file"`
	CACertFile     string   `json:"ca_cert_file,omitempty" yaml:"ca_cert_file"`
	ALPNProtocols  []string `json:"alpn_protocols,omitempty" yaml:"alpn_protocols"`
	MinTLSVersion  string   `json:"min_tls_version,omitempty" yaml:"min_tls_version"` // "v1.0" .. "v1.3"
	SNI            string   `json:"sni,omitempty" yaml:"sni"`
}

// TLSContext is TLS material shared by listeners and upstream clusters
type TLSContext struct {
	Meta ObjectMeta     `json:"metadata"`
	Spec TLSContextSpec `json:"spec"`
}

func (t *TLSContext) Identity() ResourceIdentity { return t.Meta.identity(KindTLSContext) }
func (t *TLSContext) Metadata() ObjectMeta       { return t.Meta }
func (*TLSContext) isResource()                  {}

// ModuleSpec carries proxy-wide settings. Zero values mean "use default".
type ModuleSpec struct {
	ListenPort       int    `json:"listen_port,omitempty" yaml:"listen_port"`
	TLSPort          int    `json:"tls_port,omitempty" yaml:"tls_port"`
	AdminPort        int    `json:"admin_port,omitempty" yaml:"admin_port"`
	ConnectTimeoutMS int    `json:"connect_timeout_ms,omitempty" yaml:"connect_timeout_ms"`
	RouteTimeoutMS   int    `json:"route_timeout_ms,omitempty" yaml:"route_timeout_ms"`
	ServerName       string `json:"server_name,omitempty" yaml:"server_name"`
	LoadBalancer     string `json:"load_balancer,omitempty" yaml:"load_balancer"` // round_robin, least_request, random
}

// Module is the global policy object; any change to it forces a complete rebuild
type Module struct {
	Meta ObjectMeta `json:"metadata"`
	Spec ModuleSpec `json:"spec"`
}

func (m *Module) Identity() ResourceIdentity { return m.Meta.identity(KindModule) }
func (m *Module) Metadata() ObjectMeta       { return m.Meta }
func (*Module) isResource()                  {}
