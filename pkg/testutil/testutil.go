// Package testutil builds resources for tests.
package testutil

import (
	"github.com/cuemby/edgeplane/pkg/types"
)

// Meta returns metadata in the default apiVersion
func Meta(namespace, name string) types.ObjectMeta {
	if namespace == "" {
		namespace = types.DefaultNamespace
	}
	return types.ObjectMeta{
		APIVersion:        types.DefaultAPIVersion,
		Name:              name,
		Namespace:         namespace,
		CreationTimestamp: "2024-01-01T00:00:00Z",
	}
}

// MappingOption customizes a test Mapping
type MappingOption func(*types.Mapping)

// Mapping builds a Mapping in the default namespace
func Mapping(name, prefix, service string, opts ...MappingOption) *types.Mapping {
	m := &types.Mapping{
		Meta: Meta("", name),
		Spec: types.MappingSpec{Prefix: prefix, Service: service},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func InNamespace(ns string) MappingOption {
	return func(m *types.Mapping) { m.Meta.Namespace = ns }
}

func WithHost(host string) MappingOption {
	return func(m *types.Mapping) { m.Spec.Host = host }
}

func WithMethod(method string) MappingOption {
	return func(m *types.Mapping) { m.Spec.Method = method }
}

func WithWeight(w int) MappingOption {
	return func(m *types.Mapping) { m.Spec.Weight = &w }
}

func WithHeader(name, value string) MappingOption {
	return func(m *types.Mapping) {
		if m.Spec.Headers == nil {
			m.Spec.Headers = make(map[string]string)
		}
		m.Spec.Headers[name] = value
	}
}

func WithRewrite(rewrite string) MappingOption {
	return func(m *types.Mapping) { m.Spec.PrefixRewrite = &rewrite }
}

func WithTLS(context string) MappingOption {
	return func(m *types.Mapping) { m.Spec.TLS = context }
}

func WithPrecedence(p int) MappingOption {
	return func(m *types.Mapping) { m.Spec.Precedence = p }
}

func WithTimeout(ms int) MappingOption {
	return func(m *types.Mapping) { m.Spec.TimeoutMS = ms }
}

// TCPMapping builds a TCPMapping in the default namespace
func TCPMapping(name string, port int, service string) *types.TCPMapping {
	return &types.TCPMapping{
		Meta: Meta("", name),
		Spec: types.TCPMappingSpec{Port: port, Service: service},
	}
}

// TLSContext builds a terminating TLSContext for hosts
func TLSContext(name string, hosts ...string) *types.TLSContext {
	return &types.TLSContext{
		Meta: Meta("", name),
		Spec: types.TLSContextSpec{
			Hosts:          hosts,
			CertChainFile:  "/certs/" + name + "/tls.crt",
			PrivateKeyFile: "/certs/" + name + "/tls.key",
		},
	}
}

// Module builds a Module resource
func Module(name string, spec types.ModuleSpec) *types.Module {
	return &types.Module{Meta: Meta("", name), Spec: spec}
}
