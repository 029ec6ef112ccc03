package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/cuemby/edgeplane/pkg/types"
)

// manifest is the envelope shared by every resource document
type manifest struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		Name              string            `yaml:"name"`
		Namespace         string            `yaml:"namespace"`
		CreationTimestamp string            `yaml:"creationTimestamp"`
		Labels            map[string]string `yaml:"labels"`
	} `yaml:"metadata"`
	Spec yaml.Node `yaml:"spec"`
}

// Decode parses a multi-document YAML stream into resources. Empty
// documents are skipped. An unknown kind or an invalid name fails the
// whole stream.
func Decode(data []byte) ([]types.Resource, error) {
	var first error
	out := decodeStream(data, func(err error) {
		if first == nil {
			first = err
		}
	})
	if first != nil {
		return nil, first
	}
	return out, nil
}

// decodeStream decodes every document it can and reports the others to
// onError. A YAML syntax error ends the stream because the decoder cannot
// find the next document boundary after it.
func decodeStream(data []byte, onError func(err error)) []types.Resource {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var out []types.Resource
	for doc := 1; ; doc++ {
		var m manifest
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			onError(fmt.Errorf("document %d: %w", doc, err))
			return out
		}
		if m.Kind == "" && m.Metadata.Name == "" {
			continue
		}

		r, err := decodeResource(&m)
		if err != nil {
			onError(fmt.Errorf("document %d: %w", doc, err))
			continue
		}
		out = append(out, r)
	}
}

func decodeResource(m *manifest) (types.Resource, error) {
	meta, err := objectMeta(m)
	if err != nil {
		return nil, err
	}

	switch types.Kind(m.Kind) {
	case types.KindMapping:
		r := &types.Mapping{Meta: meta}
		return r, decodeSpec(m, &r.Spec)
	case types.KindTCPMapping:
		r := &types.TCPMapping{Meta: meta}
		return r, decodeSpec(m, &r.Spec)
	case types.KindTLSContext:
		r := &types.TLSContext{Meta: meta}
		return r, decodeSpec(m, &r.Spec)
	case types.KindModule:
		r := &types.Module{Meta: meta}
		return r, decodeSpec(m, &r.Spec)
	default:
		return nil, fmt.Errorf("%s: unknown kind %q", meta.Name, m.Kind)
	}
}

func objectMeta(m *manifest) (types.ObjectMeta, error) {
	meta := types.ObjectMeta{
		APIVersion:        strings.TrimSpace(m.APIVersion),
		Name:              m.Metadata.Name,
		Namespace:         m.Metadata.Namespace,
		CreationTimestamp: m.Metadata.CreationTimestamp,
		Labels:            m.Metadata.Labels,
	}
	if meta.APIVersion == "" {
		meta.APIVersion = types.DefaultAPIVersion
	}
	if meta.Namespace == "" {
		meta.Namespace = types.DefaultNamespace
	}

	if meta.Name == "" {
		return meta, fmt.Errorf("%s without metadata.name", m.Kind)
	}
	if errs := validation.IsDNS1123Subdomain(meta.Name); len(errs) > 0 {
		return meta, fmt.Errorf("%s %q: invalid name: %s", m.Kind, meta.Name, strings.Join(errs, "; "))
	}
	if errs := validation.IsDNS1123Label(meta.Namespace); len(errs) > 0 {
		return meta, fmt.Errorf("%s %q: invalid namespace %q: %s", m.Kind, meta.Name, meta.Namespace, strings.Join(errs, "; "))
	}
	return meta, nil
}

func decodeSpec(m *manifest, spec any) error {
	if m.Spec.Kind == 0 {
		return nil
	}
	if err := m.Spec.Decode(spec); err != nil {
		return fmt.Errorf("%s %s/%s: invalid spec: %w", m.Kind, m.Metadata.Namespace, m.Metadata.Name, err)
	}
	return nil
}
