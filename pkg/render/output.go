package render

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

var marshaler = protojson.MarshalOptions{Multiline: true, Indent: "  ", UseProtoNames: true}

// BootstrapJSON returns the bootstrap document in the format the proxy
// reads from disk
func (c *Config) BootstrapJSON() ([]byte, error) {
	return marshaler.Marshal(c.Bootstrap)
}

// dynamic is the JSON shape of the ADS resources
type dynamic struct {
	Clusters   []json.RawMessage `json:"clusters"`
	Listeners  []json.RawMessage `json:"listeners"`
	Routes     []json.RawMessage `json:"routes"`
	ClusterMap map[string]string `json:"cluster_map"`
}

// DynamicJSON returns the resources served over ADS as one JSON document
func (c *Config) DynamicJSON() ([]byte, error) {
	out := dynamic{ClusterMap: c.ClusterMap}
	var err error
	if out.Clusters, err = marshalAll(c.Clusters); err != nil {
		return nil, fmt.Errorf("failed to marshal clusters: %w", err)
	}
	if out.Listeners, err = marshalAll(c.Listeners); err != nil {
		return nil, fmt.Errorf("failed to marshal listeners: %w", err)
	}
	if out.Routes, err = marshalAll(c.Routes); err != nil {
		return nil, fmt.Errorf("failed to marshal routes: %w", err)
	}
	return json.MarshalIndent(out, "", "  ")
}

func marshalAll[T proto.Message](msgs []T) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		b, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(m)
		if err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(b))
	}
	return out, nil
}

// Equal reports whether two configs are semantically identical
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	if !proto.Equal(c.Bootstrap, other.Bootstrap) {
		return false
	}
	if !equalAll(c.Clusters, other.Clusters) || !equalAll(c.Listeners, other.Listeners) || !equalAll(c.Routes, other.Routes) {
		return false
	}
	if len(c.ClusterMap) != len(other.ClusterMap) {
		return false
	}
	for k, v := range c.ClusterMap {
		if other.ClusterMap[k] != v {
			return false
		}
	}
	return true
}

func equalAll[T proto.Message](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !proto.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Fingerprint is a stable digest of the dynamic resources, used as the
// xDS snapshot version
func (c *Config) Fingerprint() (string, error) {
	b, err := c.deterministic()
	if err != nil {
		return "", err
	}
	return fingerprint(b), nil
}

func (c *Config) deterministic() ([]byte, error) {
	var buf bytes.Buffer
	opts := proto.MarshalOptions{Deterministic: true}
	write := func(m proto.Message) error {
		b, err := opts.Marshal(m)
		if err != nil {
			return err
		}
		buf.Write(b)
		buf.WriteByte(0)
		return nil
	}
	for _, m := range c.Clusters {
		if err := write(m); err != nil {
			return nil, err
		}
	}
	for _, m := range c.Listeners {
		if err := write(m); err != nil {
			return nil, err
		}
	}
	for _, m := range c.Routes {
		if err := write(m); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func fingerprint(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}
