package ir

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// MaxClusterNameLength is the longest cluster name emitted. Longer
// natural names are cut and suffixed with a hash of the full name.
const MaxClusterNameLength = 60

const hashSuffixLength = 16

// ClusterName derives the rendered cluster name for a logical identity.
// The result depends only on the identity, so a cached and a freshly
// compiled cluster always agree.
func ClusterName(id ClusterID) string {
	var b strings.Builder
	b.WriteString("cluster_")
	b.WriteString(sanitize(id.Service))
	if id.TLS != "" {
		b.WriteByte('_')
		b.WriteString(sanitize(id.TLS))
	}
	b.WriteByte('_')
	b.WriteString(sanitize(id.Namespace))

	return shorten(b.String(), MaxClusterNameLength)
}

// shorten truncates name to max characters, replacing the tail with a
// dash and the hex xxhash of the untruncated name
func shorten(name string, max int) string {
	if len(name) <= max {
		return name
	}
	sum := fmt.Sprintf("%016x", xxhash.Sum64String(name))
	keep := max - hashSuffixLength - 1
	return name[:keep] + "-" + sum
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// groupID hashes every field that defines a group's match
func groupID(host, method, prefix string, headers []string, precedence int) string {
	d := xxhash.New()
	for _, part := range []string{host, method, prefix} {
		_, _ = d.WriteString(part)
		_, _ = d.WriteString("\x00")
	}
	for _, h := range headers {
		_, _ = d.WriteString(h)
		_, _ = d.WriteString("\x00")
	}
	_, _ = fmt.Fprintf(d, "%d", precedence)
	return fmt.Sprintf("%016x", d.Sum64())
}
