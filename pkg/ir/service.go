package ir

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// Endpoint is a parsed service reference
type Endpoint struct {
	Host string
	Port int
	TLS  bool
}

// ParseService parses a service reference of the form [scheme://]host[:port].
// The https scheme implies upstream TLS and defaults the port to 443.
func ParseService(service string) (Endpoint, error) {
	s := strings.TrimSpace(service)
	if s == "" {
		return Endpoint{}, fmt.Errorf("service is empty")
	}

	var ep Endpoint
	if scheme, rest, ok := strings.Cut(s, "://"); ok {
		switch strings.ToLower(scheme) {
		case "http":
		case "https":
			ep.TLS = true
		default:
			return Endpoint{}, fmt.Errorf("service %q: unsupported scheme %q", service, scheme)
		}
		s = rest
	}

	if strings.ContainsAny(s, "/?# ") {
		return Endpoint{}, fmt.Errorf("service %q: unexpected path or whitespace", service)
	}

	host, portStr, err := splitHostPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("service %q: %w", service, err)
	}

	ep.Port = 80
	if ep.TLS {
		ep.Port = 443
	}
	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return Endpoint{}, fmt.Errorf("service %q: invalid port %q", service, portStr)
		}
		ep.Port = port
	}

	if ip := net.ParseIP(host); ip != nil {
		ep.Host = ip.String()
		return ep, nil
	}

	host = strings.ToLower(host)
	if errs := validation.IsDNS1123Subdomain(host); len(errs) > 0 {
		return Endpoint{}, fmt.Errorf("service %q: invalid host: %s", service, strings.Join(errs, "; "))
	}
	ep.Host = host
	return ep, nil
}

// splitHostPort separates host and optional port. IPv6 literals must be
// bracketed.
func splitHostPort(s string) (host, port string, err error) {
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return "", "", fmt.Errorf("missing ']' in address")
		}
		host = s[1:end]
		if net.ParseIP(host) == nil {
			return "", "", fmt.Errorf("invalid IPv6 literal %q", host)
		}
		rest := s[end+1:]
		switch {
		case rest == "":
			return host, "", nil
		case strings.HasPrefix(rest, ":"):
			return host, rest[1:], nil
		default:
			return "", "", fmt.Errorf("unexpected %q after address", rest)
		}
	}

	switch strings.Count(s, ":") {
	case 0:
		host = s
	case 1:
		host, port, _ = strings.Cut(s, ":")
		if port == "" {
			return "", "", fmt.Errorf("empty port")
		}
	default:
		return "", "", fmt.Errorf("IPv6 literal must be enclosed in brackets")
	}
	if host == "" {
		return "", "", fmt.Errorf("missing host")
	}
	return host, port, nil
}
