package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/edgeplane/pkg/testutil"
	"github.com/cuemby/edgeplane/pkg/types"
)

func TestSelectHost(t *testing.T) {
	patterns := []string{"example.com", "*.example.com", "*.api.example.com"}

	tests := []struct {
		name string
		host string
		want string
	}{
		{"exact match", "example.com", "example.com"},
		{"exact match with port", "example.com:8080", "example.com"},
		{"case insensitive", "EXAMPLE.com", "example.com"},
		{"wildcard subdomain", "www.example.com", "*.example.com"},
		{"longest wildcard wins", "v1.api.example.com", "*.api.example.com"},
		{"wildcard does not match root", "api.example.org", ""},
		{"unknown host falls back", "other.com", ""},
		{"empty host", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selectHost(patterns, tt.host))
		})
	}
}

func TestGraphMatch(t *testing.T) {
	snap := types.NewSnapshot(
		testutil.Mapping("root", "/", "web"),
		testutil.Mapping("api", "/api/", "api"),
		testutil.Mapping("api-v2", "/api/v2/", "api-v2"),
		testutil.Mapping("api-post", "/api/", "api-writer", testutil.WithMethod("post")),
		testutil.Mapping("canary", "/api/", "api-canary", testutil.WithHeader("X-Canary", "1")),
		testutil.Mapping("admin", "/", "admin", testutil.WithHost("admin.example.com")),
		testutil.Mapping("urgent", "/", "urgent", testutil.WithPrecedence(10), testutil.WithHeader("x-urgent", "yes")),
	)
	g := compileFresh(t, snap)
	require.Empty(t, g.Errors)

	tests := []struct {
		name    string
		req     Request
		service string
	}{
		{"root", Request{Host: "example.com", Path: "/index.html", Method: "GET"}, "web"},
		{"longest prefix", Request{Host: "example.com", Path: "/api/v2/users", Method: "GET"}, "api-v2"},
		{"prefix", Request{Host: "example.com", Path: "/api/users", Method: "GET"}, "api"},
		{"method specific", Request{Host: "example.com", Path: "/api/users", Method: "POST"}, "api-writer"},
		{"header specific", Request{Host: "example.com", Path: "/api/x", Method: "GET", Headers: map[string]string{"X-Canary": "1"}}, "api-canary"},
		{"host specific", Request{Host: "admin.example.com", Path: "/", Method: "GET"}, "admin"},
		{"host falls through to shared routes", Request{Host: "admin.example.com", Path: "/api/users", Method: "GET"}, "api"},
		{"precedence first", Request{Host: "example.com", Path: "/api/v2/", Method: "GET", Headers: map[string]string{"x-urgent": "yes"}}, "urgent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group, ok := g.Match(tt.req)
			require.True(t, ok)
			assert.Equal(t, tt.service, group.Members[0].Service)
		})
	}
}

func TestGraphMatchNoRoute(t *testing.T) {
	g := compileFresh(t, types.NewSnapshot(testutil.Mapping("api", "/api/", "api")))

	_, ok := g.Match(Request{Host: "example.com", Path: "/other"})
	assert.False(t, ok)
}

func TestGraphHosts(t *testing.T) {
	g := compileFresh(t, types.NewSnapshot(
		testutil.Mapping("b", "/", "b", testutil.WithHost("b.example.com")),
		testutil.Mapping("a", "/", "a", testutil.WithHost("A.example.com")),
		testutil.Mapping("any", "/x/", "any", testutil.WithHost("*")),
	))

	assert.Equal(t, []string{"a.example.com", "b.example.com"}, g.Hosts())
}
