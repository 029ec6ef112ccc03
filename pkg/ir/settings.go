package ir

import (
	"fmt"

	"github.com/cuemby/edgeplane/pkg/types"
)

// Defaults applied when no Module overrides them
const (
	DefaultListenPort       = 8080
	DefaultTLSPort          = 8443
	DefaultAdminPort        = 8001
	DefaultConnectTimeoutMS = 3000
	DefaultRouteTimeoutMS   = 15000
	DefaultLoadBalancer     = "round_robin"
)

var loadBalancers = map[string]bool{
	"round_robin":   true,
	"least_request": true,
	"random":        true,
	"ring_hash":     true,
}

// DefaultSettings returns the settings used without a Module
func DefaultSettings() Settings {
	return Settings{
		ListenPort:       DefaultListenPort,
		TLSPort:          DefaultTLSPort,
		AdminPort:        DefaultAdminPort,
		ConnectTimeoutMS: DefaultConnectTimeoutMS,
		RouteTimeoutMS:   DefaultRouteTimeoutMS,
		LoadBalancer:     DefaultLoadBalancer,
	}
}

// compileSettings applies the first Module over the defaults. Modules are
// global so they are compiled on every build and never cached.
func (c *compiler) compileSettings(modules []types.Resource) {
	c.settings = DefaultSettings()

	for _, r := range modules {
		m := r.(*types.Module)
		id := m.Identity()

		if c.settings.Source != "" {
			c.fail(id, "duplicate Module, already using %s", c.settings.Source)
			continue
		}

		s, err := moduleSettings(m.Spec)
		if err != nil {
			c.fail(id, "%v", err)
			continue
		}
		s.Source = id.String()
		c.settings = s
	}
}

func moduleSettings(spec types.ModuleSpec) (Settings, error) {
	s := DefaultSettings()

	ports := []struct {
		name  string
		value int
		dst   *int
	}{
		{"listen_port", spec.ListenPort, &s.ListenPort},
		{"tls_port", spec.TLSPort, &s.TLSPort},
		{"admin_port", spec.AdminPort, &s.AdminPort},
	}
	for _, p := range ports {
		if p.value == 0 {
			continue
		}
		if p.value < 1 || p.value > 65535 {
			return Settings{}, fmt.Errorf("%s %d out of range", p.name, p.value)
		}
		*p.dst = p.value
	}
	if s.ListenPort == s.TLSPort || s.ListenPort == s.AdminPort || s.TLSPort == s.AdminPort {
		return Settings{}, fmt.Errorf("listen, tls and admin ports must differ")
	}

	if spec.ConnectTimeoutMS < 0 || spec.RouteTimeoutMS < 0 {
		return Settings{}, fmt.Errorf("timeouts must not be negative")
	}
	if spec.ConnectTimeoutMS > 0 {
		s.ConnectTimeoutMS = spec.ConnectTimeoutMS
	}
	if spec.RouteTimeoutMS > 0 {
		s.RouteTimeoutMS = spec.RouteTimeoutMS
	}

	if spec.LoadBalancer != "" {
		if !loadBalancers[spec.LoadBalancer] {
			return Settings{}, fmt.Errorf("unknown load_balancer %q", spec.LoadBalancer)
		}
		s.LoadBalancer = spec.LoadBalancer
	}
	s.ServerName = spec.ServerName
	return s, nil
}

// reservedPorts lists the listener ports owned by the settings
func (s Settings) reservedPorts() map[int]string {
	return map[int]string{
		s.ListenPort: "listen_port",
		s.TLSPort:    "tls_port",
		s.AdminPort:  "admin_port",
	}
}
