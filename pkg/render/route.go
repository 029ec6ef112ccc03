package render

import (
	"time"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	routev3 "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	matcherv3 "github.com/envoyproxy/go-control-plane/envoy/type/matcher/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/cuemby/edgeplane/pkg/ir"
)

const (
	catchAllHost      = "*"
	trafficShiftKey   = "routing.traffic_shift."
	methodHeaderMatch = ":method"
)

// routeConfiguration assembles one virtual host per host pattern plus a
// catch-all. Host-less groups are served by every virtual host, so they
// are appended after the host's own groups in route order.
func (r *renderer) routeConfiguration() (*routev3.RouteConfiguration, error) {
	routes := make(map[string][]*routev3.Route, len(r.graph.Groups))
	hostless := false
	for _, g := range r.graph.Groups {
		rs, err := fragment(r, g.Key, fragmentRoutes, func() ([]*routev3.Route, error) {
			return groupRoutes(g), nil
		})
		if err != nil {
			return nil, err
		}
		routes[g.ID] = rs
		hostless = hostless || g.Host == ""
	}

	rc := &routev3.RouteConfiguration{Name: RouteConfigName}
	for _, host := range r.graph.Hosts() {
		rc.VirtualHosts = append(rc.VirtualHosts, &routev3.VirtualHost{
			Name:    vhostName(host),
			Domains: []string{host},
			Routes:  r.vhostRoutes(routes, host),
		})
	}
	if hostless {
		rc.VirtualHosts = append(rc.VirtualHosts, &routev3.VirtualHost{
			Name:    vhostName(catchAllHost),
			Domains: []string{catchAllHost},
			Routes:  r.vhostRoutes(routes, ""),
		})
	}
	return rc, nil
}

func (r *renderer) vhostRoutes(routes map[string][]*routev3.Route, host string) []*routev3.Route {
	var out []*routev3.Route
	for _, g := range r.graph.Groups {
		if g.Host == "" || g.Host == host {
			out = append(out, routes[g.ID]...)
		}
	}
	return out
}

func vhostName(host string) string {
	if host == catchAllHost {
		return "edge_any"
	}
	return "edge_" + sanitizeName(host)
}

// groupRoutes renders one route per member. Envoy draws a single random
// value per request, so cumulative runtime fractions split traffic by the
// member weights. The closing member needs no fraction.
func groupRoutes(g *ir.Group) []*routev3.Route {
	out := make([]*routev3.Route, 0, len(g.Members))
	for _, m := range g.Members {
		match := &routev3.RouteMatch{
			PathSpecifier: &routev3.RouteMatch_Prefix{Prefix: g.Prefix},
			Headers:       headerMatchers(g),
		}
		if m.Threshold < 100 {
			match.RuntimeFraction = &corev3.RuntimeFractionalPercent{
				DefaultValue: &typev3.FractionalPercent{
					Numerator:   uint32(m.Threshold),
					Denominator: typev3.FractionalPercent_HUNDRED,
				},
				RuntimeKey: trafficShiftKey + g.ID,
			}
		}

		action := &routev3.RouteAction{
			ClusterSpecifier: &routev3.RouteAction_Cluster{Cluster: m.ClusterName},
			Timeout:          durationpb.New(time.Duration(m.TimeoutMS) * time.Millisecond),
		}
		if m.PrefixRewrite != nil {
			action.PrefixRewrite = *m.PrefixRewrite
		}

		out = append(out, &routev3.Route{
			Name:   m.Namespace + "/" + m.Name,
			Match:  match,
			Action: &routev3.Route_Route{Route: action},
		})
	}
	return out
}

func headerMatchers(g *ir.Group) []*routev3.HeaderMatcher {
	var out []*routev3.HeaderMatcher
	if g.Method != "" {
		out = append(out, exactHeader(methodHeaderMatch, g.Method))
	}
	for _, h := range g.Headers {
		out = append(out, exactHeader(h.Name, h.Value))
	}
	return out
}

func exactHeader(name, value string) *routev3.HeaderMatcher {
	return &routev3.HeaderMatcher{
		Name: name,
		HeaderMatchSpecifier: &routev3.HeaderMatcher_StringMatch{
			StringMatch: &matcherv3.StringMatcher{
				MatchPattern: &matcherv3.StringMatcher_Exact{Exact: value},
			},
		},
	}
}
