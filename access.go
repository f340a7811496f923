package auth

import (
	"sort"
	"strings"
)

// Default paths used by the decision engine. Applications override them via
// Config; tests rely on the defaults.
const (
	DefaultSignInPath    = "/auth"
	DefaultDashboardPath = "/app/dashboard"
	DefaultBillingPath   = "/billing"
)

// Route declares the access requirements of a navigable surface.
type Route struct {
	Path string

	// Public allows any caller, authenticated or not.
	Public bool

	// RequireAnon routes (sign-in, sign-up) bounce authenticated callers
	// to the dashboard.
	RequireAnon bool

	// AllowedRoles restricts the route to a role set. Empty means any
	// authenticated role.
	AllowedRoles []Role

	// RequireActiveBilling gates the route on the owner's billing status.
	RequireActiveBilling bool
}

// Decision is the outcome of an access evaluation.
type Decision struct {
	allowed  bool
	redirect string
}

// Allowed reports whether rendering may proceed.
func (d Decision) Allowed() bool { return d.allowed }

// Redirect returns the target path for a denied decision.
func (d Decision) Redirect() string { return d.redirect }

// Allow is the positive decision.
func Allow() Decision { return Decision{allowed: true} }

// RedirectTo denies access and names the destination.
func RedirectTo(path string) Decision { return Decision{redirect: path} }

// AccessPolicy holds the redirect targets the decision table resolves to.
type AccessPolicy struct {
	SignInPath    string
	DashboardPath string
	BillingPath   string
}

// DefaultAccessPolicy returns the stock redirect targets.
func DefaultAccessPolicy() AccessPolicy {
	return AccessPolicy{
		SignInPath:    DefaultSignInPath,
		DashboardPath: DefaultDashboardPath,
		BillingPath:   DefaultBillingPath,
	}
}

// Decide evaluates the access table for one identity/route combination.
// It is pure and total: every combination yields exactly one outcome, no
// I/O, re-evaluated on every navigation and identity change. The rules run
// strictly in order:
//
//  1. public route                                  -> allow
//  2. anon-only route, identity present             -> redirect dashboard
//  3. protected route, identity absent              -> redirect sign-in
//  4. role set declared, role not a member          -> redirect dashboard
//  5. billing-gated, owner with inactive billing    -> redirect billing
//  6. otherwise                                     -> allow
func (p AccessPolicy) Decide(identity *Identity, route Route) Decision {
	if route.Public {
		return Allow()
	}

	if route.RequireAnon {
		if identity != nil {
			return RedirectTo(p.DashboardPath)
		}
		return Allow()
	}

	if identity == nil {
		return RedirectTo(p.SignInPath)
	}

	if len(route.AllowedRoles) > 0 && !roleInSet(identity.Role, route.AllowedRoles) {
		return RedirectTo(p.DashboardPath)
	}

	if route.RequireActiveBilling && identity.Role == RoleOwner && identity.BillingStatus != BillingActive {
		return RedirectTo(p.BillingPath)
	}

	return Allow()
}

// Decide evaluates the table with the default policy.
func Decide(identity *Identity, route Route) Decision {
	return DefaultAccessPolicy().Decide(identity, route)
}

func roleInSet(role Role, set []Role) bool {
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}

// RouteSet resolves request paths to route declarations by longest matching
// prefix, so every protected surface consults the same table instead of
// re-implementing role checks ad hoc.
type RouteSet struct {
	routes   []Route
	fallback Route
}

// NewRouteSet builds a resolver. The fallback applies to unregistered
// paths; by default it requires authentication.
func NewRouteSet(routes ...Route) *RouteSet {
	rs := &RouteSet{
		routes:   append([]Route(nil), routes...),
		fallback: Route{},
	}

	// longest prefix wins
	sort.SliceStable(rs.routes, func(i, j int) bool {
		return len(rs.routes[i].Path) > len(rs.routes[j].Path)
	})

	return rs
}

// WithFallback overrides the route applied to unregistered paths.
func (rs *RouteSet) WithFallback(route Route) *RouteSet {
	rs.fallback = route
	return rs
}

// Resolve returns the declaration governing the given path.
func (rs *RouteSet) Resolve(path string) Route {
	for _, route := range rs.routes {
		if route.Path == path || strings.HasPrefix(path, strings.TrimSuffix(route.Path, "/")+"/") {
			return route
		}
	}
	out := rs.fallback
	out.Path = path
	return out
}
