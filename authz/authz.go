// Package authz is the role gate. It answers whether the current session may
// see a screen or run a command, based only on the roles in the session's
// token. Nothing is cached: callers evaluate the gate against a fresh
// snapshot every time, so a new sign-in takes effect immediately.
package authz

import (
	"sort"
	"strings"

	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/session"
	"google.golang.org/grpc/codes"
)

// Role is a role tag issued by the backend. Comparisons are case-sensitive.
type Role string

// Roles used by the backend. The casing is the backend's.
const (
	RoleAdmin  = Role("Admin")
	RoleLeader = Role("leader")
	RoleMember = Role("member")
)

// RoleAuthenticated is a pseudo-role satisfied by any signed-in user.
const RoleAuthenticated = Role("")

// AllRoles lists the roles an administrator can grant.
var AllRoles = []Role{RoleAdmin, RoleLeader, RoleMember}

var (
	ErrUnauthenticated = errors.NewC("authz: sign in required", codes.Unauthenticated).
				WithPublicMessage("You need to sign in first.")
	ErrForbidden = errors.NewC("authz: role required", codes.PermissionDenied).
			WithPublicMessage("You don't have access to this.")
)

// CanAccess reports whether s is authenticated and carries the required role.
// Loading and Uninitialized sessions never have access.
func CanAccess(s session.Session, required Role) bool {
	if !s.IsAuthenticated() {
		return false
	}
	if required == RoleAuthenticated {
		return true
	}
	return s.Identity.Roles.Contains(string(required))
}

// Require is CanAccess as an error, distinguishing a missing session from a
// missing role.
func Require(s session.Session, required Role) error {
	if !s.IsAuthenticated() {
		return errors.Mark(ErrUnauthenticated, 1)
	}
	if !CanAccess(s, required) {
		return errors.Mark(ErrForbidden, 1).Append("requires " + string(required))
	}
	return nil
}

// Decision is the outcome of a gate check.
type Decision int

const (
	// Render the screen.
	Allow Decision = iota
	// Redirect to sign in.
	Login
	// Signed in but lacking the role.
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "ALLOW"
	case Login:
		return "LOGIN"
	case Forbidden:
		return "FORBIDDEN"
	}
	return "UNKNOWN"
}

// Rule protects every route under Prefix with Role.
type Rule struct {
	Prefix string
	Role   Role
}

// Gate maps routes to required roles.
type Gate struct {
	rules []Rule
}

// NewGate returns a gate with no rules. All routes are public until rules are
// added.
func NewGate(rules ...Rule) *Gate {
	g := &Gate{}
	for _, r := range rules {
		g.WithRule(r.Prefix, r.Role)
	}
	return g
}

// DefaultGate protects the routes of the escala screens and commands.
func DefaultGate() *Gate {
	return NewGate().
		WithRule("/admin", RoleAdmin).
		WithRule("/users", RoleAdmin).
		WithRule("/ministries", RoleAdmin).
		WithRule("/availability", RoleAuthenticated).
		WithRule("/availability/offer", RoleLeader).
		WithRule("/leader", RoleLeader).
		WithRule("/schedule", RoleAuthenticated).
		WithRule("/whoami", RoleAuthenticated)
}

// WithRule adds or replaces the rule for prefix.
func (g *Gate) WithRule(prefix string, role Role) *Gate {
	prefix = normalize(prefix)
	for i, r := range g.rules {
		if r.Prefix == prefix {
			g.rules[i].Role = role
			return g
		}
	}
	g.rules = append(g.rules, Rule{Prefix: prefix, Role: role})
	// Longest prefix first.
	sort.SliceStable(g.rules, func(i, j int) bool {
		return len(g.rules[i].Prefix) > len(g.rules[j].Prefix)
	})
	return g
}

// Rules returns a copy of the rules, longest prefix first.
func (g *Gate) Rules() []Rule {
	return append([]Rule(nil), g.rules...)
}

// Match returns the most specific rule for route.
func (g *Gate) Match(route string) (Rule, bool) {
	route = normalize(route)
	for _, r := range g.rules {
		if route == r.Prefix || strings.HasPrefix(route, r.Prefix+"/") || r.Prefix == "/" {
			return r, true
		}
	}
	return Rule{}, false
}

// Decide evaluates route for s. Routes without a rule are public.
func (g *Gate) Decide(s session.Session, route string) Decision {
	rule, ok := g.Match(route)
	if !ok {
		return Allow
	}
	if !s.IsAuthenticated() {
		return Login
	}
	if !CanAccess(s, rule.Role) {
		return Forbidden
	}
	return Allow
}

// Check is Decide as an error.
func (g *Gate) Check(s session.Session, route string) error {
	rule, ok := g.Match(route)
	if !ok {
		return nil
	}
	if err := Require(s, rule.Role); err != nil {
		return errors.WrapPrefix(err, normalize(route), 0)
	}
	return nil
}

func normalize(route string) string {
	route = "/" + strings.Trim(strings.TrimSpace(route), "/")
	return route
}
