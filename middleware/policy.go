package middleware

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	bootpractice "github.com/Kascald/bootPractice-2"
)

// Access is what a rule demands of the request's principal.
type Access int

const (
	AccessPublic Access = iota
	AccessAuthenticated
	AccessRole
	AccessAuthority
	AccessDenied
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "permitAll"
	case AccessAuthenticated:
		return "authenticated"
	case AccessRole:
		return "hasRole"
	case AccessAuthority:
		return "hasAuthority"
	case AccessDenied:
		return "denyAll"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating a Policy for one request.
type Decision int

const (
	Allow Decision = iota
	Unauthenticated
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "forbidden"
	}
}

// RolePrefix is prepended to a HasRole name when comparing it with the
// principal's role.
const RolePrefix = "ROLE_"

// Rule matches request paths against glob patterns and optionally restricts
// the HTTP methods it applies to.
type Rule struct {
	Patterns []string
	Methods  []string
	Access   Access
	Role     string
}

// Public lets every request through, with or without a principal.
// Public lets any request through, with or without a principal.
func Public(patterns ...string) Rule {
	return Rule{Patterns: patterns, Access: AccessPublic}
}

// Authenticated requires a principal of any role.
func Authenticated(patterns ...string) Rule {
	return Rule{Patterns: patterns, Access: AccessAuthenticated}
}

// HasRole requires the principal's role to equal role or RolePrefix+role.
func HasRole(role string, patterns ...string) Rule {
	return Rule{Patterns: patterns, Access: AccessRole, Role: strings.TrimPrefix(role, RolePrefix)}
}

// HasAuthority requires the principal's role to equal authority exactly.
func HasAuthority(authority string, patterns ...string) Rule {
	return Rule{Patterns: patterns, Access: AccessAuthority, Role: authority}
}

// DenyAll rejects every request, authenticated or not.
func DenyAll(patterns ...string) Rule {
	return Rule{Patterns: patterns, Access: AccessDenied}
}

// ForMethods narrows the rule to the given HTTP methods.
func (r Rule) ForMethods(methods ...string) Rule {
	r.Methods = make([]string, 0, len(methods))
	for _, m := range methods {
		r.Methods = append(r.Methods, strings.ToUpper(m))
	}
	return r
}

func (r Rule) matches(method, path string) bool {
	if len(r.Methods) > 0 && !slices.Contains(r.Methods, method) {
		return false
	}
	for _, p := range r.Patterns {
		if matchPattern(p, path) {
			return true
		}
	}
	return false
}

func (r Rule) permits(p *bootpractice.Principal) Decision {
	switch r.Access {
	case AccessPublic:
		return Allow
	case AccessDenied:
		if p == nil {
			return Unauthenticated
		}
		return Forbidden
	}
	if p == nil {
		return Unauthenticated
	}
	switch r.Access {
	case AccessRole:
		if p.Role == r.Role || p.Role == RolePrefix+r.Role {
			return Allow
		}
		return Forbidden
	case AccessAuthority:
		if p.Role == r.Role {
			return Allow
		}
		return Forbidden
	default:
		return Allow
	}
}

// matchPattern treats a trailing "/**" as also matching the bare prefix, so
// "/user/**" covers "/user".
func matchPattern(pattern, path string) bool {
	if ok, _ := doublestar.Match(pattern, path); ok {
		return true
	}
	if prefix, found := strings.CutSuffix(pattern, "/**"); found {
		return path == prefix
	}
	return false
}

// Policy evaluates rules in order; the first matching rule decides. A
// request no rule matches must be authenticated.
type Policy struct {
	rules []Rule
}

// NewPolicy validates every pattern up front.
func NewPolicy(rules ...Rule) (*Policy, error) {
	for i, r := range rules {
		if len(r.Patterns) == 0 {
			return nil, fmt.Errorf("rule %d: no patterns", i)
		}
		for _, p := range r.Patterns {
			if !strings.HasPrefix(p, "/") || !doublestar.ValidatePattern(p) {
				return nil, fmt.Errorf("rule %d: invalid pattern %q", i, p)
			}
		}
		if (r.Access == AccessRole || r.Access == AccessAuthority) && r.Role == "" {
			return nil, fmt.Errorf("rule %d: %s needs a role", i, r.Access)
		}
	}
	return &Policy{rules: slices.Clone(rules)}, nil
}

// MustPolicy is NewPolicy for static rule sets.
func MustPolicy(rules ...Rule) *Policy {
	p, err := NewPolicy(rules...)
	if err != nil {
		panic(err)
	}
	return p
}

// Decide returns the decision for a request. p is nil for anonymous
// requests.
func (pol *Policy) Decide(method, path string, p *bootpractice.Principal) Decision {
	if r, ok := pol.match(method, path); ok {
		return r.permits(p)
	}
	if p == nil {
		return Unauthenticated
	}
	return Allow
}

// IsPublic reports whether the first rule matching the request is Public.
func (pol *Policy) IsPublic(method, path string) bool {
	if pol == nil {
		return false
	}
	r, ok := pol.match(method, path)
	return ok && r.Access == AccessPublic
}

func (pol *Policy) match(method, path string) (Rule, bool) {
	for _, r := range pol.rules {
		if r.matches(method, path) {
			return r, true
		}
	}
	return Rule{}, false
}

// DefaultRules is the stock rule set: the login, signup, token and result
// endpoints and static assets are public, /roleTest/** and /metrics are
// admin only, and everything else needs a valid access token.
func DefaultRules() []Rule {
	return []Rule{
		Public(
			"/user/api/login", "/", "/user/api/signup", "/user/**", "/user/signup",
			"/login", "/user/result", "/result",
			"/css/**", "/img/**", "/js/**", "/favicon.ico",
			"/reissue", "/logout", "/healthz",
		),
		Public("/**").ForMethods(http.MethodOptions),
		HasRole("ADMIN", "/roleTest/**", "/metrics"),
	}
}

// RuleSpec is the configuration form of a Rule. Access is one of
// permitAll, authenticated, denyAll, hasRole:<ROLE> or hasAuthority:<NAME>.
type RuleSpec struct {
	Patterns []string `mapstructure:"patterns"`
	Methods  []string `mapstructure:"methods"`
	Access   string   `mapstructure:"access"`
}

// ParseRules converts configured rule specs.
func ParseRules(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, s := range specs {
		var r Rule
		kind, arg, _ := strings.Cut(strings.TrimSpace(s.Access), ":")
		switch kind {
		case "permitAll":
			r = Public(s.Patterns...)
		case "authenticated":
			r = Authenticated(s.Patterns...)
		case "denyAll":
			r = DenyAll(s.Patterns...)
		case "hasRole":
			r = HasRole(arg, s.Patterns...)
		case "hasAuthority":
			r = HasAuthority(arg, s.Patterns...)
		default:
			return nil, fmt.Errorf("rule %d: unknown access %q", i, s.Access)
		}
		if len(s.Methods) > 0 {
			r = r.ForMethods(s.Methods...)
		}
		rules = append(rules, r)
	}
	return rules, nil
}
