// Package policy compiles the route-policy table used by the authorization
// gate. A Table is immutable once built and safe for concurrent use.
package policy

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
)

// DefaultWritePermission is required for mutating methods on routes that do
// not name their own permission or opt out with AllowWrites.
const DefaultWritePermission = "write"

var ErrInvalidPolicy = errors.New("policy: invalid route policy")

type prefixRule struct {
	base   string // pattern without the trailing "/*"
	policy domain.RoutePolicy
}

type wildcardRule struct {
	segments []string
	policy   domain.RoutePolicy
}

// Table resolves request paths to route policies in one pass: exact match,
// then the longest "/*" prefix, then segment wildcards in declaration order.
type Table struct {
	exact     map[string]domain.RoutePolicy
	prefixes  []prefixRule
	wildcards []wildcardRule
	fallback  domain.RoutePolicy
}

// Compile validates policies and builds a Table. fallback applies to paths no
// policy matches.
func Compile(policies []domain.RoutePolicy, fallback domain.RoutePolicy) (*Table, error) {
	fallback, err := normalize(fallback, true)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}

	t := &Table{
		exact:    make(map[string]domain.RoutePolicy),
		fallback: fallback,
	}
	seen := make(map[string]struct{}, len(policies))

	for _, p := range policies {
		p, err := normalize(p, false)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p.Pattern]; dup {
			return nil, fmt.Errorf("%w: duplicate pattern %q", ErrInvalidPolicy, p.Pattern)
		}
		seen[p.Pattern] = struct{}{}

		base, isPrefix := strings.CutSuffix(p.Pattern, "/*")
		switch {
		case !strings.Contains(p.Pattern, "*"):
			t.exact[p.Pattern] = p
		case isPrefix && !strings.Contains(base, "*"):
			t.prefixes = append(t.prefixes, prefixRule{base: base, policy: p})
		default:
			t.wildcards = append(t.wildcards, wildcardRule{segments: split(p.Pattern), policy: p})
		}
	}

	sort.SliceStable(t.prefixes, func(i, j int) bool {
		return len(t.prefixes[i].base) > len(t.prefixes[j].base)
	})

	return t, nil
}

// MustCompile is Compile that panics, for static tables.
func MustCompile(policies []domain.RoutePolicy, fallback domain.RoutePolicy) *Table {
	t, err := Compile(policies, fallback)
	if err != nil {
		panic(err)
	}
	return t
}

func normalize(p domain.RoutePolicy, fallback bool) (domain.RoutePolicy, error) {
	if !fallback && !strings.HasPrefix(p.Pattern, "/") {
		return p, fmt.Errorf("%w: pattern %q must start with /", ErrInvalidPolicy, p.Pattern)
	}
	if p.Visibility == "" {
		p.Visibility = domain.VisibilityAuthenticated
	}
	if p.RateLimitClass == "" {
		p.RateLimitClass = domain.RateLimitStandard
	}

	switch p.Visibility {
	case domain.VisibilityPublic, domain.VisibilityAuthenticated:
	default:
		return p, fmt.Errorf("%w: %q has unknown visibility %q", ErrInvalidPolicy, p.Pattern, p.Visibility)
	}
	switch p.RateLimitClass {
	case domain.RateLimitCritical, domain.RateLimitStandard:
	default:
		return p, fmt.Errorf("%w: %q has unknown rate limit class %q", ErrInvalidPolicy, p.Pattern, p.RateLimitClass)
	}
	if p.Public() && (p.RequiredRole != "" || p.RequiredPermission != "") {
		return p, fmt.Errorf("%w: public route %q cannot require a role or permission", ErrInvalidPolicy, p.Pattern)
	}
	return p, nil
}

// Match returns the policy for urlPath and whether an explicit rule matched.
// Unmatched paths get the fallback policy.
func (t *Table) Match(urlPath string) (domain.RoutePolicy, bool) {
	p := cleanPath(urlPath)

	if rule, ok := t.exact[p]; ok {
		return rule, true
	}

	for _, rule := range t.prefixes {
		if p == rule.base || strings.HasPrefix(p, rule.base+"/") {
			return rule.policy, true
		}
	}

	segs := split(p)
	for _, rule := range t.wildcards {
		if matchSegments(rule.segments, segs) {
			return rule.policy, true
		}
	}

	return t.fallback, false
}

// Len reports the number of explicit rules.
func (t *Table) Len() int {
	return len(t.exact) + len(t.prefixes) + len(t.wildcards)
}

// RequiredPermission is the permission a request with method must hold under
// p, or "" when none is needed.
func RequiredPermission(p domain.RoutePolicy, method string) string {
	if p.RequiredPermission != "" {
		return p.RequiredPermission
	}
	if isMutating(method) && !p.AllowWrites {
		return DefaultWritePermission
	}
	return ""
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

func split(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

// matchSegments compares segment by segment; "*" matches exactly one
// non-empty segment, except a trailing "*" which matches one or more.
func matchSegments(pattern, segs []string) bool {
	for i, want := range pattern {
		if i >= len(segs) {
			return false
		}
		if want == "*" {
			if segs[i] == "" {
				return false
			}
			if i == len(pattern)-1 {
				return true
			}
			continue
		}
		if want != segs[i] {
			return false
		}
	}
	return len(pattern) == len(segs)
}
