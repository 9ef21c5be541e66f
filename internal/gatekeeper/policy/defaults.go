package policy

import "github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"

// Permissions referenced by the default table.
const (
	PermWorkflowsRead  = "workflows:read"
	PermWorkflowsWrite = "workflows:write"
)

// DefaultFallback applies to any path without an explicit rule.
var DefaultFallback = domain.RoutePolicy{
	Visibility:     domain.VisibilityAuthenticated,
	RateLimitClass: domain.RateLimitStandard,
}

// DefaultRoutes is the route table for the gateway's own endpoints and the
// business API behind it. Prefix rules win over segment wildcards, so no
// "/api/business/*" catch-all is declared; the fallback covers it.
func DefaultRoutes() []domain.RoutePolicy {
	return []domain.RoutePolicy{
		// Gateway endpoints.
		{Pattern: "/api/auth/login", Visibility: domain.VisibilityPublic, RateLimitClass: domain.RateLimitCritical},
		{Pattern: "/api/auth/refresh", Visibility: domain.VisibilityPublic, RateLimitClass: domain.RateLimitCritical},
		{Pattern: "/api/auth/logout", RateLimitClass: domain.RateLimitCritical, AllowWrites: true},
		{Pattern: "/api/auth/me"},
		{Pattern: "/livez", Visibility: domain.VisibilityPublic},
		{Pattern: "/readyz", Visibility: domain.VisibilityPublic},
		{Pattern: "/swagger/*", Visibility: domain.VisibilityPublic},

		// Business API.
		{Pattern: "/api/business/health", Visibility: domain.VisibilityPublic},
		{Pattern: "/api/business/processes/*/execution-stream", Visibility: domain.VisibilityPublic},
		{
			Pattern:            "/api/business/execute-workflow",
			RequiredRole:       domain.RoleAdmin,
			RequiredPermission: PermWorkflowsWrite,
			RateLimitClass:     domain.RateLimitCritical,
		},
		{Pattern: "/api/business/workflows/*", RequiredPermission: PermWorkflowsRead},
		{Pattern: "/api/admin/*", RequiredRole: domain.RoleAdmin},
	}
}

// Default compiles DefaultRoutes.
func Default() *Table {
	return MustCompile(DefaultRoutes(), DefaultFallback)
}
