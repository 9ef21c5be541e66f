package domain

// Visibility says whether a route needs a principal at all.
type Visibility string

const (
	VisibilityPublic        Visibility = "public"
	VisibilityAuthenticated Visibility = "authenticated"
)

// RateLimitClass selects the limiter applied to a route.
type RateLimitClass string

const (
	RateLimitCritical RateLimitClass = "critical"
	RateLimitStandard RateLimitClass = "standard"
)

// RoutePolicy is one declarative access rule. Pattern is an exact path, a
// prefix ending in "/*", or a path with "*" segments.
type RoutePolicy struct {
	Pattern            string
	Visibility         Visibility
	RequiredRole       string
	RequiredPermission string
	RateLimitClass     RateLimitClass

	// AllowWrites lets mutating methods through without the default write
	// permission.
	AllowWrites bool
}

// Public reports whether the route skips authentication.
func (p RoutePolicy) Public() bool { return p.Visibility == VisibilityPublic }
