package http

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"

	_ "github.com/aussiebroadwan/gatekeeper/api/gatekeeper" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	state      store.State
	principals store.Principals

	Gate        *Gate
	AuthHandler *AuthHandler
	Errors      ErrorWriter

	// IPLimit throttles the public session endpoints per client IP before
	// the brute-force guard runs.
	IPLimit httpx.RateLimitConfig

	// TrustedProxies may set X-Forwarded-For. Requests from any other peer
	// are keyed by their connection address.
	TrustedProxies []netip.Prefix

	// Upstream receives every request no gateway route claims. Nil answers
	// with a NOT_FOUND envelope.
	Upstream http.Handler
}

func NewRouter(
	buildVersion string,
	state store.State,
	principals store.Principals,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		state:        state,
		principals:   principals,
		logger:       logger,
		IPLimit:      httpx.CriticalLimit,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// ApplyRoutes registers every route and seals the middleware chain. The client
// address is resolved first, and the gate runs inside the request logger so
// denials are logged with a request id.
func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())

	fallback := r.Upstream
	if fallback == nil {
		fallback = NotFoundHandler(r.Errors)
	}
	r.Mux.Handle("/", fallback)

	mws := []httpx.Middleware{httpx.RealIP(r.TrustedProxies)}
	mws = append(mws, r.middlewares...)
	mws = append(mws, r.Gate.Middleware)
	r.handler = httpx.Chain(r.Mux, mws...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Gatekeeper Session & Authorization API
//	@version		0.1.0
//	@description	Session control plane and authorization gateway. Issues, rotates and revokes HS256 token pairs and decides per request whether it may reach the business API behind it.
//	@description
//	@description				Tokens are accepted as a Bearer header or as the access_token/refresh_token cookie pair. Trusted services authenticate with the X-Service-Auth header.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/gatekeeper
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := r.AuthHandler

	// Public session endpoints - strict rate limit by IP ahead of the
	// per-account brute-force guard.
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(r.IPLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.IPLimit),
		),
	)

	// Authenticated; the gate has already applied the user rate limit.
	r.Mux.Handle("POST /api/auth/logout", http.HandlerFunc(h.HandleLogout))
	r.Mux.Handle("GET /api/auth/me", http.HandlerFunc(h.HandleMe))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.state, r.principals))
}
