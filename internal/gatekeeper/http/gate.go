package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/policy"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// DefaultDecisionTimeout bounds a single authorization decision.
const DefaultDecisionTimeout = 5 * time.Second

// rateLimitKey buckets authenticated traffic per principal and client address.
var rateLimitKey = httpx.CompositeKeyExtractor("|", httpx.UserIDKeyExtractor, httpx.IPKeyExtractor)

// GateConfig wires the authorization gate.
type GateConfig struct {
	Policies *policy.Table
	Tokens   *service.TokenService
	Refresh  *service.RefreshCoordinator

	// Limiters per rate-limit class. A class without a limiter is unlimited.
	Limiters map[domain.RateLimitClass]*httpx.Limiter

	// ServiceSecret enables service-to-service calls. Empty disables them and
	// any request presenting X-Service-Auth is refused.
	ServiceSecret string

	Cookies httpx.CookieOptions
	Timeout time.Duration
	Errors  ErrorWriter
}

// decision accumulates what the stages learned about one request. The gate
// applies its side effects (cookies, headers, context) only once the whole
// pipeline has allowed the request.
type decision struct {
	policy    domain.RoutePolicy
	principal domain.Principal
	resolved  bool
	rotated   *domain.TokenPair
	limit     *httpx.Decision
}

// stage inspects the request and either passes it on, ends evaluation with an
// allow (done), or rejects it with an error.
type stage func(r *http.Request, d *decision) (done bool, err error)

// Gate is the authorization router. Every request runs through a fixed
// pipeline: service secret, policy match, public bypass, token resolution,
// role, permission, rate limit.
type Gate struct {
	cfg    GateConfig
	stages []stage
}

func NewGate(cfg GateConfig) *Gate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDecisionTimeout
	}
	if cfg.Policies == nil {
		cfg.Policies = policy.Default()
	}

	g := &Gate{cfg: cfg}
	g.stages = []stage{
		g.serviceAuth,
		g.matchPolicy,
		g.publicBypass,
		g.authenticate,
		g.requireRole,
		g.requirePermission,
		g.rateLimit,
	}
	return g
}

// Middleware enforces the gate in front of next.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		StripIdentityHeaders(r.Header)

		d, err := g.decide(r)
		if d.limit != nil {
			d.limit.SetHeaders(w)
		}
		if err != nil {
			g.audit(r, d, err)
			g.cfg.Errors.Write(w, r, err)
			return
		}

		if d.rotated != nil {
			g.writeRotated(w, *d.rotated)
		}

		ctx := r.Context()
		if d.resolved {
			ctx = WithPrincipal(ctx, d.principal)
		}
		if d.rotated != nil {
			ctx = withRotated(ctx, *d.rotated)
		}
		r.Header.Del(HeaderServiceAuth)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// decide runs the pipeline under the decision timeout. A decision that runs
// out of time is a denial.
func (g *Gate) decide(r *http.Request) (*decision, error) {
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.Timeout)
	defer cancel()
	r = r.WithContext(ctx)

	d := &decision{}
	for _, s := range g.stages {
		done, err := s(r, d)
		if err == nil && ctx.Err() != nil {
			err = domain.E(domain.KindDatabase, ctx.Err())
		}
		if err != nil {
			return d, err
		}
		if done {
			break
		}
	}
	return d, nil
}

func (g *Gate) serviceAuth(r *http.Request, d *decision) (bool, error) {
	secret := r.Header.Get(HeaderServiceAuth)
	if secret == "" {
		return false, nil
	}

	if g.cfg.ServiceSecret == "" || !cryptox.EqualSecret(secret, g.cfg.ServiceSecret) {
		return false, &domain.Error{Kind: domain.KindTokenInvalid, Message: "Invalid service credentials"}
	}

	g.auditSuccess(r, domain.RoleService, "service_secret")
	d.principal = domain.ServicePrincipal()
	d.resolved = true
	return true, nil
}

func (g *Gate) matchPolicy(r *http.Request, d *decision) (bool, error) {
	d.policy, _ = g.cfg.Policies.Match(r.URL.Path)
	return false, nil
}

func (g *Gate) publicBypass(_ *http.Request, d *decision) (bool, error) {
	return d.policy.Public(), nil
}

// authenticate resolves the token state machine. A missing or expired access
// token with a refresh token present is refreshed transparently.
func (g *Gate) authenticate(r *http.Request, d *decision) (bool, error) {
	ctx := r.Context()
	access := httpx.AccessToken(r)
	refresh := httpx.RefreshToken(r)

	if access == "" && refresh == "" {
		return false, domain.ErrNoToken
	}

	if access != "" {
		p, err := g.cfg.Tokens.Authenticate(ctx, access)
		if err == nil {
			g.auditSuccess(r, p.ID, "")
			d.principal, d.resolved = p, true
			return false, nil
		}

		switch domain.KindOf(err) {
		case domain.KindTokenExpired:
			// fall through to refresh
		case domain.KindTokenRevoked, domain.KindTokenInvalid:
			return false, &domain.Error{Kind: domain.KindTokenInvalid, Err: err}
		default:
			return false, err
		}
	}

	if refresh == "" {
		return false, &domain.Error{Kind: domain.KindSessionExpired, Err: domain.ErrTokenExpired}
	}

	pair, p, err := g.cfg.Refresh.Refresh(ctx, refresh)
	if err != nil {
		if domain.KindOf(err) == domain.KindDatabase {
			return false, err
		}
		return false, &domain.Error{Kind: domain.KindSessionExpired, Err: err}
	}

	g.auditSuccess(r, p.ID, "transparent_refresh")
	d.principal, d.resolved = p, true
	d.rotated = &pair
	return false, nil
}

func (g *Gate) requireRole(_ *http.Request, d *decision) (bool, error) {
	if d.policy.RequiredRole != "" && d.principal.Role != d.policy.RequiredRole {
		return false, domain.ErrInsufficientPermissions
	}
	return false, nil
}

func (g *Gate) requirePermission(r *http.Request, d *decision) (bool, error) {
	perm := policy.RequiredPermission(d.policy, r.Method)
	if perm != "" && !d.principal.HasPermission(perm) {
		return false, &domain.Error{
			Kind: domain.KindInsufficientPermissions,
			Err:  &missingPermission{perm: perm},
		}
	}
	return false, nil
}

func (g *Gate) rateLimit(r *http.Request, d *decision) (bool, error) {
	limiter := g.cfg.Limiters[d.policy.RateLimitClass]
	if limiter == nil {
		return true, nil
	}

	r = r.WithContext(httpx.WithUserID(r.Context(), d.principal.ID))
	res := limiter.Allow(rateLimitKey(r))
	d.limit = &res
	if !res.Allowed {
		return false, &domain.Error{Kind: domain.KindRateLimitExceeded, RetryAfter: res.RetryAfter}
	}
	return true, nil
}

// writeRotated hands a transparently refreshed pair back to the caller as
// cookies and as headers for clients without a cookie jar.
func (g *Gate) writeRotated(w http.ResponseWriter, pair domain.TokenPair) {
	codec := g.cfg.Tokens.Codec
	httpx.SetTokenCookies(w, g.cfg.Cookies,
		pair.AccessToken, codec.AccessTTL(),
		pair.RefreshToken, codec.RefreshTTL(),
	)
	w.Header().Set(httpx.AccessTokenHeader, pair.AccessToken)
	w.Header().Set(httpx.RefreshTokenHeader, pair.RefreshToken)
}

func (g *Gate) auditSuccess(r *http.Request, subject, reason string) {
	slogx.AuthSuccess(r.Context(), slogx.AuditEvent{
		IP:      httpx.IPKeyExtractor(r),
		Path:    r.URL.Path,
		Subject: subject,
		Reason:  reason,
	})
}

func (g *Gate) audit(r *http.Request, d *decision, err error) {
	switch domain.KindOf(err) {
	case domain.KindDatabase, domain.KindInternal, domain.KindRateLimitExceeded:
		return
	}
	slogx.AuthFailure(r.Context(), slogx.AuditEvent{
		IP:      httpx.IPKeyExtractor(r),
		Path:    r.URL.Path,
		Subject: d.principal.ID,
		Reason:  string(domain.KindOf(err)),
	})
}

type missingPermission struct{ perm string }

func (e *missingPermission) Error() string { return "missing permission " + e.perm }
