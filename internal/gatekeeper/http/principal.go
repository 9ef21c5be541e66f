package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// Identity headers set on requests forwarded upstream. Inbound copies are
// always removed so a client cannot assert an identity.
const (
	HeaderPrincipalID          = "X-Principal-Id"
	HeaderPrincipalRole        = "X-Principal-Role"
	HeaderPrincipalPermissions = "X-Principal-Permissions"
	HeaderPrincipalService     = "X-Principal-Service"

	// HeaderServiceAuth carries the shared secret for service-to-service calls.
	HeaderServiceAuth = "X-Service-Auth"
)

var identityHeaders = []string{
	HeaderPrincipalID,
	HeaderPrincipalRole,
	HeaderPrincipalPermissions,
	HeaderPrincipalService,
}

type (
	principalKey struct{}
	rotatedKey   struct{}
)

// WithPrincipal attaches p to ctx. The id is also recorded for per-user rate
// limiting.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, p)
	return httpx.WithUserID(ctx, p.ID)
}

// PrincipalFrom returns the principal resolved for this request.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}

// StripIdentityHeaders removes any identity headers from h.
func StripIdentityHeaders(h http.Header) {
	for _, name := range identityHeaders {
		h.Del(name)
	}
}

// SetIdentityHeaders writes p into h for the upstream service.
func SetIdentityHeaders(h http.Header, p domain.Principal) {
	StripIdentityHeaders(h)
	h.Set(HeaderPrincipalID, p.ID)
	h.Set(HeaderPrincipalRole, p.Role)
	h.Set(HeaderPrincipalPermissions, strings.Join(p.Permissions, ","))
	h.Set(HeaderPrincipalService, strconv.FormatBool(p.IsService))
}

// withRotated records a pair the gate issued while handling this request, so
// logout can revoke it as well.
func withRotated(ctx context.Context, pair domain.TokenPair) context.Context {
	return context.WithValue(ctx, rotatedKey{}, pair)
}

func rotatedFrom(ctx context.Context) (domain.TokenPair, bool) {
	pair, ok := ctx.Value(rotatedKey{}).(domain.TokenPair)
	return pair, ok
}
