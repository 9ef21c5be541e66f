package http

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// UpstreamProxy forwards requests that passed the gate to the business
// service at target. The resolved principal travels as identity headers; the
// service secret and refresh header never leave the gateway.
func UpstreamProxy(target *url.URL, ew ErrorWriter) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()

			pr.Out.Header.Del(HeaderServiceAuth)
			pr.Out.Header.Del(httpx.RefreshTokenHeader)
			StripIdentityHeaders(pr.Out.Header)
			if p, ok := PrincipalFrom(pr.In.Context()); ok {
				SetIdentityHeaders(pr.Out.Header, p)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			ew.Write(w, r, &domain.Error{Kind: domain.KindInternal, Message: "Upstream service unavailable", Err: err})
		},
	}
}
