package http

import (
	"math"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// ErrorWriter renders errors as the uniform JSON envelope. Outside production
// the envelope also carries the underlying error text.
type ErrorWriter struct {
	Production bool
}

// Write classifies err and writes it.
func (ew ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)

	env := httpx.ErrorEnvelope{
		Error:   string(kind),
		Message: domain.MessageOf(err),
	}

	switch kind {
	case domain.KindDatabase, domain.KindInternal:
		slogx.FromContext(r.Context()).Error("request failed", "kind", kind, "error", err)
		// Never echo internal text to the client.
		env.Message = kind.DefaultMessage()
	}

	if !ew.Production {
		env.Details = err.Error()
	}

	if d := domain.RetryAfterOf(err); d > 0 {
		env.RetryAfter = max(int(math.Ceil(d.Seconds())), 1)
	}

	httpx.WriteError(w, kind.Status(), env)
}

// NotFoundHandler answers unmatched routes with a NOT_FOUND envelope.
func NotFoundHandler(ew ErrorWriter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ew.Write(w, r, &domain.Error{Kind: domain.KindNotFound, Message: "Route not found"})
	})
}
