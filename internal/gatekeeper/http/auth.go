package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 << 10

// AuthHandler serves the session endpoints under /api/auth.
type AuthHandler struct {
	Sessions *service.SessionService
	Refresh  *service.RefreshCoordinator
	Tokens   *service.TokenService
	Cookies  httpx.CookieOptions
	Validate *validator.Validate
	Errors   ErrorWriter
}

// HandleLogin godoc
//
//	@Summary		Password login
//	@Description	Verifies account credentials and issues an access/refresh token pair.
//	@Description	Repeated failures from the same IP and account are slowed down progressively, capped per 15 minute window and eventually locked out.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.LoginRequest							true	"Credentials"
//	@Success		200		{object}	authsdk.Envelope[authsdk.TokenResponse]			"Token pair, also set as cookies"
//	@Failure		400		{object}	httpx.ErrorEnvelope								"VALIDATION_ERROR"
//	@Failure		401		{object}	httpx.ErrorEnvelope								"INVALID_CREDENTIALS or ACCOUNT_INACTIVE"
//	@Failure		423		{object}	httpx.ErrorEnvelope								"ACCOUNT_LOCKED"
//	@Failure		429		{object}	httpx.ErrorEnvelope								"RATE_LIMIT_EXCEEDED"
//	@Router			/api/auth/login [post]
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.LoginRequest
	if err := h.decode(w, r, &req, true); err != nil {
		h.Errors.Write(w, r, err)
		return
	}

	ip := httpx.IPKeyExtractor(r)
	event := slogx.AuditEvent{
		IP:         ip,
		Path:       r.URL.Path,
		AccountKey: domain.AttemptKey(ip, req.Account),
	}

	sess, err := h.Sessions.Login(ctx, service.LoginInput{
		Account:  req.Account,
		Password: req.Password,
		IP:       ip,
	})
	h.writeAttemptBudget(w, r, event.AccountKey, err)
	if err != nil {
		event.Reason = string(domain.KindOf(err))
		slogx.AuthFailure(ctx, event)
		h.Errors.Write(w, r, err)
		return
	}

	event.Subject = sess.Principal.ID
	slogx.AuthSuccess(ctx, event)

	h.writePair(w, sess.Pair, &sess.Principal)
}

// HandleRefresh godoc
//
//	@Summary		Rotate tokens
//	@Description	Exchanges a refresh token for a new pair. The presented refresh token is revoked; presenting it again fails with TOKEN_REVOKED.
//	@Description	The token is read from the JSON body, the refresh_token cookie or the X-Refresh-Token header, in that order.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RefreshRequest						false	"Refresh token"
//	@Success		200		{object}	authsdk.Envelope[authsdk.TokenResponse]		"New token pair"
//	@Failure		401		{object}	httpx.ErrorEnvelope							"NO_TOKEN, TOKEN_INVALID, TOKEN_EXPIRED, TOKEN_REVOKED or ACCOUNT_INACTIVE"
//	@Failure		500		{object}	httpx.ErrorEnvelope							"DATABASE_ERROR"
//	@Router			/api/auth/refresh [post]
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.RefreshRequest
	if err := h.decode(w, r, &req, false); err != nil {
		h.Errors.Write(w, r, err)
		return
	}

	token := req.RefreshToken
	if token == "" {
		token = httpx.RefreshToken(r)
	}
	if token == "" {
		h.Errors.Write(w, r, domain.ErrNoToken)
		return
	}

	event := slogx.AuditEvent{IP: httpx.IPKeyExtractor(r), Path: r.URL.Path}

	pair, principal, err := h.Refresh.Refresh(ctx, token)
	if err != nil {
		event.Reason = string(domain.KindOf(err))
		slogx.AuthFailure(ctx, event)
		h.Errors.Write(w, r, err)
		return
	}

	event.Subject = principal.ID
	event.Reason = "refresh"
	slogx.AuthSuccess(ctx, event)

	h.writePair(w, pair, &principal)
}

// HandleLogout godoc
//
//	@Summary		Logout
//	@Description	Revokes the presented access token and any presented refresh token, and clears the token cookies.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	httpx.DataEnvelope	"Logged out"
//	@Failure		401	{object}	httpx.ErrorEnvelope	"NO_TOKEN, TOKEN_INVALID or SESSION_EXPIRED"
//	@Failure		500	{object}	httpx.ErrorEnvelope	"DATABASE_ERROR"
//	@Router			/api/auth/logout [post]
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Sessions.Logout(ctx, httpx.AccessToken(r), httpx.RefreshToken(r)); err != nil {
		h.Errors.Write(w, r, err)
		return
	}

	// The gate may have rotated the pair on the way in.
	if pair, ok := rotatedFrom(ctx); ok {
		if err := h.Sessions.Logout(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
			h.Errors.Write(w, r, err)
			return
		}
	}

	if p, ok := PrincipalFrom(ctx); ok {
		slogx.FromContext(ctx).Info("logout", "subject", p.ID)
	}

	httpx.ClearTokenCookies(w, h.Cookies)
	httpx.WriteData(w, http.StatusOK, nil)
}

// HandleMe godoc
//
//	@Summary		Current principal
//	@Description	Returns the identity the gateway resolved for this request.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.Envelope[authsdk.PrincipalInfo]	"Resolved principal"
//	@Failure		401	{object}	httpx.ErrorEnvelope						"NO_TOKEN, TOKEN_INVALID or SESSION_EXPIRED"
//	@Router			/api/auth/me [get]
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		h.Errors.Write(w, r, domain.ErrNoToken)
		return
	}
	httpx.WriteData(w, http.StatusOK, principalInfo(p))
}

// writeAttemptBudget reports the account's login attempts left in this window
// through the rate limit headers, replacing the per-IP figures.
func (h *AuthHandler) writeAttemptBudget(w http.ResponseWriter, r *http.Request, key string, loginErr error) {
	switch domain.KindOf(loginErr) {
	case domain.KindDatabase, domain.KindValidation:
		return
	}

	guard := h.Sessions.Guard
	remaining, err := guard.Remaining(r.Context(), key)
	if err != nil {
		return
	}
	w.Header().Set("RateLimit-Limit", strconv.Itoa(guard.Config.MaxAttempts))
	w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
}

func (h *AuthHandler) writePair(w http.ResponseWriter, pair domain.TokenPair, p *domain.Principal) {
	httpx.SetTokenCookies(w, h.Cookies,
		pair.AccessToken, h.Tokens.Codec.AccessTTL(),
		pair.RefreshToken, h.Tokens.Codec.RefreshTTL(),
	)

	resp := authsdk.TokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        pair.TokenType,
		ExpiresIn:        pair.ExpiresIn,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
	if p != nil {
		info := principalInfo(*p)
		resp.User = &info
	}
	httpx.WriteData(w, http.StatusOK, resp)
}

// decode reads an optional JSON body into dst and validates it. An empty body
// is an error only when required is set.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any, required bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case errors.Is(err, io.EOF):
		if required {
			return &domain.Error{Kind: domain.KindValidation, Message: "Request body is required"}
		}
		return nil
	case err != nil:
		return &domain.Error{Kind: domain.KindValidation, Message: "Request body is not valid JSON", Err: err}
	}

	if err := h.Validate.Struct(dst); err != nil {
		return &domain.Error{Kind: domain.KindValidation, Message: validationMessage(err), Err: err}
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.KindValidation.DefaultMessage()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return "Invalid request: " + strings.Join(msgs, ", ")
}

func principalInfo(p domain.Principal) authsdk.PrincipalInfo {
	perms := p.Permissions
	if perms == nil {
		perms = []string{}
	}
	return authsdk.PrincipalInfo{
		ID:          p.ID,
		Account:     p.Account,
		Role:        p.Role,
		Permissions: perms,
		IsService:   p.IsService,
	}
}
