package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	httpapi "github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/http"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/memory"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/storetest"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

const (
	testServiceSecret = "svc-secret-0123456789abcdef"
	testPassword      = "correct horse battery staple"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type harnessConfig struct {
	revocations   store.Revocations
	limiters      map[domain.RateLimitClass]*httpx.Limiter
	production    bool
	serviceSecret string
	timeout       time.Duration
	trusted       []netip.Prefix
}

type option func(*harnessConfig)

func withRevocations(r store.Revocations) option {
	return func(c *harnessConfig) { c.revocations = r }
}

func withLimiter(class domain.RateLimitClass, cfg httpx.RateLimitConfig, now func() time.Time) option {
	return func(c *harnessConfig) {
		if c.limiters == nil {
			c.limiters = map[domain.RateLimitClass]*httpx.Limiter{}
		}
		c.limiters[class] = httpx.NewLimiter(cfg, now)
	}
}

func withProduction() option {
	return func(c *harnessConfig) { c.production = true }
}

func withServiceSecret(secret string) option {
	return func(c *harnessConfig) { c.serviceSecret = secret }
}

func withTimeout(d time.Duration) option {
	return func(c *harnessConfig) { c.timeout = d }
}

func withTrustedProxies(t *testing.T, list string) option {
	t.Helper()
	trusted, err := httpx.ParseTrustedProxies(list)
	require.NoError(t, err)
	return func(c *harnessConfig) { c.trusted = trusted }
}

// harness is a full gateway in front of an upstream that echoes the identity
// it was handed.
type harness struct {
	clock  *storetest.Clock
	store  *memory.Store
	tokens *service.TokenService
	server *httptest.Server
	client *authsdk.SDKClient
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	return newHarnessWithClock(t, storetest.NewClock(), opts...)
}

func newHarnessWithClock(t *testing.T, clock *storetest.Clock, opts ...option) *harness {
	t.Helper()

	cfg := harnessConfig{serviceSecret: testServiceSecret}
	for _, o := range opts {
		o(&cfg)
	}

	st := memory.New(clock.Now)

	codec, err := jwtx.NewCodec(jwtx.CodecOptions{
		Secret: testSecret,
		Issuer: "gatekeeper",
		Now:    clock.Now,
	})
	require.NoError(t, err)

	var revocations store.Revocations = st
	if cfg.revocations != nil {
		revocations = cfg.revocations
	}

	tokens := &service.TokenService{Codec: codec, Revocations: revocations, Principals: st, Now: clock.Now}
	refresh := &service.RefreshCoordinator{Tokens: tokens}

	guard := service.NewGuard(st, service.GuardConfig{})
	guard.Now = clock.Now
	guard.Sleep = func(context.Context, time.Duration) error { return nil }

	sessions := &service.SessionService{
		Principals: st,
		Tokens:     tokens,
		Guard:      guard,
		Hasher:     cryptox.Hasher{Pepper: "pepper"},
	}

	upstream := httptest.NewServer(echoIdentity())
	t.Cleanup(upstream.Close)
	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	ew := httpapi.ErrorWriter{Production: cfg.production}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := httpapi.NewRouter("test", st, st, logger)
	router.Errors = ew
	router.TrustedProxies = cfg.trusted
	router.Gate = httpapi.NewGate(httpapi.GateConfig{
		Tokens:        tokens,
		Refresh:       refresh,
		Limiters:      cfg.limiters,
		ServiceSecret: cfg.serviceSecret,
		Timeout:       cfg.timeout,
		Errors:        ew,
	})
	router.AuthHandler = &httpapi.AuthHandler{
		Sessions: sessions,
		Refresh:  refresh,
		Tokens:   tokens,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
		Errors:   ew,
	}
	router.Upstream = httpapi.UpstreamProxy(target, ew)
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &harness{
		clock:  clock,
		store:  st,
		tokens: tokens,
		server: srv,
		client: authsdk.NewSDKClient(srv.URL),
	}
}

// addPrincipal creates an active principal with testPassword.
func (h *harness) addPrincipal(t *testing.T, account, role string, perms ...string) domain.Principal {
	t.Helper()

	hash, err := cryptox.Hasher{Pepper: "pepper"}.Hash(testPassword)
	require.NoError(t, err)

	p := domain.Principal{
		ID:          idx.New().String(),
		Account:     account,
		Role:        role,
		Permissions: perms,
		Active:      true,
	}
	require.NoError(t, h.store.CreatePrincipal(context.Background(), p, hash))
	return p
}

// issue signs a pair for p without going through login.
func (h *harness) issue(t *testing.T, p domain.Principal) domain.TokenPair {
	t.Helper()
	pair, err := h.tokens.Issue(p)
	require.NoError(t, err)
	return pair
}

type requestOption func(*http.Request)

func bearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func cookie(name, value string) requestOption {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

func header(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func (h *harness) do(t *testing.T, method, path string, opts ...requestOption) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, h.server.URL+path, nil)
	require.NoError(t, err)
	for _, o := range opts {
		o(req)
	}

	resp, err := h.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// requireError asserts status and error kind and returns the envelope.
func requireError(t *testing.T, resp *http.Response, status int, kind domain.Kind) httpx.ErrorEnvelope {
	t.Helper()

	var env httpx.ErrorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Equal(t, status, resp.StatusCode, "body: %+v", env)
	require.False(t, env.Success)
	require.Equal(t, string(kind), env.Error)
	require.NotEmpty(t, env.Timestamp)
	return env
}

// echoed is what the upstream saw.
type echoed struct {
	Path        string `json:"path"`
	ID          string `json:"id"`
	Role        string `json:"role"`
	Permissions string `json:"permissions"`
	Service     string `json:"service"`
	ServiceAuth string `json:"serviceAuth"`
	Refresh     string `json:"refresh"`
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, echoed{
			Path:        r.URL.Path,
			ID:          r.Header.Get(httpapi.HeaderPrincipalID),
			Role:        r.Header.Get(httpapi.HeaderPrincipalRole),
			Permissions: r.Header.Get(httpapi.HeaderPrincipalPermissions),
			Service:     r.Header.Get(httpapi.HeaderPrincipalService),
			ServiceAuth: r.Header.Get(httpapi.HeaderServiceAuth),
			Refresh:     r.Header.Get(httpx.RefreshTokenHeader),
		})
	})
}

func requireEcho(t *testing.T, resp *http.Response) echoed {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var e echoed
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e
}

// brokenRevocations fails every call as an unreachable backend would.
type brokenRevocations struct{}

func (brokenRevocations) Blacklist(context.Context, string, time.Duration) (bool, error) {
	return false, store.Unavailable(errors.New("connection refused"))
}

func (brokenRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, store.Unavailable(errors.New("connection refused"))
}

// stalledRevocations never answers before the caller gives up.
type stalledRevocations struct{}

func (stalledRevocations) Blacklist(ctx context.Context, _ string, _ time.Duration) (bool, error) {
	<-ctx.Done()
	return false, store.Unavailable(ctx.Err())
}

func (stalledRevocations) IsRevoked(ctx context.Context, _ string) (bool, error) {
	<-ctx.Done()
	return false, store.Unavailable(ctx.Err())
}
