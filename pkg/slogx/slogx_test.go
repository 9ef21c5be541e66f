package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestNewWritesBaseAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "gatekeeper", Version: "v1", Env: "test", Output: &buf})
	logger.Info("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "gatekeeper", lines[0]["service"])
	require.Equal(t, "v1", lines[0]["version"])
	require.Equal(t, "test", lines[0]["env"])
}

func TestAuditLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "gatekeeper", Output: &buf, Level: "debug"})
	ctx := slogx.WithContext(context.Background(), logger)

	slogx.AuthSuccess(ctx, slogx.AuditEvent{IP: "10.0.0.1", Path: "/api/auth/login", AccountKey: "10.0.0.1:alice"})
	slogx.AuthFailure(ctx, slogx.AuditEvent{IP: "10.0.0.1", Path: "/api/auth/login", Reason: "INVALID_CREDENTIALS"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	require.Equal(t, "INFO", lines[0]["level"])
	require.Equal(t, "10.0.0.1:alice", lines[0]["account_key"])
	require.Equal(t, "WARN", lines[1]["level"])
	require.Equal(t, "INVALID_CREDENTIALS", lines[1]["reason"])
	require.NotContains(t, lines[1], "account_key")
}

func TestHTTPMiddlewareRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "gatekeeper", Output: &buf})

	var seen bool
	h := slogx.HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = slogx.FromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

		require.True(t, seen)
		_, err := idx.Parse(rec.Header().Get(slogx.RequestIDHeader))
		require.NoError(t, err)
	})

	t.Run("keeps valid inbound id", func(t *testing.T) {
		id := idx.New().String()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(slogx.RequestIDHeader, id)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, id, rec.Header().Get(slogx.RequestIDHeader))
	})

	t.Run("replaces junk inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(slogx.RequestIDHeader, "<script>")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.NotEqual(t, "<script>", rec.Header().Get(slogx.RequestIDHeader))
	})

	buf.Reset()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "http_request", lines[0]["msg"])
	require.EqualValues(t, http.StatusTeapot, lines[0]["status"])
}
